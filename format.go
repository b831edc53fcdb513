package reqflow

import (
	"fmt"
	"strings"
)

// =============================================================================
// Prompt Formatting Helpers
// =============================================================================

// formatRequirements renders requirements as a prompt-friendly list.
func formatRequirements(requirements []Requirement) string {
	var b strings.Builder
	for _, req := range requirements {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", req.ID, req.Type, req.Text)
	}
	return b.String()
}

// formatRelevantRequirements renders only the requirements whose IDs are
// in the relevant set, preserving extraction order.
func formatRelevantRequirements(requirements []Requirement, relevant []string) string {
	keep := make(map[string]bool, len(relevant))
	for _, id := range relevant {
		keep[id] = true
	}

	var b strings.Builder
	for _, req := range requirements {
		if keep[req.ID] {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", req.ID, req.Type, req.Text)
		}
	}
	return b.String()
}

// formatDecomposed renders decomposed requirements with their trace links.
func formatDecomposed(requirements []DetailedRequirement) string {
	var b strings.Builder
	for _, req := range requirements {
		fmt.Fprintf(&b, "- %s [%s, parent %s]: %s\n", req.ID, req.Type, req.ParentID, req.Text)
		for _, ac := range req.AcceptanceCriteria {
			fmt.Fprintf(&b, "  - acceptance: %s\n", ac)
		}
	}
	return b.String()
}

// formatIssues renders quality issues as a prompt-friendly list.
func formatIssues(issues []QualityIssue) string {
	var b strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&b, "- [%s]", issue.Severity)
		if issue.RequirementID != "" {
			fmt.Fprintf(&b, " %s:", issue.RequirementID)
		}
		fmt.Fprintf(&b, " %s", issue.Description)
		if issue.Suggestion != "" {
			fmt.Fprintf(&b, " (suggestion: %s)", issue.Suggestion)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// requirementPrefix derives the derived-requirement ID prefix from the
// subsystem name, e.g. "Power Management" becomes "POWER_MANAGEMENT".
func requirementPrefix(subsystem string) string {
	slug := subsystemSlug(subsystem)
	return strings.ToUpper(slug)
}
