// Package testutil provides utilities for testing the decomposition pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// FencedJSON wraps a JSON payload in a markdown code fence, the shape
// stage prompts ask the model to produce.
func FencedJSON(payload string) string {
	return "```json\n" + payload + "\n```"
}

// MarshalFenced marshals v and wraps it in a json code fence.
func MarshalFenced(t *testing.T, v any) string {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal response payload: %v", err)
	}
	return FencedJSON(string(data))
}

// ExtractResponse builds an extraction stage response containing one
// requirement per text, with IDs SYS-1..SYS-n of type functional.
func ExtractResponse(texts ...string) string {
	var b strings.Builder
	b.WriteString("```json\n{\n  \"requirements\": [\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "    {\"id\": \"SYS-%d\", \"text\": %q, \"type\": \"functional\"}", i+1, text)
		if i < len(texts)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  ]\n}\n```")
	return b.String()
}

// AnalyzeResponse builds an analysis stage response marking the given
// requirement IDs as relevant to the subsystem.
func AnalyzeResponse(summary string, relevantIDs ...string) string {
	var b strings.Builder
	b.WriteString("```json\n{\n")
	fmt.Fprintf(&b, "  \"analysis_summary\": %q,\n", summary)
	b.WriteString("  \"relevant_requirements\": [")
	for i, id := range relevantIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", id)
	}
	b.WriteString("]\n}\n```")
	return b.String()
}

// DecomposeResponse builds a decomposition stage response with one
// subsystem requirement per parent ID, each tracing to its parent.
func DecomposeResponse(subsystem, prefix string, parentIDs ...string) string {
	var b strings.Builder
	b.WriteString("```json\n{\n  \"requirements\": [\n")
	for i, parent := range parentIDs {
		fmt.Fprintf(&b, `    {"id": "%s-%d", "text": "The %s subsystem shall satisfy %s.", "type": "functional", "subsystem": %q, "parent_id": %q, "acceptance_criteria": ["Verified by test"], "rationale": "Allocated from %s."}`,
			prefix, i+1, strings.ToLower(subsystem), parent, subsystem, parent, parent)
		if i < len(parentIDs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  ]\n}\n```")
	return b.String()
}

// ValidateResponse builds a validation stage response with the given
// dimension scores and no issues.
func ValidateResponse(completeness, clarity, testability, traceability float64) string {
	return fmt.Sprintf("```json\n{\n  \"metrics\": {\"completeness\": %g, \"clarity\": %g, \"testability\": %g, \"traceability\": %g},\n  \"issues\": []\n}\n```",
		completeness, clarity, testability, traceability)
}

// ValidateResponseWithIssue builds a validation stage response carrying a
// single quality issue against the given requirement.
func ValidateResponseWithIssue(score float64, requirementID, dimension, severity, description string) string {
	return fmt.Sprintf(`%s{
  "metrics": {"completeness": %g, "clarity": %g, "testability": %g, "traceability": %g},
  "issues": [
    {"requirement_id": %q, "dimension": %q, "severity": %q, "description": %q, "suggestion": "Tighten the wording."}
  ]
}
%s`, "```json\n", score, score, score, score, requirementID, dimension, severity, description, "```")
}

// PassingValidation is a validation response that clears the default
// quality threshold on every dimension.
func PassingValidation() string {
	return ValidateResponse(0.95, 0.90, 0.92, 0.88)
}

// FailingValidation is a validation response below the default quality
// threshold, carrying a single major clarity issue.
func FailingValidation(requirementID string) string {
	return ValidateResponseWithIssue(0.55, requirementID, "clarity", "major", "Requirement wording is ambiguous.")
}
