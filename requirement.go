package reqflow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Requirement Types
// =============================================================================

// RequirementType classifies a requirement statement.
type RequirementType string

const (
	TypeFunctional  RequirementType = "functional"
	TypePerformance RequirementType = "performance"
	TypeConstraint  RequirementType = "constraint"
	TypeInterface   RequirementType = "interface"
)

// Valid reports whether the type is one of the known classifications.
func (t RequirementType) Valid() bool {
	switch t {
	case TypeFunctional, TypePerformance, TypeConstraint, TypeInterface:
		return true
	}
	return false
}

// idPattern matches requirement IDs like SYS-1 or POWER_MGMT-12.
var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-\d+$`)

// Requirement is one system-level requirement extracted from the source
// document. Source optionally locates the statement in the document.
type Requirement struct {
	ID     string          `json:"id"`
	Text   string          `json:"text"`
	Type   RequirementType `json:"type"`
	Source string          `json:"source,omitempty"`
}

// Validate checks structural validity of a requirement.
func (r Requirement) Validate() error {
	if !idPattern.MatchString(r.ID) {
		return fmt.Errorf("invalid requirement ID %q", r.ID)
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("requirement %s has empty text", r.ID)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("requirement %s has unknown type %q", r.ID, r.Type)
	}
	return nil
}

// DetailedRequirement is a decomposed subsystem-level requirement. ParentID
// names the system requirement it derives from.
type DetailedRequirement struct {
	Requirement

	Subsystem          string   `json:"subsystem"`
	ParentID           string   `json:"parent_id"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Rationale          string   `json:"rationale,omitempty"`
}

// Validate checks structural validity including the parent link.
func (r DetailedRequirement) Validate() error {
	if err := r.Requirement.Validate(); err != nil {
		return err
	}
	if r.Subsystem == "" {
		return fmt.Errorf("requirement %s has no subsystem", r.ID)
	}
	if r.ParentID != "" && !idPattern.MatchString(r.ParentID) {
		return fmt.Errorf("requirement %s has invalid parent ID %q", r.ID, r.ParentID)
	}
	return nil
}

// =============================================================================
// Quality Assessment Types
// =============================================================================

// Issue severities, most severe first.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// QualityIssue is one defect found during validation.
type QualityIssue struct {
	RequirementID string `json:"requirement_id,omitempty"`
	Dimension     string `json:"dimension,omitempty"`
	Severity      string `json:"severity"`
	Description   string `json:"description"`
	Suggestion    string `json:"suggestion,omitempty"`
}

// QualityMetrics holds per-dimension scores from validation, each in
// [0, 1]. DomainCompliance is optional; absent means the dimension does
// not apply. OverallScore is the configured weighted sum, computed by the
// pipeline rather than the model.
type QualityMetrics struct {
	Completeness     float64        `json:"completeness"`
	Clarity          float64        `json:"clarity"`
	Testability      float64        `json:"testability"`
	Traceability     float64        `json:"traceability"`
	DomainCompliance *float64       `json:"domain_compliance,omitempty"`
	OverallScore     float64        `json:"overall_score"`
	Issues           []QualityIssue `json:"issues,omitempty"`
}

// CriticalIssues returns the critical-severity issues.
func (m *QualityMetrics) CriticalIssues() []QualityIssue {
	var out []QualityIssue
	for _, issue := range m.Issues {
		if issue.Severity == SeverityCritical {
			out = append(out, issue)
		}
	}
	return out
}

// PerfectMetrics returns metrics with every dimension at 1.0 and no
// issues. Used when there is nothing to assess.
func PerfectMetrics() *QualityMetrics {
	return &QualityMetrics{
		Completeness: 1.0,
		Clarity:      1.0,
		Testability:  1.0,
		Traceability: 1.0,
		OverallScore: 1.0,
	}
}

// =============================================================================
// Traceability
// =============================================================================

// TraceabilityMatrix maps each relevant system requirement to the
// subsystem requirements derived from it.
type TraceabilityMatrix struct {
	// Forward maps parent ID to derived requirement IDs, sorted.
	Forward map[string][]string `json:"forward"`

	// Uncovered lists relevant parent IDs with no derived requirements.
	Uncovered []string `json:"uncovered,omitempty"`

	// Orphans lists derived requirement IDs whose parent is empty or not
	// among the relevant system requirements.
	Orphans []string `json:"orphans,omitempty"`
}

// HasOrphans reports whether any derived requirement lacks a valid parent.
func (t *TraceabilityMatrix) HasOrphans() bool {
	return len(t.Orphans) > 0
}

// BuildTraceabilityMatrix links decomposed requirements back to the
// relevant system requirement IDs.
func BuildTraceabilityMatrix(relevant []string, decomposed []DetailedRequirement) *TraceabilityMatrix {
	m := &TraceabilityMatrix{Forward: make(map[string][]string, len(relevant))}

	known := make(map[string]bool, len(relevant))
	for _, id := range relevant {
		known[id] = true
		m.Forward[id] = nil
	}

	for _, req := range decomposed {
		if req.ParentID == "" || !known[req.ParentID] {
			m.Orphans = append(m.Orphans, req.ID)
			continue
		}
		m.Forward[req.ParentID] = append(m.Forward[req.ParentID], req.ID)
	}

	for _, id := range relevant {
		if len(m.Forward[id]) == 0 {
			m.Uncovered = append(m.Uncovered, id)
		} else {
			sort.Strings(m.Forward[id])
		}
	}
	sort.Strings(m.Uncovered)
	sort.Strings(m.Orphans)

	return m
}

// Traceability builds the matrix for the current state.
func (s State) Traceability() *TraceabilityMatrix {
	return BuildTraceabilityMatrix(s.RelevantRequirements, s.DecomposedRequirements)
}
