package reqflow

import (
	"strings"
	"testing"
)

func TestFormatRelevantRequirementsPreservesOrder(t *testing.T) {
	requirements := []Requirement{
		{ID: "SYS-1", Text: "first", Type: TypeFunctional},
		{ID: "SYS-2", Text: "second", Type: TypeFunctional},
		{ID: "SYS-3", Text: "third", Type: TypeFunctional},
	}

	// Relevant set out of extraction order; output must follow extraction.
	out := formatRelevantRequirements(requirements, []string{"SYS-3", "SYS-1"})

	first := strings.Index(out, "SYS-1")
	third := strings.Index(out, "SYS-3")
	if first == -1 || third == -1 {
		t.Fatalf("relevant requirements missing from output:\n%s", out)
	}
	if first > third {
		t.Errorf("extraction order not preserved:\n%s", out)
	}
	if strings.Contains(out, "SYS-2") {
		t.Errorf("irrelevant requirement included:\n%s", out)
	}
}

func TestFormatIssues(t *testing.T) {
	out := formatIssues([]QualityIssue{
		{Severity: SeverityMajor, RequirementID: "POWER-1", Description: "vague", Suggestion: "quantify"},
		{Severity: SeverityMinor, Description: "style"},
	})

	if !strings.Contains(out, "[major] POWER-1: vague (suggestion: quantify)") {
		t.Errorf("issue with suggestion misformatted:\n%s", out)
	}
	if !strings.Contains(out, "[minor] style") {
		t.Errorf("issue without ID misformatted:\n%s", out)
	}
}

func TestRequirementPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Power Management", "POWER_MANAGEMENT"},
		{"thermal-control", "THERMAL_CONTROL"},
		{"GNC", "GNC"},
		{"", "SUBSYSTEM"},
	}

	for _, tt := range tests {
		if got := requirementPrefix(tt.in); got != tt.want {
			t.Errorf("requirementPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderDocument(t *testing.T) {
	state := analyzedState()
	state.DecomposedRequirements = []DetailedRequirement{
		{
			Requirement:        Requirement{ID: "POWER-1", Text: "Regulate charge.", Type: TypeFunctional},
			Subsystem:          "Power Management",
			ParentID:           "SYS-1",
			AcceptanceCriteria: []string{"Verified in soak test"},
			Rationale:          "Direct allocation.",
		},
	}
	state.QualityMetrics = &QualityMetrics{OverallScore: 0.91}

	doc := RenderDocument(state)

	for _, want := range []string{
		"# Power Management Subsystem Requirements",
		"## Subsystem Analysis",
		"POWER-1",
		"SYS-1",
		"Verified in soak test",
		"Quality score: 0.91",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestRenderDocumentTraceabilityAppendix(t *testing.T) {
	state := analyzedState()
	state.DecomposedRequirements = []DetailedRequirement{
		detailed("POWER-1", "SYS-1"),
		detailed("POWER-9", "SYS-404"),
	}

	doc := RenderDocument(state)

	if !strings.Contains(doc, "SYS-3") {
		t.Errorf("uncovered parent missing from appendix:\n%s", doc)
	}
	if !strings.Contains(doc, "POWER-9") {
		t.Errorf("orphan missing from appendix:\n%s", doc)
	}
}
