package reqflow

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/executor"
)

func TestNewState(t *testing.T) {
	state := NewState("Power Management")

	if state.Subsystem != "Power Management" {
		t.Errorf("Subsystem = %q", state.Subsystem)
	}
	if state.Status != StatusPending {
		t.Errorf("Status = %q, want %q", state.Status, StatusPending)
	}
	if state.CurrentStage != StageExtract {
		t.Errorf("CurrentStage = %q, want %q", state.CurrentStage, StageExtract)
	}
	if state.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", state.MaxIterations)
	}
	if state.QualityThreshold != 0.80 {
		t.Errorf("QualityThreshold = %v, want 0.80", state.QualityThreshold)
	}
	if state.StartTime.IsZero() {
		t.Error("StartTime not set")
	}
}

func TestGenerateRunIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{8}_\d{6}_power_management$`)

	id := generateRunID("Power Management")
	if !pattern.MatchString(id) {
		t.Errorf("run ID %q does not match expected format", id)
	}
}

func TestSubsystemSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces to underscores", "Power Management", "power_management"},
		{"hyphens to underscores", "thermal-control", "thermal_control"},
		{"mixed case", "GNC", "gnc"},
		{"digits kept", "Comms 2", "comms_2"},
		{"punctuation dropped", "C&DH (core)", "cdh_core"},
		{"surrounding whitespace", "  avionics  ", "avionics"},
		{"nothing usable", "!!!", "subsystem"},
		{"empty", "", "subsystem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := subsystemSlug(tt.in); got != tt.want {
				t.Errorf("subsystemSlug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStateValidate(t *testing.T) {
	full := State{
		SourceDocumentPath:     "doc.txt",
		ExtractedRequirements:  []Requirement{{ID: "SYS-1"}},
		AnalysisSummary:        "summary",
		DecomposedRequirements: []DetailedRequirement{detailed("POWER-1", "SYS-1")},
		QualityMetrics:         PerfectMetrics(),
	}

	tests := []struct {
		name    string
		state   State
		reqs    []StateRequirement
		wantErr bool
	}{
		{"no requirements always pass", State{}, nil, false},
		{"all present", full, []StateRequirement{RequireSource, RequireExtracted, RequireAnalysis, RequireDecomposed, RequireMetrics}, false},
		{"missing source", State{}, []StateRequirement{RequireSource}, true},
		{"inline source satisfies", State{SourceDocument: "text"}, []StateRequirement{RequireSource}, false},
		{"missing extraction", State{}, []StateRequirement{RequireExtracted}, true},
		{"missing analysis", State{}, []StateRequirement{RequireAnalysis}, true},
		{"missing decomposition", State{}, []StateRequirement{RequireDecomposed}, true},
		{"missing metrics", State{}, []StateRequirement{RequireMetrics}, true},
		{"unknown requirement", State{}, []StateRequirement{"bogus"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate(tt.reqs...)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	state := NewState("Power Management").
		WithSourcePath("reqs.txt").
		WithQualityThreshold(0.9).
		WithMaxIterations(5)
	state.Status = StatusRunning
	state.CurrentStage = StageDecompose
	state.ExtractedRequirements = []Requirement{
		{ID: "SYS-1", Text: "The system shall start.", Type: TypeFunctional},
	}
	state.DecomposedRequirements = []DetailedRequirement{detailed("POWER-1", "SYS-1")}
	state.QualityMetrics = &QualityMetrics{OverallScore: 0.7, Issues: []QualityIssue{
		{RequirementID: "POWER-1", Dimension: "clarity", Severity: SeverityMajor, Description: "vague"},
	}}
	state.TokensIn = 100
	state.TotalCost = 0.25

	rec, err := state.Record()
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if rec.RunID != state.RunID {
		t.Errorf("record RunID = %q, want %q", rec.RunID, state.RunID)
	}
	if rec.Status != string(StatusRunning) {
		t.Errorf("record Status = %q", rec.Status)
	}
	if rec.Stage != StageDecompose {
		t.Errorf("record Stage = %q", rec.Stage)
	}

	restored, err := StateFromRecord(rec)
	if err != nil {
		t.Fatalf("StateFromRecord() error: %v", err)
	}
	if restored.RunID != state.RunID || restored.Subsystem != state.Subsystem {
		t.Errorf("identity fields lost: %+v", restored)
	}
	if restored.QualityThreshold != 0.9 || restored.MaxIterations != 5 {
		t.Errorf("config fields lost: threshold=%v max=%d", restored.QualityThreshold, restored.MaxIterations)
	}
	if len(restored.DecomposedRequirements) != 1 || restored.DecomposedRequirements[0].ID != "POWER-1" {
		t.Errorf("decomposed requirements lost: %+v", restored.DecomposedRequirements)
	}
	if restored.QualityMetrics == nil || len(restored.QualityMetrics.Issues) != 1 {
		t.Errorf("quality metrics lost: %+v", restored.QualityMetrics)
	}
	if restored.TokensIn != 100 || restored.TotalCost != 0.25 {
		t.Errorf("usage lost: in=%d cost=%v", restored.TokensIn, restored.TotalCost)
	}
}

func TestStateFromRecordBadPayload(t *testing.T) {
	rec := checkpoint.Record{RunID: "20260101_000000_test", State: []byte("{not json")}
	if _, err := StateFromRecord(rec); err == nil {
		t.Error("expected error for malformed state payload")
	}
}

func TestRecordStageFailure(t *testing.T) {
	var state State
	state.RecordStageFailure(StageAnalyze, errors.New("model unavailable"))

	if !state.RequiresHumanReview {
		t.Error("RequiresHumanReview not set")
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "analyze") {
		t.Errorf("Errors = %v", state.Errors)
	}
}

func TestAddUsage(t *testing.T) {
	var state State

	state.AddUsage(nil) // must be a no-op
	state.AddUsage(&executor.Outcome{
		Result:        &executor.Result{TokensIn: 100, TokensOut: 50, Cost: 0.10},
		FallbacksUsed: 1,
		Log: []executor.ErrorEntry{
			{Stage: StageExtract, Message: "transient failure"},
		},
	})
	state.AddUsage(&executor.Outcome{
		Result: &executor.Result{TokensIn: 20, TokensOut: 10, Cost: 0.02},
	})

	if state.TokensIn != 120 || state.TokensOut != 60 {
		t.Errorf("tokens = %d in, %d out", state.TokensIn, state.TokensOut)
	}
	if math.Abs(state.TotalCost-0.12) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.12", state.TotalCost)
	}
	if state.FallbackCount != 1 {
		t.Errorf("FallbackCount = %d, want 1", state.FallbackCount)
	}
	if len(state.ExecutionLog) != 1 {
		t.Errorf("ExecutionLog length = %d, want 1", len(state.ExecutionLog))
	}
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := []RunStatus{StatusCompleted, StatusFailed, StatusCancelled}
	live := []RunStatus{StatusPending, StatusRunning, StatusAwaitingReview}

	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
