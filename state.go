package reqflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/executor"
)

// =============================================================================
// Stages and Statuses
// =============================================================================

// Stage names, which double as graph node names.
const (
	StageExtract     = "extract"
	StageAnalyze     = "analyze"
	StageDecompose   = "decompose"
	StageValidate    = "validate"
	StageHumanReview = "human_review"
	StageDocument    = "document"
)

// llmStages are the stages that call out to a model, in pipeline order.
var llmStages = []string{StageExtract, StageAnalyze, StageDecompose, StageValidate}

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	StatusPending        RunStatus = "pending"
	StatusRunning        RunStatus = "running"
	StatusAwaitingReview RunStatus = "awaiting_review"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// =============================================================================
// Embeddable State Components
// =============================================================================

// UsageState accumulates token and cost metrics across stages.
type UsageState struct {
	TokensIn      int           `json:"tokens_in"`
	TokensOut     int           `json:"tokens_out"`
	TotalCost     float64       `json:"total_cost"`
	FallbackCount int           `json:"fallback_count"`
	StartTime     time.Time     `json:"start_time"`
	TotalDuration time.Duration `json:"total_duration,omitempty"`
}

// =============================================================================
// State - Full Pipeline State
// =============================================================================

// State is the complete state of one decomposition run. It flows through
// the graph by value; nodes return an updated copy.
type State struct {
	// Identification
	RunID     string `json:"run_id"`
	Subsystem string `json:"subsystem"`

	// Input
	SourceDocumentPath string `json:"source_document_path,omitempty"`
	SourceDocument     string `json:"source_document,omitempty"`
	SourceType         string `json:"source_type,omitempty"`

	// Stage outputs
	ExtractedRequirements  []Requirement         `json:"extracted_requirements,omitempty"`
	AnalysisSummary        string                `json:"analysis_summary,omitempty"`
	RelevantRequirements   []string              `json:"relevant_requirements,omitempty"`
	DecomposedRequirements []DetailedRequirement `json:"decomposed_requirements,omitempty"`
	QualityMetrics         *QualityMetrics       `json:"quality_metrics,omitempty"`
	QualityPassed          bool                  `json:"quality_passed"`
	OutputDocumentPath     string                `json:"output_document_path,omitempty"`

	// Refinement loop
	IterationCount   int     `json:"iteration_count"`
	MaxIterations    int     `json:"max_iterations"`
	QualityThreshold float64 `json:"quality_threshold"`
	Weights          Weights `json:"weights"`

	// Human review
	ReviewBeforeDecompose bool   `json:"review_before_decompose,omitempty"`
	RequiresHumanReview   bool   `json:"requires_human_review,omitempty"`
	HumanFeedback         string `json:"human_feedback,omitempty"`

	// Execution tracking. Errors holds failures the run has not yet been
	// resumed past; ResolvedErrors keeps the ones a reviewer decision
	// already dealt with, so the full history survives the run.
	Status         RunStatus             `json:"status"`
	CurrentStage   string                `json:"current_stage,omitempty"`
	Errors         []string              `json:"errors,omitempty"`
	ResolvedErrors []string              `json:"resolved_errors,omitempty"`
	ExecutionLog   []executor.ErrorEntry `json:"execution_log,omitempty"`

	UsageState
}

// NewState creates the state for a fresh run targeting one subsystem.
func NewState(subsystem string) State {
	return State{
		RunID:            generateRunID(subsystem),
		Subsystem:        subsystem,
		Status:           StatusPending,
		CurrentStage:     StageExtract,
		MaxIterations:    3,
		QualityThreshold: 0.80,
		Weights:          DefaultWeights(),
		UsageState: UsageState{
			StartTime: time.Now(),
		},
	}
}

// WithSourcePath sets the source document path.
func (s State) WithSourcePath(path string) State {
	s.SourceDocumentPath = path
	return s
}

// WithQualityThreshold sets the quality gate threshold.
func (s State) WithQualityThreshold(threshold float64) State {
	s.QualityThreshold = threshold
	return s
}

// WithMaxIterations sets the refinement iteration cap.
func (s State) WithMaxIterations(max int) State {
	s.MaxIterations = max
	return s
}

// WithReviewBeforeDecompose requests a human checkpoint between analysis
// and decomposition.
func (s State) WithReviewBeforeDecompose(enabled bool) State {
	s.ReviewBeforeDecompose = enabled
	return s
}

// WithWeights sets the quality dimension weights.
func (s State) WithWeights(w Weights) State {
	s.Weights = w
	return s
}

// AddUsage folds one stage outcome into the run totals.
func (s *State) AddUsage(out *executor.Outcome) {
	if out == nil {
		return
	}
	if out.Result != nil {
		s.TokensIn += out.Result.TokensIn
		s.TokensOut += out.Result.TokensOut
		s.TotalCost += out.Result.Cost
	}
	s.FallbackCount += out.FallbacksUsed
	s.ExecutionLog = append(s.ExecutionLog, out.Log...)
}

// RecordStageFailure logs a terminal stage failure and flags the run for
// human review. The run itself keeps going so a reviewer sees the context.
func (s *State) RecordStageFailure(stage string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", stage, err))
	s.RequiresHumanReview = true
}

// FinalizeDuration sets total duration from start time.
func (s *State) FinalizeDuration() {
	s.TotalDuration = time.Since(s.StartTime)
}

// =============================================================================
// State Validation
// =============================================================================

// StateRequirement names a state prerequisite a node can demand.
type StateRequirement string

const (
	RequireSource     StateRequirement = "source"
	RequireExtracted  StateRequirement = "extracted"
	RequireAnalysis   StateRequirement = "analysis"
	RequireDecomposed StateRequirement = "decomposed"
	RequireMetrics    StateRequirement = "metrics"
)

// Validate checks that the state carries the required fields.
func (s State) Validate(requirements ...StateRequirement) error {
	for _, req := range requirements {
		switch req {
		case RequireSource:
			if s.SourceDocument == "" && s.SourceDocumentPath == "" {
				return fmt.Errorf("source document required")
			}
		case RequireExtracted:
			if len(s.ExtractedRequirements) == 0 {
				return fmt.Errorf("extracted requirements required")
			}
		case RequireAnalysis:
			if s.AnalysisSummary == "" {
				return fmt.Errorf("analysis required")
			}
		case RequireDecomposed:
			if len(s.DecomposedRequirements) == 0 {
				return fmt.Errorf("decomposed requirements required")
			}
		case RequireMetrics:
			if s.QualityMetrics == nil {
				return fmt.Errorf("quality metrics required")
			}
		default:
			return fmt.Errorf("unknown requirement: %s", req)
		}
	}
	return nil
}

// =============================================================================
// Checkpointing
// =============================================================================

// Record serializes the state into a checkpoint record.
func (s State) Record() (checkpoint.Record, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return checkpoint.Record{}, fmt.Errorf("marshal state: %w", err)
	}
	return checkpoint.Record{
		RunID:     s.RunID,
		Status:    string(s.Status),
		Stage:     s.CurrentStage,
		Subsystem: s.Subsystem,
		UpdatedAt: time.Now(),
		State:     data,
	}, nil
}

// StateFromRecord deserializes a checkpoint record back into a State.
func StateFromRecord(rec checkpoint.Record) (State, error) {
	var s State
	if err := json.Unmarshal(rec.State, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal state for run %s: %w", rec.RunID, err)
	}
	return s, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// generateRunID creates a unique, sortable run ID from the start time and
// the subsystem name.
func generateRunID(subsystem string) string {
	return time.Now().Format("20060102_150405") + "_" + subsystemSlug(subsystem)
}

// subsystemSlug normalizes a subsystem name for use in run IDs and
// filenames.
func subsystemSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "subsystem"
	}
	return b.String()
}

// =============================================================================
// State Summary
// =============================================================================

// Summary returns a human-readable one-line summary of the state.
func (s State) Summary() string {
	var progress string
	switch {
	case s.OutputDocumentPath != "":
		progress = "documented"
	case s.QualityPassed:
		progress = "validated"
	case len(s.DecomposedRequirements) > 0:
		progress = fmt.Sprintf("decomposed (iteration %d/%d)", s.IterationCount, s.MaxIterations)
	case s.AnalysisSummary != "":
		progress = "analyzed"
	case len(s.ExtractedRequirements) > 0:
		progress = fmt.Sprintf("extracted %d requirements", len(s.ExtractedRequirements))
	default:
		progress = "pending"
	}

	return fmt.Sprintf("Run %s [%s] %s: %s (tokens: %d in, %d out, cost: $%.4f)",
		s.RunID, s.Status, s.Subsystem, progress,
		s.TokensIn, s.TokensOut, s.TotalCost)
}
