package reqflow

import (
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// ValidateNode assesses the quality of the decomposed requirements and
// applies the quality gate.
//
// Prerequisites: a completed decompose pass
// Updates: state.QualityMetrics, state.QualityPassed, state.RequiresHumanReview
//
// A run already flagged for human review passes through untouched so the
// router can divert it. An empty decomposition is a valid terminal
// outcome: the subsystem has no requirements allocated to it, the gate
// passes with perfect scores, and no model is called.
func ValidateNode(ctx flowgraph.Context, state State) (State, error) {
	if state.RequiresHumanReview || len(state.Errors) > 0 {
		return state, nil
	}

	if len(state.DecomposedRequirements) == 0 {
		state.QualityMetrics = PerfectMetrics()
		state.QualityPassed = true
		return state, nil
	}

	userPrompt := loadPrompt(ctx, "validate", map[string]any{
		"Subsystem":    state.Subsystem,
		"Requirements": formatRelevantRequirements(state.ExtractedRequirements, state.RelevantRequirements),
		"Decomposed":   formatDecomposed(state.DecomposedRequirements),
	})
	if userPrompt == "" {
		state.RecordStageFailure(StageValidate, fmt.Errorf("no prompt loader configured"))
		return state, nil
	}

	content, ok, err := runStage(ctx, &state, StageValidate, userPrompt, func(content string) error {
		_, err := parseValidateOutput(content)
		return err
	})
	if err != nil || !ok {
		return state, err
	}

	metrics, err := parseValidateOutput(content)
	if err != nil {
		state.RecordStageFailure(StageValidate, err)
		return state, nil
	}

	// Orphaned trace links are detected deterministically, independent of
	// the model's own traceability judgment.
	if trace := state.Traceability(); trace.HasOrphans() {
		for _, id := range trace.Orphans {
			metrics.Issues = append(metrics.Issues, QualityIssue{
				RequirementID: id,
				Dimension:     "traceability",
				Severity:      SeverityCritical,
				Description:   "requirement has a missing or dangling parent_id",
			})
		}
	}

	// The overall score comes from configured weights, never the model.
	metrics.OverallScore = state.Weights.Score(metrics)

	state.QualityMetrics = metrics
	state.QualityPassed = ApplyGate(metrics, state.QualityThreshold)
	if !state.QualityPassed && NeedsHumanReview(metrics, state.IterationCount, state.MaxIterations) {
		state.RequiresHumanReview = true
	}

	saveStageArtifact(ctx, state.RunID, "quality_metrics", metrics)
	saveStageArtifact(ctx, state.RunID, "traceability_matrix", state.Traceability())

	return state, nil
}
