package reqflow

import (
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// DecomposeNode derives subsystem requirements from the relevant system
// requirements. On revision passes it feeds the previous iteration's
// quality issues and any reviewer feedback back into the prompt, and the
// new output replaces the previous decomposition wholesale.
//
// Prerequisites: state.AnalysisSummary set
// Updates: state.DecomposedRequirements, state.IterationCount; consumes
// state.HumanFeedback
func DecomposeNode(ctx flowgraph.Context, state State) (State, error) {
	if err := state.Validate(RequireAnalysis); err != nil {
		state.RecordStageFailure(StageDecompose, err)
		return state, nil
	}

	// A non-empty decomposition means this is a revision cycle.
	if len(state.DecomposedRequirements) > 0 {
		state.IterationCount++
	}

	vars := map[string]any{
		"Subsystem":    state.Subsystem,
		"Prefix":       requirementPrefix(state.Subsystem),
		"Analysis":     state.AnalysisSummary,
		"Requirements": formatRelevantRequirements(state.ExtractedRequirements, state.RelevantRequirements),
		"Feedback":     state.HumanFeedback,
	}

	// The reviewer's decision is consumed by this pass. Clearing it keeps
	// the recorded decision one-shot: a later escalation blocks for a fresh
	// decision instead of replaying this one.
	state.HumanFeedback = ""
	if state.QualityMetrics != nil && len(state.QualityMetrics.Issues) > 0 {
		vars["Issues"] = formatIssues(state.QualityMetrics.Issues)
	}

	userPrompt := loadPrompt(ctx, "decompose", vars)
	if userPrompt == "" {
		state.RecordStageFailure(StageDecompose, fmt.Errorf("no prompt loader configured"))
		return state, nil
	}

	content, ok, err := runStage(ctx, &state, StageDecompose, userPrompt, func(content string) error {
		_, err := parseDecomposeOutput(content, state.Subsystem)
		return err
	})
	if err != nil || !ok {
		return state, err
	}

	decomposed, err := parseDecomposeOutput(content, state.Subsystem)
	if err != nil {
		state.RecordStageFailure(StageDecompose, err)
		return state, nil
	}

	// Replace, never append: each pass is a complete decomposition.
	state.DecomposedRequirements = decomposed
	state.QualityMetrics = nil
	state.QualityPassed = false
	saveStageArtifact(ctx, state.RunID, "decomposed_requirements", decomposed)

	return state, nil
}
