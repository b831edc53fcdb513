package reqflow

import (
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// AnalyzeNode determines which extracted requirements are relevant to the
// target subsystem and summarizes the subsystem's role.
//
// Prerequisites: state.ExtractedRequirements non-empty
// Updates: state.AnalysisSummary, state.RelevantRequirements
func AnalyzeNode(ctx flowgraph.Context, state State) (State, error) {
	if err := state.Validate(RequireExtracted); err != nil {
		state.RecordStageFailure(StageAnalyze, err)
		return state, nil
	}

	userPrompt := loadPrompt(ctx, "analyze", map[string]any{
		"Subsystem":    state.Subsystem,
		"Requirements": formatRequirements(state.ExtractedRequirements),
	})
	if userPrompt == "" {
		state.RecordStageFailure(StageAnalyze, fmt.Errorf("no prompt loader configured"))
		return state, nil
	}

	content, ok, err := runStage(ctx, &state, StageAnalyze, userPrompt, func(content string) error {
		_, _, err := parseAnalyzeOutput(content, state.ExtractedRequirements)
		return err
	})
	if err != nil || !ok {
		return state, err
	}

	summary, relevant, err := parseAnalyzeOutput(content, state.ExtractedRequirements)
	if err != nil {
		state.RecordStageFailure(StageAnalyze, err)
		return state, nil
	}

	state.AnalysisSummary = summary
	state.RelevantRequirements = relevant
	saveStageArtifact(ctx, state.RunID, "analysis", map[string]any{
		"analysis_summary":      summary,
		"relevant_requirements": relevant,
	})

	return state, nil
}
