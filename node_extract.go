package reqflow

import (
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/smokejel/reqflow/document"
)

// ExtractNode reads the source document and extracts system-level
// requirements from it.
//
// Prerequisites: state.SourceDocumentPath or state.SourceDocument set
// Updates: state.SourceDocument, state.SourceType, state.ExtractedRequirements
//
// Extracted requirements are immutable: re-entering this node on a resumed
// run is a no-op once extraction has happened.
func ExtractNode(ctx flowgraph.Context, state State) (State, error) {
	if len(state.ExtractedRequirements) > 0 {
		return state, nil
	}

	if err := state.Validate(RequireSource); err != nil {
		state.RecordStageFailure(StageExtract, err)
		return state, nil
	}

	if state.SourceDocument == "" {
		src := DocumentSourceFromContext(ctx)
		if src == nil {
			src = document.NewFileSource()
		}
		text, typ, err := src.Read(state.SourceDocumentPath)
		if err != nil {
			state.RecordStageFailure(StageExtract, err)
			return state, nil
		}
		state.SourceDocument = text
		state.SourceType = string(typ)
	}

	userPrompt := loadPrompt(ctx, "extract", map[string]any{
		"Document": state.SourceDocument,
	})
	if userPrompt == "" {
		state.RecordStageFailure(StageExtract, fmt.Errorf("no prompt loader configured"))
		return state, nil
	}

	content, ok, err := runStage(ctx, &state, StageExtract, userPrompt, func(content string) error {
		_, err := parseExtractOutput(content)
		return err
	})
	if err != nil || !ok {
		return state, err
	}

	requirements, err := parseExtractOutput(content)
	if err != nil {
		state.RecordStageFailure(StageExtract, err)
		return state, nil
	}
	if len(requirements) == 0 {
		state.RecordStageFailure(StageExtract,
			fmt.Errorf("no requirements found in source document"))
		return state, nil
	}

	state.ExtractedRequirements = requirements
	saveStageArtifact(ctx, state.RunID, "extracted_requirements", requirements)

	return state, nil
}
