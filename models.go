package reqflow

import (
	"github.com/randalmurphal/llmkit/model"
)

// =============================================================================
// Stage Model Selection
// =============================================================================
//
// Analysis and decomposition carry the reasoning load, so they default to
// the thinking tier. Extraction and validation are more mechanical and run
// on the default tier with a fast-tier fallback.

// DefaultStageModels maps each LLM stage to its primary model.
var DefaultStageModels = map[string]model.ModelName{
	StageExtract:   model.ModelSonnet,
	StageAnalyze:   model.ModelOpus,
	StageDecompose: model.ModelOpus,
	StageValidate:  model.ModelSonnet,
}

// DefaultStageFallbacks maps each LLM stage to its ordered fallback models.
var DefaultStageFallbacks = map[string][]model.ModelName{
	StageExtract:   {model.ModelHaiku},
	StageAnalyze:   {model.ModelSonnet},
	StageDecompose: {model.ModelSonnet},
	StageValidate:  {model.ModelHaiku},
}

// ModelChain returns the primary model followed by fallbacks for a stage.
// An override replaces the primary but keeps the standard fallbacks.
func ModelChain(stage, override string) []string {
	primary := string(DefaultStageModels[stage])
	if override != "" {
		primary = override
	}
	if primary == "" {
		primary = string(model.ModelSonnet)
	}

	chain := []string{primary}
	for _, m := range DefaultStageFallbacks[stage] {
		if string(m) != primary {
			chain = append(chain, string(m))
		}
	}
	return chain
}

// TierForStage returns the model tier appropriate for a stage.
func TierForStage(stage string) model.Tier {
	switch stage {
	case StageAnalyze, StageDecompose:
		return model.TierThinking
	case StageExtract, StageValidate:
		return model.TierDefault
	default:
		return model.TierFast
	}
}

// NewSelector creates a model selector using the stage-to-tier mapping.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(task any) model.Tier {
			if stage, ok := task.(string); ok {
				return TierForStage(stage)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}
