package reqflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/smokejel/reqflow/budget"
	"github.com/smokejel/reqflow/executor"
	"github.com/smokejel/reqflow/notify"
)

// =============================================================================
// Node Types
// =============================================================================

// NodeFunc is a function that processes state and returns updated state.
// This signature is compatible with flowgraph's NodeFunc[State].
type NodeFunc func(ctx flowgraph.Context, state State) (State, error)

// =============================================================================
// Node Wrappers
// =============================================================================

// WithCheckpoint wraps a node so the state is persisted before the node
// runs. Checkpointing the input means a crashed run resumes at the stage
// that was executing, not after it.
func WithCheckpoint(node NodeFunc, stageName string) NodeFunc {
	return func(ctx flowgraph.Context, state State) (State, error) {
		state.CurrentStage = stageName
		if state.Status == StatusPending {
			state.Status = StatusRunning
		}

		if store := CheckpointStoreFromContext(ctx); store != nil {
			rec, err := state.Record()
			if err != nil {
				return state, err
			}
			if err := store.Save(ctx, rec); err != nil {
				return state, fmt.Errorf("checkpoint before %s: %w", stageName, err)
			}
		}

		return node(ctx, state)
	}
}

// WithBudgetGuard wraps a node with a spend ceiling check. An exhausted
// budget aborts the run before the stage spends more.
func WithBudgetGuard(node NodeFunc) NodeFunc {
	return func(ctx flowgraph.Context, state State) (State, error) {
		if tracker := TrackerFromContext(ctx); tracker != nil {
			if ok, msg := tracker.Check(); !ok {
				return state, fmt.Errorf("%w: %s", budget.ErrExceeded, msg)
			}
		}
		return node(ctx, state)
	}
}

// stageProgress maps each pipeline stage to the percent of the run that is
// complete once the stage finishes. Human review is a gate, not a stage, so
// it carries no progress of its own.
var stageProgress = map[string]int{
	StageExtract:   20,
	StageAnalyze:   40,
	StageDecompose: 60,
	StageValidate:  80,
	StageDocument:  100,
}

// WithStageEvents wraps a node with stage lifecycle event emission.
func WithStageEvents(node NodeFunc, stageName string) NodeFunc {
	return func(ctx flowgraph.Context, state State) (State, error) {
		started := notify.NewEvent(notify.EventStageStarted, state.RunID, stageName,
			fmt.Sprintf("stage %s started", stageName))
		started.Subsystem = state.Subsystem
		notify.Emit(ctx, started)

		result, err := node(ctx, state)
		if err != nil {
			return result, err
		}

		completed := notify.NewEvent(notify.EventStageCompleted, state.RunID, stageName,
			fmt.Sprintf("stage %s completed", stageName))
		completed.Subsystem = result.Subsystem
		completed = completed.WithMetadata("total_cost", result.TotalCost)
		notify.Emit(ctx, completed)

		if percent, ok := stageProgress[stageName]; ok {
			progress := notify.NewEvent(notify.EventProgressUpdate, result.RunID, stageName,
				fmt.Sprintf("%d%% complete", percent))
			progress.Subsystem = result.Subsystem
			progress = progress.WithMetadata("percent", percent)
			notify.Emit(ctx, progress)
		}

		return result, nil
	}
}

// WithTiming wraps a node with timing metrics.
func WithTiming(node NodeFunc, stageName string) NodeFunc {
	return func(ctx flowgraph.Context, state State) (State, error) {
		start := time.Now()
		result, err := node(ctx, state)
		slog.Debug("stage finished",
			"run_id", state.RunID, "stage", stageName, "duration", time.Since(start), "err", err)
		return result, err
	}
}

// =============================================================================
// Stage Execution Helpers
// =============================================================================

// buildCallers constructs the primary and fallback callers for one stage
// from the model chain and the injected client factory. The check hook
// validates model output inside the caller, so a malformed response
// surfaces as a content error and the executor moves to the next fallback.
func buildCallers(ctx flowgraph.Context, stage, userPrompt string, check func(content string) error) (executor.Caller, []executor.Caller, error) {
	factory := LLMFactoryFromContext(ctx)
	if factory == nil {
		return executor.Caller{}, nil, fmt.Errorf("llm client not found in context")
	}

	chain := ModelChain(stage, StageModelsFromContext(ctx)[stage])
	callers := make([]executor.Caller, 0, len(chain))
	for _, model := range chain {
		model := model
		client := factory(model)
		if client == nil {
			continue
		}
		callers = append(callers, executor.Caller{
			Model: model,
			Complete: func(cctx context.Context) (*executor.Result, error) {
				resp, err := client.Complete(cctx, llm.CompletionRequest{
					Messages: []llm.Message{{Role: llm.RoleUser, Content: userPrompt}},
				})
				if err != nil {
					return nil, err
				}
				if check != nil {
					if err := check(resp.Content); err != nil {
						return nil, err
					}
				}
				return &executor.Result{
					Content:   resp.Content,
					Model:     model,
					TokensIn:  resp.Usage.InputTokens,
					TokensOut: resp.Usage.OutputTokens,
				}, nil
			},
		})
	}
	if len(callers) == 0 {
		return executor.Caller{}, nil, fmt.Errorf("no llm clients available for stage %s", stage)
	}
	return callers[0], callers[1:], nil
}

// runStage executes one LLM stage through the executor and folds the
// outcome into the state. On terminal stage failure the error is recorded
// in the state and a nil error is returned so routing can divert to human
// review; only context cancellation propagates as an error.
func runStage(ctx flowgraph.Context, state *State, stage, userPrompt string, check func(content string) error) (string, bool, error) {
	primary, fallbacks, err := buildCallers(ctx, stage, userPrompt, check)
	if err != nil {
		state.RecordStageFailure(stage, err)
		return "", false, nil
	}

	exec := ExecutorFromContext(ctx)
	if exec == nil {
		exec = executor.New(executor.WithTracker(TrackerFromContext(ctx)))
	}

	out, execErr := exec.Execute(ctx, stage, primary, fallbacks)
	state.AddUsage(out)

	if execErr != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		state.RecordStageFailure(stage, execErr)
		return "", false, nil
	}
	return out.Result.Content, true, nil
}

// saveStageArtifact persists a stage output when an artifact manager is
// configured. Artifact failures never fail the stage.
func saveStageArtifact(ctx flowgraph.Context, runID, name string, v any) {
	mgr := ArtifactsFromContext(ctx)
	if mgr == nil {
		return
	}
	if _, err := mgr.SaveJSON(runID, name, v); err != nil {
		slog.Warn("artifact save failed", "run_id", runID, "artifact", name, "error", err)
	}
}

// loadPrompt renders a stage system prompt, falling back to empty when no
// loader is configured.
func loadPrompt(ctx flowgraph.Context, name string, vars map[string]any) string {
	loader := PromptsFromContext(ctx)
	if loader == nil {
		return ""
	}
	rendered, err := loader.LoadWithVars(name, vars)
	if err != nil {
		slog.Warn("prompt load failed", "prompt", name, "error", err)
		return ""
	}
	return rendered
}
