package reqflow

import (
	"context"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/smokejel/reqflow/artifact"
	"github.com/smokejel/reqflow/budget"
	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/document"
	"github.com/smokejel/reqflow/executor"
	"github.com/smokejel/reqflow/prompt"
)

// =============================================================================
// Service Context Keys
// =============================================================================

// serviceContextKey is a private type for context keys to avoid collisions.
type serviceContextKey string

const (
	llmServiceKey        serviceContextKey = "reqflow.llm"
	llmFactoryServiceKey serviceContextKey = "reqflow.llm_factory"
	executorServiceKey   serviceContextKey = "reqflow.executor"
	checkpointServiceKey serviceContextKey = "reqflow.checkpoint"
	trackerServiceKey    serviceContextKey = "reqflow.tracker"
	artifactServiceKey   serviceContextKey = "reqflow.artifacts"
	promptServiceKey     serviceContextKey = "reqflow.prompts"
	documentServiceKey   serviceContextKey = "reqflow.document"
	modelsServiceKey     serviceContextKey = "reqflow.models"
)

// =============================================================================
// LLM Client
// =============================================================================

// LLMFactory builds a client for a specific model identifier. Stages use
// it to construct primary and fallback callers.
type LLMFactory func(model string) llm.Client

// WithLLMClient adds an LLM client to the context.
func WithLLMClient(ctx context.Context, client llm.Client) context.Context {
	return context.WithValue(ctx, llmServiceKey, client)
}

// LLMFromContext retrieves the LLM client, or nil if not set.
func LLMFromContext(ctx context.Context) llm.Client {
	if client, ok := ctx.Value(llmServiceKey).(llm.Client); ok {
		return client
	}
	return nil
}

// WithLLMFactory adds a per-model client factory to the context.
func WithLLMFactory(ctx context.Context, factory LLMFactory) context.Context {
	return context.WithValue(ctx, llmFactoryServiceKey, factory)
}

// LLMFactoryFromContext retrieves the client factory. When no factory was
// injected it falls back to the single client, ignoring the model name.
func LLMFactoryFromContext(ctx context.Context) LLMFactory {
	if factory, ok := ctx.Value(llmFactoryServiceKey).(LLMFactory); ok {
		return factory
	}
	if client := LLMFromContext(ctx); client != nil {
		return func(string) llm.Client { return client }
	}
	return nil
}

// =============================================================================
// Stage Model Overrides
// =============================================================================

// WithStageModels adds per-stage primary model overrides to the context.
func WithStageModels(ctx context.Context, models map[string]string) context.Context {
	return context.WithValue(ctx, modelsServiceKey, models)
}

// StageModelsFromContext retrieves the stage model overrides, or nil.
func StageModelsFromContext(ctx context.Context) map[string]string {
	if models, ok := ctx.Value(modelsServiceKey).(map[string]string); ok {
		return models
	}
	return nil
}

// =============================================================================
// Stage Executor
// =============================================================================

// WithExecutor adds a stage executor to the context.
func WithExecutor(ctx context.Context, exec *executor.Executor) context.Context {
	return context.WithValue(ctx, executorServiceKey, exec)
}

// ExecutorFromContext retrieves the stage executor, or nil if not set.
func ExecutorFromContext(ctx context.Context) *executor.Executor {
	if exec, ok := ctx.Value(executorServiceKey).(*executor.Executor); ok {
		return exec
	}
	return nil
}

// =============================================================================
// Checkpoint Store
// =============================================================================

// WithCheckpointStore adds a checkpoint store to the context.
func WithCheckpointStore(ctx context.Context, store checkpoint.Store) context.Context {
	return context.WithValue(ctx, checkpointServiceKey, store)
}

// CheckpointStoreFromContext retrieves the checkpoint store, or nil.
func CheckpointStoreFromContext(ctx context.Context) checkpoint.Store {
	if store, ok := ctx.Value(checkpointServiceKey).(checkpoint.Store); ok {
		return store
	}
	return nil
}

// =============================================================================
// Budget Tracker
// =============================================================================

// WithTracker adds a budget tracker to the context.
func WithTracker(ctx context.Context, tracker budget.Tracker) context.Context {
	return context.WithValue(ctx, trackerServiceKey, tracker)
}

// TrackerFromContext retrieves the budget tracker, or nil if not set.
func TrackerFromContext(ctx context.Context) budget.Tracker {
	if tracker, ok := ctx.Value(trackerServiceKey).(budget.Tracker); ok {
		return tracker
	}
	return nil
}

// =============================================================================
// Artifacts
// =============================================================================

// WithArtifacts adds an artifact manager to the context.
func WithArtifacts(ctx context.Context, mgr *artifact.Manager) context.Context {
	return context.WithValue(ctx, artifactServiceKey, mgr)
}

// ArtifactsFromContext retrieves the artifact manager, or nil if not set.
func ArtifactsFromContext(ctx context.Context) *artifact.Manager {
	if mgr, ok := ctx.Value(artifactServiceKey).(*artifact.Manager); ok {
		return mgr
	}
	return nil
}

// =============================================================================
// Prompts
// =============================================================================

// WithPrompts adds a prompt loader to the context.
func WithPrompts(ctx context.Context, loader *prompt.Loader) context.Context {
	return context.WithValue(ctx, promptServiceKey, loader)
}

// PromptsFromContext retrieves the prompt loader, or nil if not set.
func PromptsFromContext(ctx context.Context) *prompt.Loader {
	if loader, ok := ctx.Value(promptServiceKey).(*prompt.Loader); ok {
		return loader
	}
	return nil
}

// =============================================================================
// Document Source
// =============================================================================

// WithDocumentSource adds a document source to the context.
func WithDocumentSource(ctx context.Context, src document.Source) context.Context {
	return context.WithValue(ctx, documentServiceKey, src)
}

// DocumentSourceFromContext retrieves the document source, or nil.
func DocumentSourceFromContext(ctx context.Context) document.Source {
	if src, ok := ctx.Value(documentServiceKey).(document.Source); ok {
		return src
	}
	return nil
}
