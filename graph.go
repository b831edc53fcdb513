package reqflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/notify"
	"github.com/smokejel/reqflow/review"
)

// =============================================================================
// Machine
// =============================================================================

// Machine drives decomposition runs through the stage graph. It is
// stateless between calls; everything a run needs lives in the State and
// the services injected into the context, so independent runs can execute
// concurrently.
type Machine struct {
	logger *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates a Machine.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// Graph Construction
// =============================================================================

// node converts a wrapped NodeFunc for graph registration.
func node(fn NodeFunc) flowgraph.NodeFunc[State] {
	return flowgraph.NodeFunc[State](fn)
}

// router adapts a pure routing function to flowgraph's router signature.
func router(route func(State) string) func(flowgraph.Context, State) string {
	return func(_ flowgraph.Context, state State) string {
		return route(state)
	}
}

// BuildGraph assembles the stage graph with the given entry node. The
// graph is compiled per run so resumed runs can enter at any stage.
func BuildGraph(entry string) *flowgraph.Graph[State] {
	llmNode := func(fn NodeFunc, stage string) flowgraph.NodeFunc[State] {
		return node(WithBudgetGuard(WithCheckpoint(WithStageEvents(WithTiming(fn, stage), stage), stage)))
	}
	plainNode := func(fn NodeFunc, stage string) flowgraph.NodeFunc[State] {
		return node(WithCheckpoint(WithStageEvents(WithTiming(fn, stage), stage), stage))
	}

	return flowgraph.NewGraph[State]().
		AddNode(StageExtract, llmNode(ExtractNode, StageExtract)).
		AddNode(StageAnalyze, llmNode(AnalyzeNode, StageAnalyze)).
		AddNode(StageDecompose, llmNode(DecomposeNode, StageDecompose)).
		AddNode(StageValidate, llmNode(ValidateNode, StageValidate)).
		AddNode(StageHumanReview, plainNode(HumanReviewNode, StageHumanReview)).
		AddNode(StageDocument, plainNode(DocumentNode, StageDocument)).
		AddConditionalEdge(StageExtract, router(RouteAfterExtract)).
		AddConditionalEdge(StageAnalyze, router(RouteAfterAnalyze)).
		AddEdge(StageDecompose, StageValidate).
		AddConditionalEdge(StageValidate, router(RouteAfterValidation)).
		AddConditionalEdge(StageHumanReview, router(RouteAfterHumanReview)).
		AddEdge(StageDocument, flowgraph.END).
		SetEntry(entry)
}

// =============================================================================
// Run Lifecycle
// =============================================================================

// Run executes a run from its current stage to a terminal state or a
// human-review suspension. The returned state's Status tells which:
// completed, awaiting_review, failed, or cancelled.
func (m *Machine) Run(ctx context.Context, state State) (State, error) {
	entry := state.CurrentStage
	if entry == "" {
		entry = StageExtract
	}
	return m.run(ctx, state, entry)
}

// Resume reloads a checkpointed run and continues it from the stage that
// was executing when it stopped.
func (m *Machine) Resume(ctx context.Context, runID string) (State, error) {
	store := CheckpointStoreFromContext(ctx)
	if store == nil {
		return State{}, fmt.Errorf("no checkpoint store configured")
	}

	rec, err := store.Load(ctx, runID)
	if err != nil {
		return State{}, err
	}

	switch RunStatus(rec.Status) {
	case StatusAwaitingReview:
		return State{}, ErrAwaitingDecision
	case StatusCompleted, StatusCancelled:
		return State{}, fmt.Errorf("run %s already finished with status %s", runID, rec.Status)
	}

	state, err := StateFromRecord(rec)
	if err != nil {
		return State{}, err
	}

	entry := rec.Stage
	if entry == "" {
		entry = StageExtract
	}
	m.logger.Info("resuming run", "run_id", runID, "stage", entry)
	return m.run(ctx, state, entry)
}

// Submit records a review decision for a suspended run and continues it.
func (m *Machine) Submit(ctx context.Context, runID string, decision review.Decision) (State, error) {
	store := CheckpointStoreFromContext(ctx)
	if store == nil {
		return State{}, fmt.Errorf("no checkpoint store configured")
	}

	rec, err := store.Load(ctx, runID)
	if err != nil {
		return State{}, err
	}
	if RunStatus(rec.Status) != StatusAwaitingReview {
		return State{}, fmt.Errorf("%w: run %s has status %s", ErrNotAwaitingReview, runID, rec.Status)
	}

	state, err := StateFromRecord(rec)
	if err != nil {
		return State{}, err
	}

	state, err = ApplyDecision(state, decision)
	if err != nil {
		return State{}, err
	}

	state.Status = StatusRunning
	m.logger.Info("review decision recorded",
		"run_id", runID, "approved", decision.Approved)

	// Re-enter at the review node; with the decision recorded it passes
	// straight through to its router.
	return m.run(ctx, state, StageHumanReview)
}

// run compiles the graph, executes it, and settles the terminal status.
func (m *Machine) run(ctx context.Context, state State, entry string) (State, error) {
	compiled, err := BuildGraph(entry).Compile()
	if err != nil {
		return state, fmt.Errorf("compile graph: %w", err)
	}

	fctx := m.flowContext(ctx)

	m.logger.Info("run started",
		"run_id", state.RunID, "subsystem", state.Subsystem, "entry", entry)

	result, runErr := compiled.Run(fctx, state)

	switch {
	case runErr == nil:
		result.Status = StatusCompleted
		result.FinalizeDuration()
		m.saveCheckpoint(ctx, result)
		m.emit(ctx, notify.NewEvent(notify.EventRunCompleted, result.RunID, "",
			result.Summary()), result.Subsystem)
		m.logger.Info("run completed", "run_id", result.RunID, "cost", result.TotalCost)
		return result, nil

	case IsPending(runErr):
		suspended := m.latestState(ctx, state)
		suspended.Status = StatusAwaitingReview
		m.saveCheckpoint(ctx, suspended)
		m.logger.Info("run suspended for review", "run_id", suspended.RunID)
		return suspended, nil

	case ctx.Err() != nil:
		// The run context is gone; checkpoint on a detached context so
		// the cancellation still gets persisted.
		saveCtx := context.WithoutCancel(ctx)
		cancelled := m.latestState(saveCtx, state)
		cancelled.Status = StatusCancelled
		cancelled.FinalizeDuration()
		m.saveCheckpoint(saveCtx, cancelled)
		m.emit(saveCtx, notify.NewEvent(notify.EventRunCancelled, cancelled.RunID, "",
			"run cancelled").WithSeverity(notify.SeverityWarning), cancelled.Subsystem)
		m.logger.Warn("run cancelled", "run_id", cancelled.RunID)
		return cancelled, ctx.Err()

	default:
		failed := m.latestState(ctx, state)
		failed.Status = StatusFailed
		failed.Errors = append(failed.Errors, runErr.Error())
		failed.FinalizeDuration()
		m.saveCheckpoint(ctx, failed)
		m.emit(ctx, notify.NewEvent(notify.EventRunFailed, failed.RunID, failed.CurrentStage,
			runErr.Error()).WithSeverity(notify.SeverityError), failed.Subsystem)
		m.logger.Error("run failed", "run_id", failed.RunID, "error", runErr)
		return failed, runErr
	}
}

// flowContext wraps the service context for flowgraph execution.
func (m *Machine) flowContext(ctx context.Context) flowgraph.Context {
	if client := LLMFromContext(ctx); client != nil {
		return flowgraph.NewContext(ctx, flowgraph.WithLLM(client))
	}
	return flowgraph.NewContext(ctx)
}

// latestState reloads the most recent checkpoint for the run, falling
// back to the in-memory state when no store is configured. Stages
// checkpoint their input, so the stored state reflects the stage that was
// executing when the run stopped.
func (m *Machine) latestState(ctx context.Context, fallback State) State {
	store := CheckpointStoreFromContext(ctx)
	if store == nil {
		return fallback
	}
	rec, err := store.Load(ctx, fallback.RunID)
	if err != nil {
		if err != checkpoint.ErrNotFound {
			m.logger.Warn("checkpoint reload failed", "run_id", fallback.RunID, "error", err)
		}
		return fallback
	}
	state, err := StateFromRecord(rec)
	if err != nil {
		m.logger.Warn("checkpoint decode failed", "run_id", fallback.RunID, "error", err)
		return fallback
	}
	return state
}

// saveCheckpoint persists the state, logging rather than failing on error
// since the run outcome is already decided at this point.
func (m *Machine) saveCheckpoint(ctx context.Context, state State) {
	store := CheckpointStoreFromContext(ctx)
	if store == nil {
		return
	}
	rec, err := state.Record()
	if err == nil {
		err = store.Save(ctx, rec)
	}
	if err != nil {
		m.logger.Error("final checkpoint failed", "run_id", state.RunID, "error", err)
	}

	if state.Status.Terminal() {
		if mgr := ArtifactsFromContext(ctx); mgr != nil {
			if _, err := mgr.SaveJSON(state.RunID, "state", state); err != nil {
				m.logger.Warn("state artifact save failed", "run_id", state.RunID, "error", err)
			}
		}
	}
}

// emit sends a run lifecycle event with the subsystem attached.
func (m *Machine) emit(ctx context.Context, event notify.Event, subsystem string) {
	event.Subsystem = subsystem
	notify.Emit(ctx, event)
}
