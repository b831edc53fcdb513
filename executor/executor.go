package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smokejel/reqflow/budget"
)

// Result is the successful output of a single caller invocation.
type Result struct {
	Content   string  `json:"content"`
	Model     string  `json:"model"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	Cost      float64 `json:"cost"`
}

// Caller is one way of performing a stage's external call: a model
// identifier plus a thunk that invokes it. The thunk should wrap parse and
// validation failures with NewContentError so the executor falls back
// instead of retrying.
type Caller struct {
	Model    string
	Complete func(ctx context.Context) (*Result, error)
}

// ErrorEntry is one line of the stage attempt log. Successful attempts are
// recorded too, with an empty Kind.
type ErrorEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Stage     string        `json:"stage"`
	Kind      Kind          `json:"kind,omitempty"`
	Message   string        `json:"message"`
	Attempt   int           `json:"attempt"`
	Delay     time.Duration `json:"delay,omitempty"`
	Model     string        `json:"model"`
}

// Outcome aggregates everything a stage execution produced, including the
// attempt log and fallback count, even when the stage ultimately failed.
type Outcome struct {
	Result        *Result
	FallbacksUsed int
	Log           []ErrorEntry
}

// StageError is the terminal failure of a stage, tagged with the
// classification of the error that killed it.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Executor runs stage callers with retry, fallback, and attempt logging.
type Executor struct {
	policy  BackoffPolicy
	tracker budget.Tracker
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy sets the backoff policy.
func WithPolicy(p BackoffPolicy) Option {
	return func(e *Executor) {
		e.policy = p.normalized()
	}
}

// WithTracker sets the cost tracker that successful calls report to.
func WithTracker(t budget.Tracker) Option {
	return func(e *Executor) {
		e.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an Executor with the default backoff policy.
func New(opts ...Option) *Executor {
	e := &Executor{
		policy: DefaultBackoffPolicy(),
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the primary caller, then fallbacks in order, according to
// the classification rules. The returned Outcome is always non-nil so the
// attempt log and fallback count survive a failure.
//
// Context cancellation is observed between attempts and during backoff
// waits; it propagates as ctx.Err(), never as a classified stage failure.
func (e *Executor) Execute(ctx context.Context, stage string, primary Caller, fallbacks []Caller) (*Outcome, error) {
	out := &Outcome{}
	callers := append([]Caller{primary}, fallbacks...)

	var lastErr error
	for i, caller := range callers {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := e.tryCaller(ctx, stage, caller, out)
		if err == nil {
			out.Result = res
			out.FallbacksUsed = i
			e.report(stage, res)
			if i > 0 {
				e.logger.Info("stage succeeded on fallback",
					"stage", stage, "model", caller.Model, "fallbacks_used", i)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		kind := Classify(err)
		if kind == KindFatal {
			return out, &StageError{Stage: stage, Kind: KindFatal, Err: err}
		}
		lastErr = err
		e.logger.Warn("caller exhausted, trying next fallback",
			"stage", stage, "model", caller.Model, "kind", kind, "error", err)
	}

	return out, &StageError{
		Stage: stage,
		Kind:  Classify(lastErr),
		Err:   fmt.Errorf("all %d callers exhausted: %w", len(callers), lastErr),
	}
}

// tryCaller runs one caller through its retry budget. Transient errors
// retry with backoff; anything else abandons the caller immediately.
func (e *Executor) tryCaller(ctx context.Context, stage string, caller Caller, out *Outcome) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		res, err := caller.Complete(ctx)
		if err == nil {
			out.Log = append(out.Log, ErrorEntry{
				Timestamp: time.Now(),
				Stage:     stage,
				Message:   "completed",
				Attempt:   attempt,
				Model:     caller.Model,
			})
			if res != nil && res.Cost == 0 {
				res.Cost = budget.EstimateCost(res.Model, res.TokensIn, res.TokensOut)
			}
			return res, nil
		}

		kind := Classify(err)
		retrying := kind == KindTransient && attempt < e.policy.MaxAttempts
		var delay time.Duration
		if retrying {
			delay = e.policy.Delay(attempt)
		}
		out.Log = append(out.Log, ErrorEntry{
			Timestamp: time.Now(),
			Stage:     stage,
			Kind:      kind,
			Message:   err.Error(),
			Attempt:   attempt,
			Delay:     delay,
			Model:     caller.Model,
		})
		lastErr = err

		if kind != KindTransient {
			return nil, err
		}
		if !retrying {
			break
		}
		e.logger.Debug("transient error, backing off",
			"stage", stage, "model", caller.Model, "attempt", attempt, "delay", delay)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// report forwards usage to the cost tracker. Tracking must never fail the
// stage, so a panicking tracker is contained here.
func (e *Executor) report(stage string, res *Result) {
	if e.tracker == nil || res == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("cost tracker panicked", "stage", stage, "panic", r)
		}
	}()
	e.tracker.Record(stage, res.Cost, res.TokensIn, res.TokensOut)
}

// sleepContext waits for the delay or context cancellation, whichever
// comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
