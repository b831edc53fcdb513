package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// noSleep replaces the backoff wait so retry tests run instantly.
func noSleep(e *Executor) {
	e.sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
}

func newTestExecutor(opts ...Option) *Executor {
	e := New(opts...)
	noSleep(e)
	return e
}

func succeedingCaller(model, content string) Caller {
	return Caller{
		Model: model,
		Complete: func(ctx context.Context) (*Result, error) {
			return &Result{Content: content, Model: model, TokensIn: 10, TokensOut: 5}, nil
		},
	}
}

func failingCaller(model string, err error) Caller {
	return Caller{
		Model: model,
		Complete: func(ctx context.Context) (*Result, error) {
			return nil, err
		},
	}
}

func TestExecutePrimarySucceeds(t *testing.T) {
	e := newTestExecutor()

	out, err := e.Execute(context.Background(), "extract",
		succeedingCaller("sonnet", "output"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result == nil || out.Result.Content != "output" {
		t.Errorf("Result = %+v", out.Result)
	}
	if out.FallbacksUsed != 0 {
		t.Errorf("FallbacksUsed = %d, want 0", out.FallbacksUsed)
	}
	if len(out.Log) != 1 || out.Log[0].Message != "completed" {
		t.Errorf("Log = %+v", out.Log)
	}
}

func TestExecuteTransientRetriesSameCaller(t *testing.T) {
	calls := 0
	caller := Caller{
		Model: "sonnet",
		Complete: func(ctx context.Context) (*Result, error) {
			calls++
			if calls < 3 {
				return nil, NewTransientError(errors.New("overloaded"))
			}
			return &Result{Content: "ok", Model: "sonnet"}, nil
		},
	}

	e := newTestExecutor()
	out, err := e.Execute(context.Background(), "extract", caller, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if out.FallbacksUsed != 0 {
		t.Errorf("FallbacksUsed = %d, want 0", out.FallbacksUsed)
	}
	// Two failed attempts plus the success.
	if len(out.Log) != 3 {
		t.Errorf("log entries = %d, want 3", len(out.Log))
	}
}

func TestExecuteContentErrorFallsBack(t *testing.T) {
	primaryCalls := 0
	primary := Caller{
		Model: "opus",
		Complete: func(ctx context.Context) (*Result, error) {
			primaryCalls++
			return nil, NewContentError(errors.New("malformed json"))
		},
	}

	e := newTestExecutor()
	out, err := e.Execute(context.Background(), "decompose",
		primary, []Caller{succeedingCaller("sonnet", "ok")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primaryCalls != 1 {
		t.Errorf("content error must not retry the same caller, got %d calls", primaryCalls)
	}
	if out.FallbacksUsed != 1 {
		t.Errorf("FallbacksUsed = %d, want 1", out.FallbacksUsed)
	}
	if out.Result.Model != "sonnet" {
		t.Errorf("Result.Model = %q, want sonnet", out.Result.Model)
	}
}

func TestExecuteFatalSkipsFallbacks(t *testing.T) {
	fallbackCalled := false
	fallback := Caller{
		Model: "haiku",
		Complete: func(ctx context.Context) (*Result, error) {
			fallbackCalled = true
			return &Result{Content: "ok"}, nil
		},
	}

	e := newTestExecutor()
	_, err := e.Execute(context.Background(), "extract",
		failingCaller("sonnet", NewFatalError(errors.New("invalid api key"))),
		[]Caller{fallback})
	if err == nil {
		t.Fatal("expected error")
	}
	if fallbackCalled {
		t.Error("fatal error must not fall back")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error type = %T", err)
	}
	if stageErr.Kind != KindFatal {
		t.Errorf("Kind = %q, want fatal", stageErr.Kind)
	}
}

func TestExecuteAllCallersExhausted(t *testing.T) {
	contentErr := NewContentError(errors.New("still malformed"))

	e := newTestExecutor()
	out, err := e.Execute(context.Background(), "validate",
		failingCaller("sonnet", contentErr),
		[]Caller{failingCaller("haiku", contentErr)})
	if err == nil {
		t.Fatal("expected error")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error type = %T", err)
	}
	if stageErr.Stage != "validate" || stageErr.Kind != KindContent {
		t.Errorf("StageError = %+v", stageErr)
	}
	// The attempt log survives the failure.
	if len(out.Log) != 2 {
		t.Errorf("log entries = %d, want 2", len(out.Log))
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	caller := Caller{
		Model: "sonnet",
		Complete: func(ctx context.Context) (*Result, error) {
			cancel()
			return nil, NewTransientError(errors.New("overloaded"))
		},
	}

	e := newTestExecutor()
	_, err := e.Execute(ctx, "extract", caller, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		t.Error("cancellation must not be wrapped as a stage failure")
	}
}

type recordingTracker struct {
	stage     string
	cost      float64
	tokensIn  int
	tokensOut int
	calls     int
}

func (r *recordingTracker) Record(stage string, cost float64, tokensIn, tokensOut int) {
	r.stage, r.cost, r.tokensIn, r.tokensOut = stage, cost, tokensIn, tokensOut
	r.calls++
}
func (r *recordingTracker) Total() float64        { return r.cost }
func (r *recordingTracker) Check() (bool, string) { return true, "" }

func TestExecuteReportsToTracker(t *testing.T) {
	tracker := &recordingTracker{}
	e := newTestExecutor(WithTracker(tracker))

	_, err := e.Execute(context.Background(), "analyze",
		succeedingCaller("opus", "output"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracker.calls != 1 {
		t.Fatalf("tracker calls = %d, want 1", tracker.calls)
	}
	if tracker.stage != "analyze" || tracker.tokensIn != 10 || tracker.tokensOut != 5 {
		t.Errorf("tracker saw %+v", tracker)
	}
	if tracker.cost <= 0 {
		t.Errorf("cost not estimated: %v", tracker.cost)
	}
}

type panickyTracker struct{}

func (panickyTracker) Record(string, float64, int, int) { panic("tracker bug") }
func (panickyTracker) Total() float64                   { return 0 }
func (panickyTracker) Check() (bool, string)            { return true, "" }

func TestExecuteContainsTrackerPanic(t *testing.T) {
	e := newTestExecutor(WithTracker(panickyTracker{}))

	out, err := e.Execute(context.Background(), "extract",
		succeedingCaller("sonnet", "output"), nil)
	if err != nil {
		t.Fatalf("tracker panic must not fail the stage: %v", err)
	}
	if out.Result == nil {
		t.Error("result lost to tracker panic")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"explicit transient", NewTransientError(errors.New("x")), KindTransient},
		{"explicit content", NewContentError(errors.New("x")), KindContent},
		{"explicit fatal", NewFatalError(errors.New("x")), KindFatal},
		{"wrapped transient", fmt.Errorf("stage: %w", NewTransientError(errors.New("x"))), KindTransient},
		{"deadline exceeded", context.DeadlineExceeded, KindTransient},
		{"rate limit text", errors.New("HTTP 429: Too Many Requests"), KindTransient},
		{"server error text", errors.New("received 503 service unavailable"), KindTransient},
		{"auth text", errors.New("401 Unauthorized"), KindFatal},
		{"permission text", errors.New("permission denied"), KindFatal},
		{"unrecognized defaults to content", errors.New("something odd happened"), KindContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	p := BackoffPolicy{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{0, 2 * time.Second},  // clamped to first attempt
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffPolicyNormalized(t *testing.T) {
	p := BackoffPolicy{}.normalized()
	def := DefaultBackoffPolicy()

	if p != def {
		t.Errorf("normalized zero policy = %+v, want defaults %+v", p, def)
	}

	custom := BackoffPolicy{MaxAttempts: 7}.normalized()
	if custom.MaxAttempts != 7 {
		t.Errorf("explicit MaxAttempts overwritten: %d", custom.MaxAttempts)
	}
	if custom.InitialDelay != def.InitialDelay {
		t.Errorf("zero InitialDelay not defaulted: %v", custom.InitialDelay)
	}
}
