package integrationtest

import (
	"context"
	"sync"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/smokejel/reqflow"
	"github.com/smokejel/reqflow/artifact"
	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/config"
	"github.com/smokejel/reqflow/notify"
	"github.com/smokejel/reqflow/prompt"
	"github.com/smokejel/reqflow/review"
	"github.com/smokejel/reqflow/testutil"
)

// harness bundles a service set around a mock LLM so tests can run the
// pipeline end to end and inspect checkpoints, artifacts, and events.
type harness struct {
	services *reqflow.Services
	store    *checkpoint.MemoryStore
	events   *eventRecorder
	cfg      *config.Config
	baseDir  string
}

// setupHarness builds a harness with in-memory checkpoints and a
// temp-dir artifact store.
func setupHarness(t *testing.T, client llm.Client) *harness {
	t.Helper()

	baseDir := t.TempDir()
	store := checkpoint.NewMemoryStore()
	events := &eventRecorder{}

	cfg := config.Default()
	cfg.BaseDir = baseDir

	services := &reqflow.Services{
		LLM:         client,
		LLMFactory:  func(string) llm.Client { return client },
		Checkpoints: store,
		Notifier:    events,
		Artifacts:   artifact.NewManager(baseDir),
		Prompts:     prompt.NewLoader(baseDir),
	}

	return &harness{
		services: services,
		store:    store,
		events:   events,
		cfg:      cfg,
		baseDir:  baseDir,
	}
}

// ctx returns a context with all harness services injected.
func (h *harness) ctx(t *testing.T) context.Context {
	t.Helper()
	return h.services.InjectAll(testutil.TestContext(t))
}

// newState builds a run state pointing at a default source document.
func (h *harness) newState(t *testing.T, subsystem string) reqflow.State {
	t.Helper()
	sourcePath := testutil.WriteSourceDocument(t, h.baseDir, testutil.DefaultSourceLines...)
	return reqflow.NewRunState(h.cfg, subsystem, sourcePath)
}

// mockResponses creates a MockClient with sequential responses.
func mockResponses(responses ...string) *llm.MockClient {
	return llm.NewMockClient("").WithResponses(responses...)
}

// eventRecorder captures emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Notify(ctx context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// types returns the recorded event types in emission order.
func (r *eventRecorder) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// has reports whether an event of the given type was emitted.
func (r *eventRecorder) has(t notify.EventType) bool {
	for _, et := range r.types() {
		if et == t {
			return true
		}
	}
	return false
}

// approveChannel returns a review channel that always approves with the
// given feedback.
func approveChannel(feedback string) review.Channel {
	return review.ChannelFunc(func(ctx context.Context, s review.Summary) (review.Decision, error) {
		return review.Decision{Approved: true, Feedback: feedback}, nil
	})
}
