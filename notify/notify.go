package notify

import (
	"context"
	"log/slog"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// =============================================================================
// Event Types
// =============================================================================

// EventType represents the type of workflow lifecycle event.
type EventType string

// Event type constants, in the order a healthy run emits them.
const (
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventProgressUpdate EventType = "progress_update"
	EventReviewNeeded   EventType = "review_needed"
	EventRunCompleted   EventType = "run_completed"
	EventRunFailed      EventType = "run_failed"
	EventRunCancelled   EventType = "run_cancelled"
)

// Severity constants for events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Event describes one workflow lifecycle event.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Subsystem string         `json:"subsystem,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an Event with a fresh ID and timestamp. Severity
// defaults to info.
func NewEvent(typ EventType, runID, stage, message string) Event {
	id, _ := nanoid.New()
	return Event{
		ID:        id,
		Type:      typ,
		RunID:     runID,
		Stage:     stage,
		Message:   message,
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
	}
}

// WithSeverity returns a copy of the event with the given severity.
func (e Event) WithSeverity(severity string) Event {
	e.Severity = severity
	return e
}

// WithMetadata returns a copy of the event with a metadata entry added.
func (e Event) WithMetadata(key string, value any) Event {
	meta := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier delivers workflow lifecycle events.
type Notifier interface {
	// Notify sends an event. Implementations should be quick and handle
	// errors gracefully (log, don't crash).
	Notify(ctx context.Context, event Event) error
}

// =============================================================================
// Context Injection
// =============================================================================

type serviceContextKey string

const notifierServiceKey serviceContextKey = "reqflow.notifier"

// WithNotifier adds a Notifier to the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierServiceKey, n)
}

// NotifierFromContext extracts the Notifier from context.
// Returns nil if no notifier is configured.
func NotifierFromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(notifierServiceKey).(Notifier); ok {
		return n
	}
	return nil
}

// Emit sends an event through the context's notifier, if any. Delivery
// errors are logged and discarded; an event sink failure never fails a run.
func Emit(ctx context.Context, event Event) {
	n := NotifierFromContext(ctx)
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		slog.Warn("event delivery failed",
			"type", event.Type, "run_id", event.RunID, "error", err)
	}
}
