// Package notify provides fire-and-forget lifecycle events for workflow runs.
//
// Core types:
//   - Notifier: Interface for delivering events
//   - Event: Lifecycle event with type, stage, message, and metadata
//   - EventType: Type of event (stage_started, run_completed, etc.)
//
// Implementations:
//   - LogNotifier: Logs events via slog (for testing/debugging)
//   - WebhookNotifier: Posts events to a generic HTTP webhook
//   - SlackNotifier: Posts events to a Slack webhook
//   - MultiNotifier: Fans out to multiple notifiers
//   - NopNotifier: Discards everything
//
// Delivery is advisory: a notifier failure must never fail the run, so the
// machine emits through Emit, which swallows and logs errors.
package notify
