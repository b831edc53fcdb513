package reqflow

import "errors"

var (
	// ErrAwaitingDecision is returned by Resume for a run that is
	// suspended on human review; use Submit instead.
	ErrAwaitingDecision = errors.New("run is awaiting a review decision")

	// ErrNotAwaitingReview is returned by Submit for a run that is not
	// suspended on human review.
	ErrNotAwaitingReview = errors.New("run is not awaiting review")

	// ErrFeedbackRequired is returned when a revision decision carries no
	// feedback text.
	ErrFeedbackRequired = errors.New("feedback is required when requesting revision")
)
