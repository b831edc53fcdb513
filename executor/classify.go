package executor

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies a stage error and drives the executor's reaction.
type Kind string

const (
	// KindTransient errors are retried against the same caller.
	KindTransient Kind = "transient"

	// KindContent errors abandon the current caller and move to the next
	// fallback. This is also the default for unrecognized errors.
	KindContent Kind = "content"

	// KindFatal errors abort the stage immediately, skipping all fallbacks.
	KindFatal Kind = "fatal"
)

// TransientError marks an error as temporary; it may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// ContentError marks an error as a content problem (bad output, failed
// parse); the caller is abandoned in favor of a fallback.
type ContentError struct {
	err error
}

func (e *ContentError) Error() string { return e.err.Error() }
func (e *ContentError) Unwrap() error { return e.err }

// NewContentError wraps an error as a content failure.
func NewContentError(err error) error {
	return &ContentError{err: err}
}

// FatalError marks an error as permanent; neither retry nor fallback helps.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// Keyword sets for heuristic classification of errors that carry no
// explicit kind. Matched against the lower-cased error text.
var (
	transientKeywords = []string{
		"rate limit",
		"too many requests",
		"429",
		"timeout",
		"timed out",
		"deadline exceeded",
		"overloaded",
		"temporarily unavailable",
		"connection refused",
		"connection reset",
		"no such host",
		"internal server error",
		"500",
		"502",
		"503",
		"504",
	}
	fatalKeywords = []string{
		"unauthorized",
		"unauthenticated",
		"authentication",
		"invalid api key",
		"permission denied",
		"forbidden",
		"401",
		"403",
		"not found",
		"404",
		"budget exceeded",
	}
)

// Classify determines the Kind of an error. Explicitly wrapped errors win;
// otherwise keyword heuristics over the message decide, and anything
// unrecognized is Content, which moves on to a fallback instead of looping
// or aborting.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return KindTransient
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return KindFatal
	}
	var content *ContentError
	if errors.As(err, &content) {
		return KindContent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return KindTransient
		}
	}
	for _, kw := range fatalKeywords {
		if strings.Contains(msg, kw) {
			return KindFatal
		}
	}
	return KindContent
}
