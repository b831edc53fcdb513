package executor

import "time"

// BackoffPolicy configures retry timing for transient failures. It is a
// plain value consumed by the retry loop, testable without any I/O.
type BackoffPolicy struct {
	// MaxAttempts is the maximum number of attempts per caller.
	MaxAttempts int

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration

	// Multiplier is applied to the delay on each subsequent retry.
	Multiplier float64

	// MaxDelay caps the backoff duration.
	MaxDelay time.Duration
}

// DefaultBackoffPolicy returns sensible retry defaults for LLM calls.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// Delay returns the backoff before the retry that follows the given
// 1-based attempt: InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// normalized fills zero fields with defaults.
func (p BackoffPolicy) normalized() BackoffPolicy {
	def := DefaultBackoffPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.Multiplier <= 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}
