// Package budget tracks per-run LLM spend against a hard ceiling.
//
// The workflow machine consults a Tracker before every stage; once the
// ceiling is breached the run aborts rather than starting another
// expensive stage.
package budget

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrExceeded indicates the run's cost ceiling has been breached.
// It is fatal: the machine aborts rather than retrying.
var ErrExceeded = errors.New("run budget exceeded")

// Tracker records stage-level cost and answers budget checks.
type Tracker interface {
	// Record adds usage for a completed stage call. Implementations must
	// never block the caller; tracking failures are not the stage's problem.
	Record(stage string, cost float64, tokensIn, tokensOut int)

	// Total returns the cumulative cost recorded so far.
	Total() float64

	// Check reports whether the run may start another stage. When ok is
	// false, msg explains the breach.
	Check() (ok bool, msg string)
}

// Entry is one recorded usage sample.
type Entry struct {
	Stage     string    `json:"stage"`
	Cost      float64   `json:"cost"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	At        time.Time `json:"at"`
}

// Meter is the standard Tracker: an in-memory accumulator with a ceiling.
// A ceiling of zero or less means unlimited.
type Meter struct {
	mu      sync.Mutex
	ceiling float64
	total   float64
	entries []Entry
}

// NewMeter creates a Meter with the given cost ceiling in USD.
func NewMeter(ceiling float64) *Meter {
	return &Meter{ceiling: ceiling}
}

// Record implements Tracker.
func (m *Meter) Record(stage string, cost float64, tokensIn, tokensOut int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += cost
	m.entries = append(m.entries, Entry{
		Stage:     stage,
		Cost:      cost,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		At:        time.Now(),
	})
}

// Total implements Tracker.
func (m *Meter) Total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Check implements Tracker.
func (m *Meter) Check() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ceiling > 0 && m.total >= m.ceiling {
		return false, fmt.Sprintf("spent $%.4f of $%.4f ceiling", m.total, m.ceiling)
	}
	return true, ""
}

// Entries returns a copy of all recorded samples.
func (m *Meter) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// modelRate holds USD per input/output token.
type modelRate struct {
	in  float64
	out float64
}

// Rates by model family, matched by substring. Per-token prices
// ($/1M tokens divided out).
var modelRates = map[string]modelRate{
	"opus":   {in: 0.000015, out: 0.000075},
	"sonnet": {in: 0.000003, out: 0.000015},
	"haiku":  {in: 0.0000008, out: 0.000004},
}

// EstimateCost returns a rough USD cost for a call against the named model.
// Unrecognized models fall back to sonnet rates.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	rate := modelRates["sonnet"]
	lower := strings.ToLower(model)
	for family, r := range modelRates {
		if strings.Contains(lower, family) {
			rate = r
			break
		}
	}
	return float64(tokensIn)*rate.in + float64(tokensOut)*rate.out
}
