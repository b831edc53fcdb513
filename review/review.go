// Package review provides the human decision channel for workflow runs.
//
// A Channel is asked for a Decision when a run escalates to human review.
// The CLI channel blocks on a terminal prompt; the Pending channel never
// answers, returning ErrPending so a service host can suspend the run and
// resume it later once a decision arrives out of band.
package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrPending indicates no decision is available yet: the run should be
// suspended and resumed once one is submitted.
var ErrPending = errors.New("review decision pending")

// Decision is the reviewer's verdict. Feedback is mandatory when revising
// and optional when approving.
type Decision struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// Summary is the run context presented to a reviewer.
type Summary struct {
	RunID            string
	Subsystem        string
	Iteration        int
	MaxIterations    int
	OverallScore     float64
	HasMetrics       bool
	Issues           []string
	Errors           []string
	RequirementCount int

	// PreDecomposition is true when review happens before any decomposition,
	// so approval means "proceed to decompose".
	PreDecomposition bool
}

// Channel supplies review decisions.
type Channel interface {
	// Request presents the summary and returns a decision, or ErrPending
	// when the channel cannot answer synchronously.
	Request(ctx context.Context, s Summary) (Decision, error)
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, s Summary) (Decision, error)

// Request implements Channel.
func (f ChannelFunc) Request(ctx context.Context, s Summary) (Decision, error) {
	return f(ctx, s)
}

// PendingChannel never answers; every request suspends the run.
type PendingChannel struct{}

// Request implements Channel.
func (PendingChannel) Request(ctx context.Context, s Summary) (Decision, error) {
	return Decision{}, ErrPending
}

// =============================================================================
// CLI Channel
// =============================================================================

// CLIChannel prompts a reviewer on a terminal and blocks for an answer.
type CLIChannel struct {
	In  io.Reader
	Out io.Writer
}

// NewCLIChannel creates a blocking terminal review channel.
func NewCLIChannel(in io.Reader, out io.Writer) *CLIChannel {
	return &CLIChannel{In: in, Out: out}
}

// Request implements Channel. It re-prompts until it reads a parseable
// decision, since a revision without feedback is not actionable.
func (c *CLIChannel) Request(ctx context.Context, s Summary) (Decision, error) {
	c.printSummary(s)

	scanner := bufio.NewScanner(c.In)
	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		fmt.Fprint(c.Out, "> decision (approve, or revise: <feedback>): ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return Decision{}, err
			}
			return Decision{}, io.EOF
		}
		d, err := ParseDecision(scanner.Text())
		if err != nil {
			fmt.Fprintf(c.Out, "%v\n", err)
			continue
		}
		return d, nil
	}
}

func (c *CLIChannel) printSummary(s Summary) {
	fmt.Fprintf(c.Out, "\n=== Human Review: %s ===\n", s.RunID)
	fmt.Fprintf(c.Out, "Subsystem: %s\n", s.Subsystem)
	if s.PreDecomposition {
		fmt.Fprintln(c.Out, "Phase: analysis review (before decomposition)")
	} else {
		fmt.Fprintf(c.Out, "Iteration: %d/%d, decomposed requirements: %d\n",
			s.Iteration, s.MaxIterations, s.RequirementCount)
	}
	if s.HasMetrics {
		fmt.Fprintf(c.Out, "Overall quality score: %.2f\n", s.OverallScore)
	}
	if len(s.Issues) > 0 {
		fmt.Fprintln(c.Out, "Issues:")
		for _, issue := range s.Issues {
			fmt.Fprintf(c.Out, "  - %s\n", issue)
		}
	}
	if len(s.Errors) > 0 {
		fmt.Fprintln(c.Out, "Errors:")
		for _, e := range s.Errors {
			fmt.Fprintf(c.Out, "  - %s\n", e)
		}
	}
}

// ParseDecision interprets one line of reviewer input. "approve" (or any
// approval keyword) approves; "revise: <feedback>" revises, and the
// feedback must be non-empty.
func ParseDecision(line string) (Decision, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Decision{}, errors.New("empty decision")
	}

	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "revise") {
		feedback := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(lower, "revise"), ":"))
		if feedback == "" {
			return Decision{}, errors.New("revision requires feedback, e.g. \"revise: split REQ-3 by mode\"")
		}
		return Decision{Approved: false, Feedback: line}, nil
	}

	for _, kw := range []string{"approve", "accept", "good", "ok"} {
		if strings.Contains(lower, kw) {
			return Decision{Approved: true, Feedback: line}, nil
		}
	}
	return Decision{}, fmt.Errorf("unrecognized decision %q", line)
}

// =============================================================================
// Context Injection
// =============================================================================

type serviceContextKey string

const channelServiceKey serviceContextKey = "reqflow.review"

// WithChannel adds a review Channel to the context.
func WithChannel(ctx context.Context, ch Channel) context.Context {
	return context.WithValue(ctx, channelServiceKey, ch)
}

// ChannelFromContext extracts the review Channel from context.
// Returns nil if none is configured.
func ChannelFromContext(ctx context.Context) Channel {
	if ch, ok := ctx.Value(channelServiceKey).(Channel); ok {
		return ch
	}
	return nil
}
