package reqflow

import (
	"errors"
	"strings"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/smokejel/reqflow/notify"
	"github.com/smokejel/reqflow/review"
)

// HumanReviewNode presents the run to a reviewer and blocks until a
// decision arrives. With no synchronous channel configured it returns
// review.ErrPending, which suspends the run until a decision is submitted.
//
// Updates: state.HumanFeedback, clears state.RequiresHumanReview and moves
// state.Errors to state.ResolvedErrors once a decision is recorded.
func HumanReviewNode(ctx flowgraph.Context, state State) (State, error) {
	// A recorded decision means this is the resume pass; let the router
	// act on the feedback.
	if !state.RequiresHumanReview && state.HumanFeedback != "" {
		return state, nil
	}

	summary := reviewSummary(state)

	event := notify.NewEvent(notify.EventReviewNeeded, state.RunID, StageHumanReview,
		"run requires human review")
	event.Subsystem = state.Subsystem
	event = event.WithSeverity(notify.SeverityWarning)
	notify.Emit(ctx, event)

	channel := review.ChannelFromContext(ctx)
	if channel == nil {
		channel = review.PendingChannel{}
	}

	decision, err := channel.Request(ctx, summary)
	if err != nil {
		return state, err
	}

	return ApplyDecision(state, decision)
}

// ApplyDecision records a reviewer decision on the state. Feedback is
// mandatory when revising. The stored feedback is normalized so routing
// keyword matching always sees the decision that was made.
func ApplyDecision(state State, d review.Decision) (State, error) {
	feedback := strings.TrimSpace(d.Feedback)
	if !d.Approved && feedback == "" {
		return state, ErrFeedbackRequired
	}

	switch {
	case d.Approved && feedback == "":
		feedback = "approved"
	case d.Approved && !containsApproval(feedback):
		feedback = "approved: " + feedback
	case !d.Approved && !strings.Contains(strings.ToLower(feedback), "revise"):
		feedback = "revise: " + feedback
	}

	state.HumanFeedback = feedback
	state.RequiresHumanReview = false
	// The decision settles the recorded failures; move them aside so the
	// routers see a clean run while the history stays inspectable.
	state.ResolvedErrors = append(state.ResolvedErrors, state.Errors...)
	state.Errors = nil
	return state, nil
}

// reviewSummary assembles the presentation context for a reviewer.
func reviewSummary(state State) review.Summary {
	s := review.Summary{
		RunID:            state.RunID,
		Subsystem:        state.Subsystem,
		Iteration:        state.IterationCount,
		MaxIterations:    state.MaxIterations,
		Errors:           state.Errors,
		RequirementCount: len(state.DecomposedRequirements),
		PreDecomposition: len(state.DecomposedRequirements) == 0,
	}
	if state.QualityMetrics != nil {
		s.HasMetrics = true
		s.OverallScore = state.QualityMetrics.OverallScore
		for _, issue := range state.QualityMetrics.Issues {
			line := "[" + issue.Severity + "] "
			if issue.RequirementID != "" {
				line += issue.RequirementID + ": "
			}
			line += issue.Description
			s.Issues = append(s.Issues, line)
		}
	}
	return s
}

func containsApproval(feedback string) bool {
	lower := strings.ToLower(feedback)
	for _, keyword := range approvalKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IsPending reports whether an error from a run indicates suspension for
// human review rather than failure.
func IsPending(err error) bool {
	return errors.Is(err, review.ErrPending)
}
