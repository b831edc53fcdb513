package reqflow

import "strings"

// =============================================================================
// Routing Functions
// =============================================================================
//
// Routers are pure functions over State so routing stays deterministic and
// unit-testable. The only back-edge in the graph is validate/human_review
// back to decompose; the iteration ceiling checked in RouteAfterValidation
// is the termination guard for that loop.

// approvalKeywords mark reviewer feedback as an approval.
var approvalKeywords = []string{"approve", "accept", "good", "ok"}

// RouteAfterExtract diverts to human review when extraction failed,
// otherwise proceeds to analysis.
func RouteAfterExtract(state State) string {
	if len(state.Errors) > 0 {
		return StageHumanReview
	}
	return StageAnalyze
}

// RouteAfterAnalyze proceeds to decomposition unless the run failed or a
// pre-decomposition review checkpoint was requested.
func RouteAfterAnalyze(state State) string {
	if len(state.Errors) > 0 {
		return StageHumanReview
	}
	if state.ReviewBeforeDecompose {
		return StageHumanReview
	}
	return StageDecompose
}

// RouteAfterValidation decides what follows a validation pass. The checks
// are ordered: failures and the iteration ceiling take precedence over a
// passing score.
func RouteAfterValidation(state State) string {
	switch {
	case len(state.Errors) > 0:
		return StageHumanReview
	case state.IterationCount >= state.MaxIterations:
		return StageHumanReview
	case state.QualityPassed:
		return StageDocument
	case state.RequiresHumanReview:
		return StageHumanReview
	default:
		return StageDecompose
	}
}

// RouteAfterHumanReview routes on the reviewer's feedback text. Explicit
// revision requests and anything ambiguous go back to decompose; approval
// moves forward, to decompose when nothing has been decomposed yet (the
// reviewer approved the analysis) and to document otherwise.
func RouteAfterHumanReview(state State) string {
	feedback := strings.ToLower(state.HumanFeedback)

	if strings.Contains(feedback, "revise") {
		return StageDecompose
	}

	for _, keyword := range approvalKeywords {
		if strings.Contains(feedback, keyword) {
			if len(state.DecomposedRequirements) == 0 {
				return StageDecompose
			}
			return StageDocument
		}
	}

	// Unclear feedback is treated as a revision request.
	return StageDecompose
}
