package reqflow

import (
	"fmt"
	"math"
)

// HumanReviewFloor is the overall score below which human review is always
// required, regardless of the configured threshold.
const HumanReviewFloor = 0.60

// Weights are the quality dimension weights used to compute the overall
// score. They must sum to 1.0 within a 0.01 tolerance.
type Weights struct {
	Completeness float64 `json:"completeness"`
	Clarity      float64 `json:"clarity"`
	Testability  float64 `json:"testability"`
	Traceability float64 `json:"traceability"`
}

// DefaultWeights weighs all four dimensions equally.
func DefaultWeights() Weights {
	return Weights{
		Completeness: 0.25,
		Clarity:      0.25,
		Testability:  0.25,
		Traceability: 0.25,
	}
}

// Validate checks that the weights sum to 1.0 within tolerance.
func (w Weights) Validate() error {
	sum := w.Completeness + w.Clarity + w.Testability + w.Traceability
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("quality weights must sum to 1.0, got %g", sum)
	}
	return nil
}

// Score computes the weighted overall score for the metrics. The optional
// domain compliance dimension does not participate in the weighted sum; it
// surfaces through issues raised by the validator instead.
func (w Weights) Score(m *QualityMetrics) float64 {
	if m == nil {
		return 0
	}
	return w.Completeness*m.Completeness +
		w.Clarity*m.Clarity +
		w.Testability*m.Testability +
		w.Traceability*m.Traceability
}

// ApplyGate decides whether the metrics pass the quality gate. Any
// critical issue fails the gate regardless of the overall score.
func ApplyGate(m *QualityMetrics, threshold float64) bool {
	if m == nil {
		return false
	}
	for _, issue := range m.Issues {
		if issue.Severity == SeverityCritical {
			return false
		}
	}
	return m.OverallScore >= threshold
}

// NeedsHumanReview decides whether the run must escalate to a reviewer:
// either quality is below the hard safety floor, or the iteration budget
// is exhausted.
func NeedsHumanReview(m *QualityMetrics, iterationCount, maxIterations int) bool {
	if m != nil && m.OverallScore < HumanReviewFloor {
		return true
	}
	return iterationCount >= maxIterations
}
