package integrationtest

import (
	"context"
	"os"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokejel/reqflow"
	"github.com/smokejel/reqflow/notify"
	"github.com/smokejel/reqflow/review"
	"github.com/smokejel/reqflow/testutil"
)

// TestFullDecompositionRun drives extract through document with passing
// quality and verifies the terminal state, artifacts, and events.
func TestFullDecompositionRun(t *testing.T) {
	mockLLM := mockResponses(
		testutil.ExtractResponse(testutil.DefaultSourceLines...),
		testutil.AnalyzeResponse("Power management owns charge regulation.", "SYS-1", "SYS-3"),
		testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
		testutil.PassingValidation(),
	)

	h := setupHarness(t, mockLLM)
	ctx := h.ctx(t)
	state := h.newState(t, "Power Management")

	result, err := reqflow.NewMachine().Run(ctx, state)
	require.NoError(t, err)

	assert.Equal(t, reqflow.StatusCompleted, result.Status)
	assert.True(t, result.QualityPassed)
	assert.Equal(t, 0, result.IterationCount)
	assert.Len(t, result.DecomposedRequirements, 2)
	assert.Equal(t, 4, mockLLM.CallCount())

	require.NotNil(t, result.QualityMetrics)
	assert.InDelta(t, 0.9125, result.QualityMetrics.OverallScore, 0.0001)

	// Rendered document exists and traces the subsystem requirements.
	require.NotEmpty(t, result.OutputDocumentPath)
	doc, err := os.ReadFile(result.OutputDocumentPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "POWER_MANAGEMENT-1")
	assert.Contains(t, string(doc), "SYS-1")

	// Terminal checkpoint reflects completion.
	rec, err := h.store.Load(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(reqflow.StatusCompleted), rec.Status)

	assert.True(t, h.events.has(notify.EventStageStarted))
	assert.True(t, h.events.has(notify.EventRunCompleted))
	assert.False(t, h.events.has(notify.EventReviewNeeded))
}

// TestQualityRefinementLoop fails the first validation above the review
// floor so the run revises once before passing.
func TestQualityRefinementLoop(t *testing.T) {
	mockLLM := mockResponses(
		testutil.ExtractResponse(testutil.DefaultSourceLines...),
		testutil.AnalyzeResponse("Power management owns charge regulation.", "SYS-1", "SYS-3"),
		testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
		testutil.ValidateResponse(0.70, 0.70, 0.70, 0.70),
		testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
		testutil.PassingValidation(),
	)

	h := setupHarness(t, mockLLM)
	ctx := h.ctx(t)
	state := h.newState(t, "Power Management")

	result, err := reqflow.NewMachine().Run(ctx, state)
	require.NoError(t, err)

	assert.Equal(t, reqflow.StatusCompleted, result.Status)
	assert.True(t, result.QualityPassed)
	assert.Equal(t, 1, result.IterationCount, "one revision cycle expected")
	assert.Equal(t, 6, mockLLM.CallCount())
}

// TestIterationExhaustionSuspendsForReview runs out of refinement
// iterations, suspends awaiting review, then completes after approval.
func TestIterationExhaustionSuspendsForReview(t *testing.T) {
	responses := []string{
		testutil.ExtractResponse(testutil.DefaultSourceLines...),
		testutil.AnalyzeResponse("Power management owns charge regulation.", "SYS-1", "SYS-3"),
	}
	// Initial decomposition plus three revisions, each failing validation
	// above the review floor.
	for i := 0; i < 4; i++ {
		responses = append(responses,
			testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
			testutil.ValidateResponse(0.70, 0.70, 0.70, 0.70),
		)
	}
	mockLLM := mockResponses(responses...)

	h := setupHarness(t, mockLLM)
	ctx := h.ctx(t)
	state := h.newState(t, "Power Management")

	machine := reqflow.NewMachine()
	result, err := machine.Run(ctx, state)
	require.NoError(t, err, "suspension is not an error")

	assert.Equal(t, reqflow.StatusAwaitingReview, result.Status)
	assert.Equal(t, 3, result.IterationCount)
	assert.True(t, h.events.has(notify.EventReviewNeeded))

	// Resume without a decision is rejected.
	_, err = machine.Resume(ctx, result.RunID)
	assert.ErrorIs(t, err, reqflow.ErrAwaitingDecision)

	// Approving the decomposition as-is finishes the run.
	final, err := machine.Submit(ctx, result.RunID, review.Decision{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, reqflow.StatusCompleted, final.Status)
	assert.NotEmpty(t, final.OutputDocumentPath)
	assert.Equal(t, 10, mockLLM.CallCount(), "approval must not trigger more LLM calls")
}

// TestReviseDecisionRerunsDecomposition submits a revise decision and
// verifies the run decomposes again with the feedback applied. The revise
// decision is consumed by that pass: when the passing revision hits the
// iteration ceiling again, the run suspends for a fresh decision instead
// of replaying the old one, and an approval then finishes it.
func TestReviseDecisionRerunsDecomposition(t *testing.T) {
	responses := []string{
		testutil.ExtractResponse(testutil.DefaultSourceLines...),
		testutil.AnalyzeResponse("Power management owns charge regulation.", "SYS-1", "SYS-3"),
	}
	for i := 0; i < 4; i++ {
		responses = append(responses,
			testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
			testutil.ValidateResponse(0.70, 0.70, 0.70, 0.70),
		)
	}
	// Post-review revision and its validation.
	responses = append(responses,
		testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
		testutil.PassingValidation(),
	)
	mockLLM := mockResponses(responses...)

	h := setupHarness(t, mockLLM)
	ctx := h.ctx(t)
	state := h.newState(t, "Power Management")

	machine := reqflow.NewMachine()
	result, err := machine.Run(ctx, state)
	require.NoError(t, err)
	require.Equal(t, reqflow.StatusAwaitingReview, result.Status)

	// A revise decision without feedback is rejected.
	_, err = machine.Submit(ctx, result.RunID, review.Decision{Approved: false})
	assert.ErrorIs(t, err, reqflow.ErrFeedbackRequired)

	revised, err := machine.Submit(ctx, result.RunID, review.Decision{
		Approved: false,
		Feedback: "merge the charge window requirements",
	})
	require.NoError(t, err)
	assert.Equal(t, reqflow.StatusAwaitingReview, revised.Status,
		"a passing revision past the ceiling must escalate again")
	assert.True(t, revised.QualityPassed)
	assert.Equal(t, 4, revised.IterationCount)
	assert.Equal(t, 12, mockLLM.CallCount(), "revision costs one decompose and one validate call")

	final, err := machine.Submit(ctx, revised.RunID, review.Decision{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, reqflow.StatusCompleted, final.Status)
	assert.True(t, final.QualityPassed)
	assert.NotEmpty(t, final.OutputDocumentPath)
	assert.Equal(t, 12, mockLLM.CallCount(), "approval must not trigger more LLM calls")
}

// TestZeroDecompositionShortCircuit verifies a subsystem with no
// allocated requirements validates perfectly without an LLM call.
func TestZeroDecompositionShortCircuit(t *testing.T) {
	mockLLM := mockResponses(
		testutil.ExtractResponse(testutil.DefaultSourceLines...),
		testutil.AnalyzeResponse("No requirements allocate to thermal control."),
		testutil.DecomposeResponse("Thermal Control", "THERMAL"),
	)

	h := setupHarness(t, mockLLM)
	ctx := h.ctx(t)
	state := h.newState(t, "Thermal Control")

	result, err := reqflow.NewMachine().Run(ctx, state)
	require.NoError(t, err)

	assert.Equal(t, reqflow.StatusCompleted, result.Status)
	assert.True(t, result.QualityPassed)
	assert.Empty(t, result.DecomposedRequirements)
	assert.Equal(t, 3, mockLLM.CallCount(), "validation must not call the LLM")

	require.NotNil(t, result.QualityMetrics)
	assert.Equal(t, 1.0, result.QualityMetrics.OverallScore)
}

// TestReviewBeforeDecompose gates decomposition on an up-front approval
// delivered through a synchronous review channel.
func TestReviewBeforeDecompose(t *testing.T) {
	mockLLM := mockResponses(
		testutil.ExtractResponse(testutil.DefaultSourceLines...),
		testutil.AnalyzeResponse("Power management owns charge regulation.", "SYS-1", "SYS-3"),
		testutil.DecomposeResponse("Power Management", "POWER_MANAGEMENT", "SYS-1", "SYS-3"),
		testutil.PassingValidation(),
	)

	h := setupHarness(t, mockLLM)
	h.cfg.ReviewBeforeDecompose = true
	h.services.Review = approveChannel("ok, analysis looks right")
	ctx := h.ctx(t)
	state := h.newState(t, "Power Management")

	result, err := reqflow.NewMachine().Run(ctx, state)
	require.NoError(t, err)

	assert.Equal(t, reqflow.StatusCompleted, result.Status)
	assert.True(t, h.events.has(notify.EventReviewNeeded))
	assert.Len(t, result.DecomposedRequirements, 2)
}

// TestCancellationPersistsCheckpoint cancels mid-run and verifies the
// cancelled status is checkpointed.
func TestCancellationPersistsCheckpoint(t *testing.T) {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockLLM := llm.NewMockClient("").WithCompleteFunc(
		func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			cancel()
			return nil, ctx.Err()
		})

	h := setupHarness(t, mockLLM)
	ctx := h.services.InjectAll(runCtx)
	state := h.newState(t, "Power Management")

	result, err := reqflow.NewMachine().Run(ctx, state)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, reqflow.StatusCancelled, result.Status)

	rec, loadErr := h.store.Load(context.Background(), result.RunID)
	require.NoError(t, loadErr)
	assert.Equal(t, string(reqflow.StatusCancelled), rec.Status)
	assert.True(t, h.events.has(notify.EventRunCancelled))
}

// TestStageFailureDivertsToReview exhausts retries on a content error so
// the run lands in human review instead of failing outright.
func TestStageFailureDivertsToReview(t *testing.T) {
	mockLLM := mockResponses(
		"this is not json at all",
		"still not json",
	)

	h := setupHarness(t, mockLLM)
	ctx := h.ctx(t)
	state := h.newState(t, "Power Management")

	result, err := reqflow.NewMachine().Run(ctx, state)
	require.NoError(t, err, "stage failure suspends for review, not error")

	assert.Equal(t, reqflow.StatusAwaitingReview, result.Status)
	assert.NotEmpty(t, result.Errors)
	assert.True(t, h.events.has(notify.EventReviewNeeded))
}
