// Package executor wraps a single pipeline stage's external call with
// retry, model fallback, and error classification.
//
// Errors are classified into three kinds:
//
//   - Transient (rate limits, timeouts, 5xx): retry the same caller with
//     exponential backoff
//   - Content (parse/validation/schema failures): abandon the caller and
//     try the next fallback
//   - Fatal (auth, permission, not found): abort the stage immediately
//
// Unrecognized errors default to Content, so an unknown failure attempts a
// fallback rather than looping or silently aborting.
//
// Example:
//
//	exec := executor.New(executor.WithPolicy(executor.DefaultBackoffPolicy()))
//	out, err := exec.Execute(ctx, "decompose", primary, fallbacks)
//	if err != nil {
//	    var stageErr *executor.StageError
//	    if errors.As(err, &stageErr) {
//	        // stageErr.Kind says how the stage died
//	    }
//	}
package executor
