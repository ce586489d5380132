package agentloop

import (
	"context"
	"errors"
	"time"
)

// DeadlineGuard runs fn with a hard time limit. The limit and the caller's
// context cancellation are reported as distinct error types: expiry of the
// limit yields a *TimeoutError, cancellation of the outer context yields a
// *CancelledError.
//
// fn receives the derived context and is expected to honor it; a fn that
// ignores the context leaks its goroutine until it returns on its own, but
// the caller still gets the error on time.
func DeadlineGuard(ctx context.Context, tool string, limit time.Duration, fn func(context.Context) (string, error)) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := fn(runCtx)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		// A cooperative fn surfaces the context error itself; map it to
		// the same typed errors as the expiry path below.
		if r.err != nil && runCtx.Err() != nil {
			if ctx.Err() != nil {
				return "", &CancelledError{Tool: tool}
			}
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", &TimeoutError{Tool: tool, Limit: limit}
			}
		}
		return r.out, r.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return "", &CancelledError{Tool: tool}
		}
		return "", &TimeoutError{Tool: tool, Limit: limit}
	}
}
