// Package middleware provides composable middleware around command
// execution. Middleware wraps the run synchronously and can modify it
// (recover from panics, enforce deadlines, log, record metrics, trace).
package middleware

import (
	"context"

	"github.com/queued-dev/queued/job"
)

// Handler is the terminal function that runs the job's command and
// reports how it went. Infrastructure problems (a command that could not
// even be launched) surface as failure outcomes, not Go errors, so the
// chain has a single result channel.
type Handler func(ctx context.Context) job.Outcome

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the job being executed, and the next handler to call.
// Middleware MUST call next to continue the chain (unless
// short-circuiting with its own outcome).
type Middleware func(ctx context.Context, j *job.Job, next Handler) job.Outcome

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recov, timeout) executes as:
//
//	logging → recov → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) job.Outcome {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) job.Outcome {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
