package middleware

import (
	"context"
	"time"

	"github.com/queued-dev/queued/job"
)

// Timeout returns middleware that enforces an execution deadline on every
// command. A zero duration disables the deadline and the middleware is a
// pass-through. When the deadline fires the runner's context is
// cancelled, which kills the spawned process.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) job.Outcome {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
