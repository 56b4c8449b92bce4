package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/queued-dev/queued/job"
)

// Recover returns middleware that recovers from panics in the handler
// chain. A panic becomes a failure outcome and is logged with a stack
// trace, so one misbehaving runner cannot take down the worker.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (out job.Outcome) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job runner panicked",
					slog.String("job_id", j.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				out = job.Failed(-1, fmt.Sprintf("panic: %v", r))
			}
		}()
		return next(ctx)
	}
}
