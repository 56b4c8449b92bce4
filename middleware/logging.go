package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/queued-dev/queued/job"
)

// Logging returns middleware that logs command start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) job.Outcome {
		logger.Info("job started",
			slog.String("job_id", j.ID),
			slog.String("command", j.Command),
			slog.Int("attempt", j.Attempts+1),
		)

		start := time.Now()
		out := next(ctx)
		elapsed := time.Since(start)

		if out.Success {
			logger.Info("job succeeded",
				slog.String("job_id", j.ID),
				slog.Duration("elapsed", elapsed),
			)
		} else {
			logger.Error("job failed",
				slog.String("job_id", j.ID),
				slog.Duration("elapsed", elapsed),
				slog.Int("exit_code", out.ExitCode),
				slog.String("detail", out.Detail),
			)
		}

		return out
	}
}
