package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/queued-dev/queued/hook"
	"github.com/queued-dev/queued/job"
	"github.com/queued-dev/queued/middleware"
)

// Executor drives one claimed job to completion: it runs the command
// through the middleware chain, reports the outcome to the store (which
// owns the retry arithmetic), and emits lifecycle events for the state
// the job landed in.
type Executor struct {
	store  job.Store
	runner CommandRunner
	hooks  *hook.Registry
	mw     middleware.Middleware
	logger *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	store job.Store,
	runner CommandRunner,
	hooks *hook.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		store:  store,
		runner: runner,
		hooks:  hooks,
		mw:     middleware.Chain(mws...),
		logger: logger,
	}
}

// Execute runs a claimed job and persists the result. The returned error
// is non-nil only for storage problems; a command that merely failed is
// handled by the retry policy and reported through hooks.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	e.hooks.EmitJobStarted(ctx, j)

	start := time.Now()
	out := e.mw(ctx, j, func(ctx context.Context) job.Outcome {
		return e.runner.Run(ctx, j.Command)
	})
	elapsed := time.Since(start)

	resolved, err := e.store.Complete(ctx, j.ID, out)
	if err != nil {
		e.logger.Error("failed to persist job outcome",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	switch resolved.State {
	case job.StateCompleted:
		e.hooks.EmitJobCompleted(ctx, resolved, elapsed)
	case job.StatePending:
		e.hooks.EmitJobRetrying(ctx, resolved, out)
		e.logger.Info("job requeued for retry",
			slog.String("job_id", resolved.ID),
			slog.Int("attempts", resolved.Attempts),
			slog.Int("max_retries", resolved.MaxRetries),
		)
	case job.StateDead:
		e.hooks.EmitJobDead(ctx, resolved, out)
		e.logger.Warn("job dead after exhausting retries",
			slog.String("job_id", resolved.ID),
			slog.Int("attempts", resolved.Attempts),
			slog.String("last_error", resolved.LastError),
		)
	}

	return nil
}
