// Package hook defines lifecycle hooks for the queue. Hooks are notified
// of events (job enqueued, started, retried, dead, etc.) and can react to
// them — audit trails, metrics, alerting.
//
// Each lifecycle event is a separate interface so hooks opt in only to
// the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/queued-dev/queued/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker claims a job and begins running its
// command.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job's command exits successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobRetrying is called when a failed job goes back to pending with
// retry budget remaining.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, out job.Outcome) error
}

// JobDead is called when a failed job exhausts its retry budget and
// enters the dead state.
type JobDead interface {
	OnJobDead(ctx context.Context, j *job.Job, out job.Outcome) error
}

// JobRequeued is called when an operator resurrects a dead job.
type JobRequeued interface {
	OnJobRequeued(ctx context.Context, j *job.Job) error
}

// CronFired is called when a cron definition fires and enqueues a job.
type CronFired interface {
	OnCronFired(ctx context.Context, name, jobID string) error
}

// Shutdown is called during graceful shutdown, after in-flight jobs have
// drained.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
