package job

import "context"

// ListOpts controls pagination for list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// Store defines the persistence contract for jobs. It is the only code path
// permitted to mutate persisted state, and every implementation must make
// ClaimNext and Complete atomic with respect to concurrent callers.
type Store interface {
	// Enqueue persists a new pending job. Fails with queued.ErrDuplicateID
	// when the id is already present and queued.ErrInvalidJob when id or
	// command is empty.
	Enqueue(ctx context.Context, j *Job) error

	// ClaimNext atomically selects the oldest pending job (FIFO by
	// created_at, ties broken by id ascending), transitions it to
	// processing, persists, and returns a copy. Returns (nil, nil) when no
	// pending job exists. No two concurrent callers ever claim the same job.
	ClaimNext(ctx context.Context) (*Job, error)

	// Complete applies the retry policy to a processing job given the
	// execution outcome, persists the transition, and returns the updated
	// copy. Fails with queued.ErrNotFound when the id is absent and
	// queued.ErrInvalidTransition (making no persisted change) when the job
	// is not currently processing.
	Complete(ctx context.Context, jobID string, out Outcome) (*Job, error)

	// Get retrieves a copy of a job by ID.
	Get(ctx context.Context, jobID string) (*Job, error)

	// Requeue moves a dead job back to pending with attempts reset to zero.
	// This is the dead-letter replay path.
	Requeue(ctx context.Context, jobID string) (*Job, error)

	// Delete removes a job by ID.
	Delete(ctx context.Context, jobID string) error

	// List returns a point-in-time snapshot of jobs in the given state
	// (empty state means all), ordered by created_at then id. Safe to call
	// concurrently with any mutation.
	List(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// Summary returns the number of jobs in each state.
	Summary(ctx context.Context) (map[State]int, error)
}
