// Package dlq provides operator-facing access to jobs that exhausted
// their retry budget. Dead jobs stay in the job store under the dead
// state, so the dead-letter queue is a view over the store, not a
// separate table.
package dlq

import (
	"context"
	"time"

	"github.com/queued-dev/queued/hook"
	"github.com/queued-dev/queued/job"
)

// Service provides high-level dead-letter operations over a job store.
type Service struct {
	store job.Store
	hooks *hook.Registry
}

// NewService creates a DLQ service. hooks may be nil.
func NewService(store job.Store, hooks *hook.Registry) *Service {
	return &Service{store: store, hooks: hooks}
}

// List returns dead jobs ordered by creation time.
func (s *Service) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return s.store.List(ctx, job.StateDead, opts)
}

// Count returns how many jobs are currently dead.
func (s *Service) Count(ctx context.Context) (int, error) {
	counts, err := s.store.Summary(ctx)
	if err != nil {
		return 0, err
	}
	return counts[job.StateDead], nil
}

// Requeue resurrects a dead job: it keeps its ID and command, returns to
// pending, and gets a fresh attempt budget.
func (s *Service) Requeue(ctx context.Context, jobID string) (*job.Job, error) {
	j, err := s.store.Requeue(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if s.hooks != nil {
		s.hooks.EmitJobRequeued(ctx, j)
	}
	return j, nil
}

// Purge deletes dead jobs whose last update is before the cutoff and
// returns how many were removed. A zero cutoff purges all dead jobs.
func (s *Service) Purge(ctx context.Context, before time.Time) (int, error) {
	dead, err := s.store.List(ctx, job.StateDead, job.ListOpts{})
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, j := range dead {
		if !before.IsZero() && !j.UpdatedAt.Before(before) {
			continue
		}
		if err := s.store.Delete(ctx, j.ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
