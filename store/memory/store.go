// Package memory provides a fully in-memory job store. Safe for concurrent
// use. Intended for unit testing and development; nothing survives process
// exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
	"github.com/queued-dev/queued/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps the whole job collection in a map guarded by one RWMutex.
// Mutations are serialized; reads copy records under the read lock so
// callers always observe a consistent snapshot.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Job)}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// Enqueue persists a new pending job.
func (m *Store) Enqueue(_ context.Context, j *job.Job) error {
	if j == nil || j.ID == "" || j.Command == "" {
		return queued.ErrInvalidJob
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID]; exists {
		return queued.ErrDuplicateID
	}
	m.jobs[j.ID] = j.Clone()
	return nil
}

// ClaimNext atomically claims the oldest pending job.
func (m *Store) ClaimNext(_ context.Context) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *job.Job
	for _, j := range m.jobs {
		if !job.Claimable(j) {
			continue
		}
		if oldest == nil || claimsBefore(j, oldest) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}

	if err := job.MarkClaimed(oldest, time.Now()); err != nil {
		return nil, err
	}
	return oldest.Clone(), nil
}

// Complete applies the retry policy to a processing job and persists it.
func (m *Store) Complete(_ context.Context, jobID string, out job.Outcome) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, queued.ErrNotFound
	}
	if err := job.Resolve(j, out, time.Now()); err != nil {
		return nil, err
	}
	return j.Clone(), nil
}

// Get retrieves a copy of a job by ID.
func (m *Store) Get(_ context.Context, jobID string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, queued.ErrNotFound
	}
	return j.Clone(), nil
}

// Requeue moves a dead job back to pending with a fresh retry budget.
func (m *Store) Requeue(_ context.Context, jobID string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, queued.ErrNotFound
	}
	if err := job.MarkRequeued(j, time.Now()); err != nil {
		return nil, err
	}
	return j.Clone(), nil
}

// Delete removes a job by ID.
func (m *Store) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return queued.ErrNotFound
	}
	delete(m.jobs, jobID)
	return nil
}

// List returns a snapshot of jobs in the given state (empty means all),
// ordered by created_at then id.
func (m *Store) List(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if state != "" && j.State != state {
			continue
		}
		result = append(result, j.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		return claimsBefore(result[i], result[k])
	})

	return paginate(result, opts), nil
}

// Summary returns the number of jobs in each state.
func (m *Store) Summary(_ context.Context) (map[job.State]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[job.State]int, len(job.States()))
	for _, s := range job.States() {
		counts[s] = 0
	}
	for _, j := range m.jobs {
		counts[j.State]++
	}
	return counts, nil
}

// claimsBefore orders jobs FIFO by created_at, ties broken by id ascending.
func claimsBefore(a, b *job.Job) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func paginate(jobs []*job.Job, opts job.ListOpts) []*job.Job {
	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs
}
