// Package file provides a job store persisted as a single JSON array file.
//
// The collection is held in memory under a mutex; every mutation rewrites
// the whole file through a temp-file + fsync + rename sequence, so a crash
// after a successful return never loses the update, and a failed write
// leaves the previous file intact. Mutations commit to memory only after
// the durable write succeeds.
//
// Concurrency is in-process only: the mutex serializes mutations between
// goroutines sharing one Store. Multiple processes must not share a file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
	"github.com/queued-dev/queued/store"
)

var _ store.Store = (*Store)(nil)

// Store is a JSON-file-backed job store.
type Store struct {
	mu     sync.RWMutex
	path   string
	jobs   map[string]*job.Job
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open loads the job collection from path, creating an empty collection if
// the file does not exist yet. The file itself is created on first write
// (or by Migrate).
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		jobs:   make(map[string]*job.Job),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, storageError("open", err)
	}

	var records []jobRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, storageError("decode", err)
		}
	}
	for _, r := range records {
		j, convErr := fromRecord(r)
		if convErr != nil {
			return nil, convErr
		}
		if _, dup := s.jobs[j.ID]; dup {
			return nil, fmt.Errorf("queued/file: %w in %s: %q", queued.ErrDuplicateID, path, j.ID)
		}
		s.jobs[j.ID] = j
	}

	s.logger.Debug("jobs file loaded",
		slog.String("path", path),
		slog.Int("jobs", len(s.jobs)),
	)
	return s, nil
}

// Migrate initializes an empty jobs file when none exists.
func (s *Store) Migrate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return storageError("stat", err)
	}
	return s.flushLocked()
}

// Ping checks that the file's directory is accessible.
func (s *Store) Ping(_ context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return storageError("ping", err)
	}
	return nil
}

// Close is a no-op; every mutation is already flushed before returning.
func (s *Store) Close() error { return nil }

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Enqueue persists a new pending job.
func (s *Store) Enqueue(_ context.Context, j *job.Job) error {
	if j == nil || j.ID == "" || j.Command == "" {
		return queued.ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID]; exists {
		return queued.ErrDuplicateID
	}

	cp := j.Clone()
	s.jobs[j.ID] = cp
	if err := s.flushLocked(); err != nil {
		delete(s.jobs, j.ID)
		return err
	}
	return nil
}

// ClaimNext atomically claims the oldest pending job and flushes the
// transition to disk before returning it.
func (s *Store) ClaimNext(_ context.Context) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *job.Job
	for _, j := range s.jobs {
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

	updated := oldest.Clone()
	if err := job.MarkClaimed(updated, time.Now()); err != nil {
		return nil, err
	}
	if err := s.commitLocked(updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Complete applies the retry policy to a processing job and flushes.
func (s *Store) Complete(_ context.Context, jobID string, out job.Outcome) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, queued.ErrNotFound
	}

	updated := j.Clone()
	if err := job.Resolve(updated, out, time.Now()); err != nil {
		return nil, err
	}
	if err := s.commitLocked(updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Get retrieves a copy of a job by ID.
func (s *Store) Get(_ context.Context, jobID string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, queued.ErrNotFound
	}
	return j.Clone(), nil
}

// Requeue moves a dead job back to pending and flushes.
func (s *Store) Requeue(_ context.Context, jobID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, queued.ErrNotFound
	}

	updated := j.Clone()
	if err := job.MarkRequeued(updated, time.Now()); err != nil {
		return nil, err
	}
	if err := s.commitLocked(updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Delete removes a job and flushes.
func (s *Store) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return queued.ErrNotFound
	}

	delete(s.jobs, jobID)
	if err := s.flushLocked(); err != nil {
		s.jobs[jobID] = j
		return err
	}
	return nil
}

// List returns a snapshot of jobs in the given state (empty means all),
// ordered by created_at then id.
func (s *Store) List(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if state != "" && j.State != state {
			continue
		}
		result = append(result, j.Clone())
	}
	sort.Slice(result, func(i, k int) bool {
		return claimsBefore(result[i], result[k])
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Summary returns the number of jobs in each state.
func (s *Store) Summary(_ context.Context) (map[job.State]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[job.State]int, len(job.States()))
	for _, st := range job.States() {
		counts[st] = 0
	}
	for _, j := range s.jobs {
		counts[j.State]++
	}
	return counts, nil
}

// commitLocked flushes the collection with updated swapped in, committing
// the swap to memory only if the durable write succeeds.
func (s *Store) commitLocked(updated *job.Job) error {
	prev := s.jobs[updated.ID]
	s.jobs[updated.ID] = updated
	if err := s.flushLocked(); err != nil {
		s.jobs[updated.ID] = prev
		return err
	}
	return nil
}

// flushLocked durably rewrites the whole collection: marshal to a temp file
// in the same directory, fsync, then atomically rename over the old file.
// Either the full updated collection lands on disk or the prior file stays
// intact.
func (s *Store) flushLocked() error {
	records := make([]jobRecord, 0, len(s.jobs))
	for _, j := range s.jobs {
		records = append(records, toRecord(j))
	}
	sort.Slice(records, func(i, k int) bool {
		if records[i].CreatedAt != records[k].CreatedAt {
			return records[i].CreatedAt < records[k].CreatedAt
		}
		return records[i].ID < records[k].ID
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return storageError("encode", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return storageError("create temp", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageError("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageError("close", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return storageError("rename", err)
	}
	return nil
}

func claimsBefore(a, b *job.Job) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func storageError(op string, err error) error {
	return fmt.Errorf("queued/file: %s: %w: %w", op, queued.ErrStorage, err)
}
