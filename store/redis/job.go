package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
)

// listFetchParallelism bounds concurrent GETs during List and Summary.
const listFetchParallelism = 16

// Enqueue stores the job blob and adds its ID to the pending Sorted Set.
// The SETNX on the blob key is the duplicate check.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" || j.Command == "" {
		return fmt.Errorf("queued/redis: enqueue: %w", queued.ErrInvalidJob)
	}

	data, err := encodeJob(j)
	if err != nil {
		return storageError("enqueue encode", err)
	}

	ok, err := s.client.SetNX(ctx, jobKey(j.ID), data, 0).Result()
	if err != nil {
		return storageError("enqueue", err)
	}
	if !ok {
		return fmt.Errorf("queued/redis: enqueue %q: %w", j.ID, queued.ErrDuplicateID)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, jobIDsKey, j.ID)
	pipe.ZAdd(ctx, pendingKey, goredis.Z{Score: pendingScore(j), Member: j.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("enqueue index", err)
	}
	return nil
}

// ClaimNext atomically pops the oldest pending job ID and marks the
// record processing. ZPOPMIN is atomic on the server, so two claimers
// never receive the same ID. Returns (nil, nil) when no pending job
// exists.
func (s *Store) ClaimNext(ctx context.Context) (*job.Job, error) {
	members, err := s.client.ZPopMin(ctx, pendingKey, 1).Result()
	if err != nil {
		return nil, storageError("claim zpopmin", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	jobID, ok := members[0].Member.(string)
	if !ok {
		return nil, storageError("claim", fmt.Errorf("unexpected member type %T", members[0].Member))
	}

	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.MarkClaimed(j, time.Now()); err != nil {
		return nil, err
	}
	if err := s.putJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Complete applies the execution outcome to a processing job. When the
// outcome sends the job back to pending, its ID rejoins the Sorted Set
// with its original creation-time score so FIFO order holds.
func (s *Store) Complete(ctx context.Context, jobID string, out job.Outcome) (*job.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Resolve(j, out, time.Now()); err != nil {
		return nil, err
	}
	if err := s.putJob(ctx, j); err != nil {
		return nil, err
	}
	if j.State == job.StatePending {
		err := s.client.ZAdd(ctx, pendingKey, goredis.Z{Score: pendingScore(j), Member: j.ID}).Err()
		if err != nil {
			return nil, storageError("complete requeue", err)
		}
	}
	return j, nil
}

// Get returns a job by ID.
func (s *Store) Get(ctx context.Context, jobID string) (*job.Job, error) {
	return s.getJob(ctx, jobID)
}

// Requeue moves a dead job back to pending with a fresh attempt budget.
func (s *Store) Requeue(ctx context.Context, jobID string) (*job.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.MarkRequeued(j, time.Now()); err != nil {
		return nil, err
	}
	if err := s.putJob(ctx, j); err != nil {
		return nil, err
	}
	err = s.client.ZAdd(ctx, pendingKey, goredis.Z{Score: pendingScore(j), Member: j.ID}).Err()
	if err != nil {
		return nil, storageError("requeue", err)
	}
	return j, nil
}

// Delete removes a job by ID.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	n, err := s.client.Exists(ctx, jobKey(jobID)).Result()
	if err != nil {
		return storageError("delete exists", err)
	}
	if n == 0 {
		return fmt.Errorf("queued/redis: delete %q: %w", jobID, queued.ErrNotFound)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jobID))
	pipe.SRem(ctx, jobIDsKey, jobID)
	pipe.ZRem(ctx, pendingKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("delete", err)
	}
	return nil
}

// List returns jobs ordered by created_at then id, optionally filtered
// by state.
func (s *Store) List(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, storageError("list smembers", err)
	}

	// Fetch records in parallel; one round-trip per id otherwise dominates.
	fetched := make([]*job.Job, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listFetchParallelism)
	for i, jobID := range ids {
		g.Go(func() error {
			j, getErr := s.getJob(gctx, jobID)
			if getErr != nil {
				if errors.Is(getErr, queued.ErrNotFound) {
					return nil // record deleted between SMEMBERS and GET
				}
				return getErr
			}
			fetched[i] = j
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, j := range fetched {
		if j == nil {
			continue
		}
		if state != "" && j.State != state {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
		}
		return jobs[i].ID < jobs[k].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// Summary returns job counts per state. Every state appears in the map
// even when its count is zero.
func (s *Store) Summary(ctx context.Context) (map[job.State]int, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, storageError("summary smembers", err)
	}

	counts := make(map[job.State]int, len(job.States()))
	for _, st := range job.States() {
		counts[st] = 0
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listFetchParallelism)
	for _, jobID := range ids {
		g.Go(func() error {
			j, getErr := s.getJob(gctx, jobID)
			if getErr != nil {
				if errors.Is(getErr, queued.ErrNotFound) {
					return nil
				}
				return getErr
			}
			mu.Lock()
			counts[j.State]++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// ── helpers ──

// pendingScore orders the pending Sorted Set by creation time. Records
// created in the same second share a score and fall back to Redis's
// lexicographic member ordering.
func pendingScore(j *job.Job) float64 {
	return float64(j.CreatedAt.UTC().Unix())
}

func (s *Store) getJob(ctx context.Context, jobID string) (*job.Job, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if isNil(err) {
			return nil, fmt.Errorf("queued/redis: get %q: %w", jobID, queued.ErrNotFound)
		}
		return nil, storageError("get", err)
	}
	j, err := decodeJob(data)
	if err != nil {
		return nil, storageError("decode job", err)
	}
	return j, nil
}

func (s *Store) putJob(ctx context.Context, j *job.Job) error {
	data, err := encodeJob(j)
	if err != nil {
		return storageError("encode job", err)
	}
	if err := s.client.Set(ctx, jobKey(j.ID), data, 0).Err(); err != nil {
		return storageError("put job", err)
	}
	return nil
}
