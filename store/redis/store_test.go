//go:build integration

package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
	redisstore "github.com/queued-dev/queued/store/redis"
)

func setupTestStore(t *testing.T) *redisstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("get endpoint: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	s := redisstore.New(client)
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return s
}

func mustJob(t *testing.T, id, command string, opts ...job.Option) *job.Job {
	t.Helper()
	j, err := job.New(id, command, opts...)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return j
}

func TestEnqueueAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	want := mustJob(t, "job-1", "echo hello", job.WithMaxRetries(5))
	if err := s.Enqueue(ctx, want); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *want {
		t.Errorf("round-trip differs:\n got %+v\nwant %+v", got, want)
	}
}

func TestEnqueueDuplicateID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Enqueue(ctx, mustJob(t, "dup", "echo a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	err := s.Enqueue(ctx, mustJob(t, "dup", "echo b"))
	if !errors.Is(err, queued.ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}

	got, _ := s.Get(ctx, "dup")
	if got.Command != "echo a" {
		t.Errorf("duplicate enqueue modified record: command %q", got.Command)
	}
}

func TestClaimNext_FIFOAndTieBreak(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	clock := func(at time.Time) func() time.Time {
		return func() time.Time { return at }
	}
	// "b" and "a" share a creation second; id order breaks the tie.
	for _, tc := range []struct {
		id     string
		offset time.Duration
	}{
		{"b", 0},
		{"a", 0},
		{"c", time.Second},
	} {
		j := mustJob(t, tc.id, "true", job.WithClock(clock(base.Add(tc.offset))))
		if err := s.Enqueue(ctx, j); err != nil {
			t.Fatalf("enqueue %s: %v", tc.id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := s.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if got == nil || got.ID != want {
			t.Fatalf("claimed %v, want %s", got, want)
		}
		if got.State != job.StateProcessing {
			t.Errorf("claimed job state = %s", got.State)
		}
	}
}

func TestClaimNext_Concurrent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, id := range ids {
		at := base.Add(time.Duration(i) * time.Second)
		j := mustJob(t, id, "true", job.WithClock(func() time.Time { return at }))
		if err := s.Enqueue(ctx, j); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := s.ClaimNext(ctx)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if j == nil {
					return
				}
				mu.Lock()
				claimed[j.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != len(ids) {
		t.Fatalf("claimed %d distinct jobs, want %d", len(claimed), len(ids))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("job %s claimed %d times", id, n)
		}
	}
}

func TestComplete_RetryRejoinsQueue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Enqueue(ctx, mustJob(t, "flaky", "false", job.WithMaxRetries(2))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := s.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	got, err := s.Complete(ctx, "flaky", job.Failed(1, "boom"))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.State != job.StatePending || got.Attempts != 1 {
		t.Fatalf("after first failure: %s/%d, want pending/1", got.State, got.Attempts)
	}

	// The retried job must be claimable again.
	reclaimed, err := s.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != "flaky" {
		t.Fatalf("reclaimed %v, want flaky", reclaimed)
	}

	got, err = s.Complete(ctx, "flaky", job.Failed(1, "boom again"))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.State != job.StateDead || got.Attempts != 2 {
		t.Fatalf("after second failure: %s/%d, want dead/2", got.State, got.Attempts)
	}

	// Dead jobs never rejoin the queue.
	if j, _ := s.ClaimNext(ctx); j != nil {
		t.Errorf("dead job was claimable: %v", j)
	}
}

func TestRequeueDeadJob(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Enqueue(ctx, mustJob(t, "dead-1", "false", job.WithMaxRetries(1))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.Complete(ctx, "dead-1", job.Failed(1, "nope")); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := s.Requeue(ctx, "dead-1")
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if got.State != job.StatePending || got.Attempts != 0 || got.LastError != "" {
		t.Errorf("requeued job = %s/%d/%q, want pending/0/\"\"", got.State, got.Attempts, got.LastError)
	}

	reclaimed, err := s.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != "dead-1" {
		t.Fatalf("requeued job not claimable: %v", reclaimed)
	}
}

func TestListAndSummary(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	for i, id := range []string{"j1", "j2", "j3"} {
		at := base.Add(time.Duration(i) * time.Second)
		j := mustJob(t, id, "true", job.WithClock(func() time.Time { return at }))
		if err := s.Enqueue(ctx, j); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if _, err := s.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	all, err := s.List(ctx, "", job.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list returned %d jobs, want 3", len(all))
	}
	if all[0].ID != "j1" || all[1].ID != "j2" || all[2].ID != "j3" {
		t.Errorf("list order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	counts, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if counts[job.StatePending] != 2 || counts[job.StateProcessing] != 1 {
		t.Errorf("summary = %v", counts)
	}
	for _, st := range job.States() {
		if _, ok := counts[st]; !ok {
			t.Errorf("summary missing state %s", st)
		}
	}
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Enqueue(ctx, mustJob(t, "gone", "true")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, queued.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}

	// Deleted pending job must not be claimable.
	if j, _ := s.ClaimNext(ctx); j != nil {
		t.Errorf("deleted job was claimable: %v", j)
	}
}
