package job_test

import (
	"errors"
	"testing"
	"time"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
)

func processingJob(t *testing.T, maxRetries int) *job.Job {
	t.Helper()
	j, err := job.New("job1", "exit 1", job.WithMaxRetries(maxRetries))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := job.MarkClaimed(j, time.Now()); err != nil {
		t.Fatalf("MarkClaimed() error: %v", err)
	}
	return j
}

func TestResolve_SuccessCompletesWithoutAttempt(t *testing.T) {
	j := processingJob(t, 3)
	if err := job.Resolve(j, job.Succeeded(), time.Now()); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if j.State != job.StateCompleted {
		t.Errorf("State = %q, want completed", j.State)
	}
	if j.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0 (unchanged on success)", j.Attempts)
	}
}

func TestResolve_FailureRetriesUntilDead(t *testing.T) {
	// max_retries=3: the job must walk pending(1) → pending(2) → dead(3).
	j := processingJob(t, 3)
	now := time.Now()

	for attempt := 1; attempt <= 3; attempt++ {
		if err := job.Resolve(j, job.Failed(1, "boom"), now); err != nil {
			t.Fatalf("Resolve() attempt %d error: %v", attempt, err)
		}
		if j.Attempts != attempt {
			t.Errorf("attempt %d: Attempts = %d", attempt, j.Attempts)
		}
		want := job.StatePending
		if attempt == 3 {
			want = job.StateDead
		}
		if j.State != want {
			t.Errorf("attempt %d: State = %q, want %q", attempt, j.State, want)
		}
		if j.State == job.StatePending {
			if err := job.MarkClaimed(j, now); err != nil {
				t.Fatalf("re-claim attempt %d: %v", attempt, err)
			}
		}
	}

	if j.LastError != "boom" {
		t.Errorf("LastError = %q, want %q", j.LastError, "boom")
	}
}

func TestResolve_AttemptsNeverExceedBudget(t *testing.T) {
	j := processingJob(t, 2)
	now := time.Now()

	for range 2 {
		_ = job.Resolve(j, job.Failed(1, "x"), now)
		if j.State == job.StatePending {
			_ = job.MarkClaimed(j, now)
		}
	}
	if j.State != job.StateDead {
		t.Fatalf("State = %q, want dead", j.State)
	}
	if j.Attempts != j.MaxRetries {
		t.Errorf("Attempts = %d, want %d", j.Attempts, j.MaxRetries)
	}

	// Dead is terminal: a further resolve is rejected and changes nothing.
	before := *j
	if err := job.Resolve(j, job.Failed(1, "y"), now); !errors.Is(err, queued.ErrInvalidTransition) {
		t.Errorf("Resolve() on dead job error = %v, want ErrInvalidTransition", err)
	}
	if *j != before {
		t.Error("Resolve() on dead job mutated the record")
	}
}

func TestResolve_RejectsNonProcessingStates(t *testing.T) {
	for _, s := range []job.State{job.StatePending, job.StateCompleted, job.StateDead} {
		j, _ := job.New("job1", "true")
		j.State = s
		err := job.Resolve(j, job.Succeeded(), time.Now())
		if !errors.Is(err, queued.ErrInvalidTransition) {
			t.Errorf("Resolve() from %q error = %v, want ErrInvalidTransition", s, err)
		}
	}
}

func TestResolve_RefreshesUpdatedAt(t *testing.T) {
	j := processingJob(t, 3)
	later := time.Now().Add(time.Hour)
	if err := job.Resolve(j, job.Succeeded(), later); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := later.UTC().Truncate(time.Second)
	if !j.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", j.UpdatedAt, want)
	}
}

func TestMarkClaimed_OnlyFromPending(t *testing.T) {
	j, _ := job.New("job1", "true")
	if err := job.MarkClaimed(j, time.Now()); err != nil {
		t.Fatalf("MarkClaimed() from pending error: %v", err)
	}
	if j.State != job.StateProcessing {
		t.Fatalf("State = %q, want processing", j.State)
	}

	// Claiming a processing job must fail: mutual exclusion lives here.
	if err := job.MarkClaimed(j, time.Now()); !errors.Is(err, queued.ErrInvalidTransition) {
		t.Errorf("second MarkClaimed() error = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkRequeued_ResetsDeadJob(t *testing.T) {
	j := processingJob(t, 1)
	_ = job.Resolve(j, job.Failed(127, "sh: nope: not found"), time.Now())
	if j.State != job.StateDead {
		t.Fatalf("State = %q, want dead", j.State)
	}

	if err := job.MarkRequeued(j, time.Now()); err != nil {
		t.Fatalf("MarkRequeued() error: %v", err)
	}
	if j.State != job.StatePending || j.Attempts != 0 || j.LastError != "" {
		t.Errorf("requeued job = %+v, want pending with fresh budget", j)
	}

	// Requeue is only valid from dead.
	if err := job.MarkRequeued(j, time.Now()); !errors.Is(err, queued.ErrInvalidTransition) {
		t.Errorf("MarkRequeued() from pending error = %v, want ErrInvalidTransition", err)
	}
}
