package cron_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/queued-dev/queued/cron"
	"github.com/queued-dev/queued/job"
)

// captureEnqueue records every enqueue the scheduler makes.
type captureEnqueue struct {
	mu   sync.Mutex
	jobs []*job.Job
}

func (c *captureEnqueue) enqueue(_ context.Context, jobID, command string, opts ...job.Option) (*job.Job, error) {
	j, err := job.New(jobID, command, opts...)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.jobs = append(c.jobs, j)
	c.mu.Unlock()
	return j, nil
}

func (c *captureEnqueue) snapshot() []*job.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*job.Job(nil), c.jobs...)
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"0 3 * * 1", false},
		{"@every 30s", false},
		{"@hourly", false},
		{"not a schedule", true},
		{"* * * *", true},
	}
	for _, tt := range tests {
		_, err := cron.ParseSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestAdd_Validation(t *testing.T) {
	s := cron.NewScheduler((&captureEnqueue{}).enqueue, nil, discardLogger())

	if err := s.Add(cron.Definition{Schedule: "@hourly", Command: "true"}); err == nil {
		t.Error("nameless definition accepted")
	}
	if err := s.Add(cron.Definition{Name: "x", Schedule: "@hourly"}); err == nil {
		t.Error("commandless definition accepted")
	}
	if err := s.Add(cron.Definition{Name: "x", Schedule: "junk", Command: "true"}); err == nil {
		t.Error("bad schedule accepted")
	}

	good := cron.Definition{Name: "report", Schedule: "@hourly", Command: "make report"}
	if err := s.Add(good); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(good); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestRemove(t *testing.T) {
	s := cron.NewScheduler((&captureEnqueue{}).enqueue, nil, discardLogger())

	if err := s.Add(cron.Definition{Name: "a", Schedule: "@hourly", Command: "true"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Remove("a")
	if defs := s.Definitions(); len(defs) != 0 {
		t.Errorf("definitions after remove = %v", defs)
	}

	// Name is reusable after removal.
	if err := s.Add(cron.Definition{Name: "a", Schedule: "@hourly", Command: "true"}); err != nil {
		t.Errorf("re-add after remove: %v", err)
	}
}

func TestScheduler_FiresDueDefinition(t *testing.T) {
	capture := &captureEnqueue{}
	s := cron.NewScheduler(capture.enqueue, nil, discardLogger(),
		cron.WithTickInterval(10*time.Millisecond))

	err := s.Add(cron.Definition{
		Name:       "heartbeat",
		Schedule:   "@every 50ms",
		Command:    "curl -fsS https://example.com/ping",
		MaxRetries: 5,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(capture.snapshot()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	jobs := capture.snapshot()
	if len(jobs) < 2 {
		t.Fatalf("fired %d times, want >= 2", len(jobs))
	}
	for _, j := range jobs {
		if !strings.HasPrefix(j.ID, "heartbeat-") {
			t.Errorf("job id = %q, want heartbeat- prefix", j.ID)
		}
		if j.Command != "curl -fsS https://example.com/ping" {
			t.Errorf("command = %q", j.Command)
		}
		if j.MaxRetries != 5 {
			t.Errorf("max_retries = %d, want 5", j.MaxRetries)
		}
	}
	if jobs[0].ID == jobs[1].ID {
		t.Errorf("two firings share job id %q", jobs[0].ID)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := cron.NewScheduler((&captureEnqueue{}).enqueue, nil, discardLogger())

	ctx := context.Background()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
