package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/queued-dev/queued/audit"
	"github.com/queued-dev/queued/hook"
	"github.com/queued-dev/queued/job"
)

// memRecorder captures entries in order.
type memRecorder struct {
	entries []*audit.Entry
	err     error
}

func (r *memRecorder) Record(_ context.Context, e *audit.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func newTestJob(t *testing.T) *job.Job {
	t.Helper()
	j, err := job.New("job1", "echo hello", job.WithMaxRetries(3))
	if err != nil {
		t.Fatalf("job.New: %v", err)
	}
	return j
}

func TestHook_RecordsEnqueued(t *testing.T) {
	rec := &memRecorder{}
	h := audit.New(rec)
	j := newTestJob(t)

	if err := h.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Action != audit.ActionJobEnqueued {
		t.Errorf("Action = %q, want %q", e.Action, audit.ActionJobEnqueued)
	}
	if e.JobID != "job1" {
		t.Errorf("JobID = %q, want job1", e.JobID)
	}
	if e.Outcome != audit.OutcomeSuccess || e.Severity != audit.SeverityInfo {
		t.Errorf("Outcome/Severity = %q/%q", e.Outcome, e.Severity)
	}
	if e.Metadata["command"] != "echo hello" {
		t.Errorf("Metadata[command] = %v", e.Metadata["command"])
	}
}

func TestHook_DeadCarriesFailureDetail(t *testing.T) {
	rec := &memRecorder{}
	h := audit.New(rec)
	j := newTestJob(t)
	j.State = job.StateDead
	j.Attempts = 3

	out := job.Failed(127, "command not found")
	if err := h.OnJobDead(context.Background(), j, out); err != nil {
		t.Fatalf("OnJobDead: %v", err)
	}

	e := rec.entries[0]
	if e.Severity != audit.SeverityCritical || e.Outcome != audit.OutcomeFailure {
		t.Errorf("Severity/Outcome = %q/%q", e.Severity, e.Outcome)
	}
	if e.Metadata["exit_code"] != 127 {
		t.Errorf("Metadata[exit_code] = %v, want 127", e.Metadata["exit_code"])
	}
	if e.Metadata["detail"] != "command not found" {
		t.Errorf("Metadata[detail] = %v", e.Metadata["detail"])
	}
}

func TestHook_ActionFilter(t *testing.T) {
	rec := &memRecorder{}
	h := audit.New(rec, audit.WithActions(audit.ActionJobDead))
	j := newTestJob(t)
	ctx := context.Background()

	if err := h.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if err := h.OnJobStarted(ctx, j); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}
	if err := h.OnJobDead(ctx, j, job.Failed(1, "boom")); err != nil {
		t.Fatalf("OnJobDead: %v", err)
	}

	if len(rec.entries) != 1 || rec.entries[0].Action != audit.ActionJobDead {
		t.Fatalf("entries = %v, want only job.dead", rec.entries)
	}
}

func TestHook_RecorderErrorIsSwallowed(t *testing.T) {
	rec := &memRecorder{err: errors.New("backend down")}
	h := audit.New(rec, audit.WithLogger(slog.New(slog.DiscardHandler)))

	if err := h.OnJobEnqueued(context.Background(), newTestJob(t)); err != nil {
		t.Fatalf("recorder failure must not propagate, got %v", err)
	}
}

func TestHook_CronFired(t *testing.T) {
	rec := &memRecorder{}
	h := audit.New(rec)

	if err := h.OnCronFired(context.Background(), "nightly", "nightly-abc"); err != nil {
		t.Fatalf("OnCronFired: %v", err)
	}
	e := rec.entries[0]
	if e.Action != audit.ActionCronFired || e.JobID != "nightly-abc" {
		t.Errorf("entry = %+v", e)
	}
	if e.Metadata["cron"] != "nightly" {
		t.Errorf("Metadata[cron] = %v", e.Metadata["cron"])
	}
}

func TestHook_ThroughRegistry(t *testing.T) {
	rec := &memRecorder{}
	reg := hook.NewRegistry(slog.New(slog.DiscardHandler))
	reg.Register(audit.New(rec))
	j := newTestJob(t)
	ctx := context.Background()

	reg.EmitJobEnqueued(ctx, j)
	reg.EmitJobCompleted(ctx, j, 20*time.Millisecond)

	if len(rec.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(rec.entries))
	}
	if rec.entries[1].Action != audit.ActionJobCompleted {
		t.Errorf("Action = %q", rec.entries[1].Action)
	}
}

func TestJSONRecorder_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	h := audit.New(audit.NewJSONRecorder(&buf))
	ctx := context.Background()

	if err := h.OnJobEnqueued(ctx, newTestJob(t)); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if err := h.OnJobCompleted(ctx, newTestJob(t), time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	dec := json.NewDecoder(&buf)
	for _, want := range []string{audit.ActionJobEnqueued, audit.ActionJobCompleted} {
		var e audit.Entry
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if e.Action != want {
			t.Errorf("Action = %q, want %q", e.Action, want)
		}
		if e.At.IsZero() {
			t.Error("At is zero")
		}
	}
}
