package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/queued-dev/queued/hook"
	"github.com/queued-dev/queued/job"
)

// Compile-time interface checks.
var (
	_ hook.Hook         = (*Hook)(nil)
	_ hook.JobEnqueued  = (*Hook)(nil)
	_ hook.JobStarted   = (*Hook)(nil)
	_ hook.JobCompleted = (*Hook)(nil)
	_ hook.JobRetrying  = (*Hook)(nil)
	_ hook.JobDead      = (*Hook)(nil)
	_ hook.JobRequeued  = (*Hook)(nil)
	_ hook.CronFired    = (*Hook)(nil)
)

// Actions. Each constant corresponds to one lifecycle event and becomes
// the Action field of the audit entry.
const (
	ActionJobEnqueued  = "job.enqueued"
	ActionJobStarted   = "job.started"
	ActionJobCompleted = "job.completed"
	ActionJobRetrying  = "job.retrying"
	ActionJobDead      = "job.dead"
	ActionJobRequeued  = "job.requeued"
	ActionCronFired    = "cron.fired"
)

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Severity values.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AllActions returns every action this hook can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobRetrying,
		ActionJobDead,
		ActionJobRequeued,
		ActionCronFired,
	}
}

// Entry is one audit record.
type Entry struct {
	Action   string         `json:"action"`
	JobID    string         `json:"job_id"`
	Outcome  string         `json:"outcome"`
	Severity string         `json:"severity"`
	At       time.Time      `json:"at"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Recorder is the interface audit backends implement. Record is called
// synchronously from the hook path, keep it fast or buffer internally.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// RecorderFunc adapts a plain function to a Recorder.
type RecorderFunc func(ctx context.Context, e *Entry) error

func (f RecorderFunc) Record(ctx context.Context, e *Entry) error { return f(ctx, e) }

// Hook bridges queue lifecycle events to an audit trail backend.
type Hook struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Hook that emits audit entries through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Hook {
	h := &Hook{
		recorder: r,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements hook.Hook.
func (h *Hook) Name() string { return "audit" }

// OnJobEnqueued implements hook.JobEnqueued.
func (h *Hook) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return h.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess, j.ID,
		"command", j.Command,
		"max_retries", j.MaxRetries,
	)
}

// OnJobStarted implements hook.JobStarted.
func (h *Hook) OnJobStarted(ctx context.Context, j *job.Job) error {
	return h.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess, j.ID,
		"command", j.Command,
		"attempt", j.Attempts+1,
	)
}

// OnJobCompleted implements hook.JobCompleted.
func (h *Hook) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return h.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess, j.ID,
		"command", j.Command,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobRetrying implements hook.JobRetrying.
func (h *Hook) OnJobRetrying(ctx context.Context, j *job.Job, out job.Outcome) error {
	return h.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure, j.ID,
		"command", j.Command,
		"attempt", j.Attempts,
		"max_retries", j.MaxRetries,
		"exit_code", out.ExitCode,
		"detail", out.Detail,
	)
}

// OnJobDead implements hook.JobDead.
func (h *Hook) OnJobDead(ctx context.Context, j *job.Job, out job.Outcome) error {
	return h.record(ctx, ActionJobDead, SeverityCritical, OutcomeFailure, j.ID,
		"command", j.Command,
		"attempts", j.Attempts,
		"exit_code", out.ExitCode,
		"detail", out.Detail,
	)
}

// OnJobRequeued implements hook.JobRequeued.
func (h *Hook) OnJobRequeued(ctx context.Context, j *job.Job) error {
	return h.record(ctx, ActionJobRequeued, SeverityInfo, OutcomeSuccess, j.ID,
		"command", j.Command,
	)
}

// OnCronFired implements hook.CronFired.
func (h *Hook) OnCronFired(ctx context.Context, name, jobID string) error {
	return h.record(ctx, ActionCronFired, SeverityInfo, OutcomeSuccess, jobID,
		"cron", name,
	)
}

// record builds and sends an entry if the action is enabled. kvPairs is
// a flat key-value list added to Metadata. Recorder failures are logged,
// never propagated, so a broken audit backend cannot stall the queue.
func (h *Hook) record(ctx context.Context, action, severity, outcome, jobID string, kvPairs ...any) error {
	if h.enabled != nil && !h.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	e := &Entry{
		Action:   action,
		JobID:    jobID,
		Outcome:  outcome,
		Severity: severity,
		At:       h.now().UTC(),
		Metadata: meta,
	}

	if err := h.recorder.Record(ctx, e); err != nil {
		h.logger.Warn("audit: failed to record entry",
			slog.String("action", action),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
