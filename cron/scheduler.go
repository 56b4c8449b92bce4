// Package cron enqueues jobs on a schedule. Definitions live in memory
// for the lifetime of the process; each firing enqueues a fresh job whose
// ID is the definition name plus a random suffix, so repeated firings
// never collide with the duplicate-ID check.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"

	"github.com/queued-dev/queued/job"
)

// EnqueueFunc is the callback the scheduler uses to enqueue jobs. The
// engine provides the implementation; the indirection breaks the import
// cycle.
type EnqueueFunc func(ctx context.Context, jobID, command string, opts ...job.Option) (*job.Job, error)

// Emitter emits cron lifecycle events. hook.Registry satisfies this via
// EmitCronFired.
type Emitter interface {
	EmitCronFired(ctx context.Context, name, jobID string)
}

// Definition is a named schedule that enqueues a command when due.
type Definition struct {
	// Name identifies the definition and prefixes generated job IDs.
	Name string
	// Schedule is a standard 5-field cron expression or a descriptor
	// like "@every 30s".
	Schedule string
	// Command is the shell command each generated job runs.
	Command string
	// MaxRetries is the retry budget for generated jobs. Zero uses the
	// job default.
	MaxRetries int
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// entry pairs a definition with its parsed schedule and next due time.
type entry struct {
	def   Definition
	sched cronlib.Schedule
	next  time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// Scheduler fires due definitions on a tick loop.
type Scheduler struct {
	enqueue EnqueueFunc
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a Scheduler. emitter may be nil.
func NewScheduler(enqueue EnqueueFunc, emitter Emitter, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		enqueue:      enqueue,
		emitter:      emitter,
		logger:       logger,
		tickInterval: time.Second,
		entries:      make(map[string]*entry),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a definition. The first firing is the schedule's next
// activation after now.
func (s *Scheduler) Add(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("queued/cron: definition needs a name")
	}
	if def.Command == "" {
		return fmt.Errorf("queued/cron: definition %q needs a command", def.Name)
	}
	sched, err := ParseSchedule(def.Schedule)
	if err != nil {
		return fmt.Errorf("queued/cron: parse schedule %q: %w", def.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[def.Name]; exists {
		return fmt.Errorf("queued/cron: definition %q already registered", def.Name)
	}
	s.entries[def.Name] = &entry{
		def:   def,
		sched: sched,
		next:  sched.Next(time.Now()),
	}
	return nil
}

// Remove drops a definition by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	delete(s.entries, name)
	s.mu.Unlock()
}

// Definitions returns the registered definitions.
func (s *Scheduler) Definitions() []Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := make([]Definition, 0, len(s.entries))
	for _, e := range s.entries {
		defs = append(defs, e.def)
	}
	return defs
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
		slog.Int("definitions", len(s.entries)),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the tick loop.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick fires every due entry once and advances its next activation.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	due := make([]*entry, 0)
	for _, e := range s.entries {
		if !e.next.After(now) {
			due = append(due, e)
			e.next = e.sched.Next(now)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fire(e.def)
	}
}

func (s *Scheduler) fire(def Definition) {
	ctx := context.Background()
	jobID := def.Name + "-" + uuid.NewString()

	var opts []job.Option
	if def.MaxRetries > 0 {
		opts = append(opts, job.WithMaxRetries(def.MaxRetries))
	}

	j, err := s.enqueue(ctx, jobID, def.Command, opts...)
	if err != nil {
		s.logger.Error("cron enqueue error",
			slog.String("cron_name", def.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.emitter != nil {
		s.emitter.EmitCronFired(ctx, def.Name, j.ID)
	}

	s.logger.Info("cron fired",
		slog.String("cron_name", def.Name),
		slog.String("job_id", j.ID),
	)
}
