package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	queued "github.com/queued-dev/queued"
	"github.com/queued-dev/queued/backoff"
	"github.com/queued-dev/queued/cron"
	"github.com/queued-dev/queued/dlq"
	"github.com/queued-dev/queued/hook"
	"github.com/queued-dev/queued/id"
	"github.com/queued-dev/queued/job"
	mw "github.com/queued-dev/queued/middleware"
	"github.com/queued-dev/queued/store"
	"github.com/queued-dev/queued/worker"
)

const instrumentationName = "github.com/queued-dev/queued"

// Engine is the top-level handle over a store, a worker pool, the hook
// registry, the DLQ view, and the cron scheduler. Create one with New.
type Engine struct {
	store     store.Store
	cfg       queued.Config
	logger    *slog.Logger
	hooks     *hook.Registry
	dlqSvc    *dlq.Service
	scheduler *cron.Scheduler
	pool      *worker.Pool

	// Assembly inputs, consumed by New.
	runner         worker.CommandRunner
	bo             backoff.Strategy
	mws            []mw.Middleware
	pendingHooks   []hook.Hook
	rateLimit      float64
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the whole engine configuration. Later options still
// override individual fields.
func WithConfig(cfg queued.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger used by every subsystem.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithConcurrency sets the number of concurrent workers claiming jobs.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.cfg.Concurrency = n }
}

// WithPollInterval sets how long an idle worker waits between claim
// attempts.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.cfg.PollInterval = d }
}

// WithCommandTimeout bounds each command execution. Zero disables the
// deadline.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Engine) { e.cfg.CommandTimeout = d }
}

// WithShutdownTimeout sets how long Stop and Run wait for in-flight jobs
// before cancelling their contexts.
func WithShutdownTimeout(d time.Duration) Option {
	return func(e *Engine) { e.cfg.ShutdownTimeout = d }
}

// WithBackoff sets the strategy workers use to stretch polling when the
// store keeps erroring. Defaults to backoff.DefaultStrategy().
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithMiddleware appends middleware to the execution chain, after the
// built-in recover/tracing/metrics/logging/timeout stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithHook registers a lifecycle hook.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) { e.pendingHooks = append(e.pendingHooks, h) }
}

// WithRunner replaces the default shell runner. Useful for tests and for
// embedding queued with a non-shell execution strategy.
func WithRunner(r worker.CommandRunner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithRateLimit caps job starts across the pool at n per second. Zero or
// negative disables the limiter.
func WithRateLimit(n float64) Option {
	return func(e *Engine) { e.rateLimit = n }
}

// WithTracerProvider sets a custom OTel TracerProvider. If not set, the
// global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. If not set, the
// global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New assembles an Engine on top of the given store.
func New(s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, queued.ErrNoStore
	}

	e := &Engine{
		store:  s,
		cfg:    queued.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.bo == nil {
		e.bo = backoff.DefaultStrategy()
	}
	if e.runner == nil {
		e.runner = &worker.ShellRunner{}
	}

	e.hooks = hook.NewRegistry(e.logger)
	for _, h := range e.pendingHooks {
		e.hooks.Register(h)
	}
	e.pendingHooks = nil

	var tracingMw mw.Middleware
	if e.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(e.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if e.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(e.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Recover outermost so it also catches panics from other middleware;
	// timeout innermost so the deadline covers only the command itself.
	allMws := append([]mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
		mw.Timeout(e.cfg.CommandTimeout),
	}, e.mws...)

	executor := worker.NewExecutor(e.store, e.runner, e.hooks, e.logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithConcurrency(e.cfg.Concurrency),
		worker.WithPollInterval(e.cfg.PollInterval),
		worker.WithBackoff(e.bo),
	}
	if e.rateLimit > 0 {
		poolOpts = append(poolOpts, worker.WithRateLimit(e.rateLimit))
	}
	e.pool = worker.NewPool(e.store, executor, e.logger, poolOpts...)

	e.dlqSvc = dlq.NewService(e.store, e.hooks)
	e.scheduler = cron.NewScheduler(e.Enqueue, e.hooks, e.logger)

	return e, nil
}

// Enqueue creates a pending job and persists it. The jobID is
// caller-assigned and must be unique across all jobs in the store.
func (e *Engine) Enqueue(ctx context.Context, jobID, command string, opts ...job.Option) (*job.Job, error) {
	j, err := job.New(jobID, command, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.store.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	e.hooks.EmitJobEnqueued(ctx, j)
	return j, nil
}

// Get retrieves a job by ID.
func (e *Engine) Get(ctx context.Context, jobID string) (*job.Job, error) {
	return e.store.Get(ctx, jobID)
}

// Delete removes a job by ID.
func (e *Engine) Delete(ctx context.Context, jobID string) error {
	return e.store.Delete(ctx, jobID)
}

// List returns jobs in the given state; the empty state means all jobs.
func (e *Engine) List(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	return e.store.List(ctx, state, opts)
}

// Summary returns the number of jobs in each state.
func (e *Engine) Summary(ctx context.Context) (map[job.State]int, error) {
	return e.store.Summary(ctx)
}

// AddCron registers a cron definition with the scheduler. Definitions
// added after Start fire on the next tick.
func (e *Engine) AddCron(def cron.Definition) error {
	return e.scheduler.Add(def)
}

// RemoveCron drops a cron definition by name.
func (e *Engine) RemoveCron(name string) {
	e.scheduler.Remove(name)
}

// DLQ returns the dead-letter service for inspection and replay.
func (e *Engine) DLQ() *dlq.Service { return e.dlqSvc }

// Hooks returns the hook registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Scheduler returns the cron scheduler.
func (e *Engine) Scheduler() *cron.Scheduler { return e.scheduler }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// WorkerID returns the pool's unique worker identifier.
func (e *Engine) WorkerID() id.WorkerID { return e.pool.WorkerID() }

// Start verifies the store is reachable, then starts the cron scheduler
// and the worker pool. It does not block.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("engine: store ping: %w", err)
	}
	if err := e.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("engine: start cron scheduler: %w", err)
	}
	if err := e.pool.Start(ctx); err != nil {
		return fmt.Errorf("engine: start worker pool: %w", err)
	}
	e.logger.Info("engine started",
		slog.String("worker_id", e.pool.WorkerID().String()),
		slog.Int("concurrency", e.cfg.Concurrency),
	)
	return nil
}

// Stop shuts down the scheduler and the pool, waiting for in-flight jobs
// up to the context deadline. When the context carries no deadline, the
// configured ShutdownTimeout applies.
func (e *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && e.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	// Stop the scheduler first so no new jobs are minted while the pool
	// drains.
	schedErr := e.scheduler.Stop(ctx)
	poolErr := e.pool.Stop(ctx)

	e.hooks.EmitShutdown(ctx)
	e.logger.Info("engine stopped")
	return errors.Join(schedErr, poolErr)
}

// Run starts the engine and blocks until ctx is cancelled, then performs
// a graceful shutdown. It is the usual entry point for a worker process:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err := eng.Run(ctx)
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop(context.WithoutCancel(ctx))
}
