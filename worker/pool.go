package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/queued-dev/queued/backoff"
	"github.com/queued-dev/queued/id"
	"github.com/queued-dev/queued/job"
)

// Pool manages a set of concurrent worker goroutines that claim pending
// jobs and execute them through the Executor. Stopping is cooperative:
// workers finish the job they hold before exiting, unless the Stop
// context expires first.
type Pool struct {
	store        job.Store
	executor     *Executor
	concurrency  int
	pollInterval time.Duration
	backoff      backoff.Strategy
	limiter      *rate.Limiter
	workerID     id.WorkerID
	logger       *slog.Logger

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of concurrent worker goroutines.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how long an idle worker waits between claim
// attempts.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithBackoff sets the strategy used to stretch the poll interval when
// the store keeps erroring.
func WithBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.backoff = s }
}

// WithRateLimit caps job starts across the whole pool at n per second.
// Zero or negative disables the limiter.
func WithRateLimit(n float64) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// NewPool creates a worker pool.
func NewPool(store job.Store, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		store:        store,
		executor:     executor,
		concurrency:  4,
		pollInterval: 5 * time.Second,
		backoff:      backoff.DefaultStrategy(),
		workerID:     id.NewWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
		activeJobs:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Duration("poll_interval", p.pollInterval),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.claimLoop()
	}
	return nil
}

// Stop signals all workers to stop and waits for them to finish their
// in-flight jobs. If the context has a deadline, jobs still running when
// it expires are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}
	return nil
}

// claimLoop is run by each worker goroutine. Each iteration claims at
// most one job; claims and completions go through the store, so workers
// in this pool and in other processes never double-run a job.
func (p *Pool) claimLoop() {
	defer p.wg.Done()

	errStreak := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		j, err := p.store.ClaimNext(context.Background())
		if err != nil {
			errStreak++
			p.logger.Error("claim error",
				slog.String("error", err.Error()),
				slog.Int("streak", errStreak),
			)
			p.sleep(p.backoff.Delay(errStreak))
			continue
		}
		errStreak = 0

		if j == nil {
			p.sleep(p.pollInterval)
			continue
		}

		if p.limiter != nil {
			if waitErr := p.limiter.Wait(context.Background()); waitErr != nil {
				p.logger.Warn("rate limiter wait failed", slog.String("error", waitErr.Error()))
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		p.trackJob(j.ID, cancel)

		if execErr := p.executor.Execute(ctx, j); execErr != nil {
			// Storage failure: the job stays processing and is visible in
			// listings; the loop keeps going.
			p.logger.Error("execution not persisted",
				slog.String("job_id", j.ID),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(j.ID)
		cancel()
	}
}

// sleep waits for d or until the pool is stopped, whichever comes first.
func (p *Pool) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
