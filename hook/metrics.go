package hook

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/queued-dev/queued/job"
)

const meterName = "github.com/queued-dev/queued"

// MetricsHook counts queue lifecycle events with OpenTelemetry
// instruments. With no global MeterProvider configured the instruments
// are noops.
//
// Instruments:
//   - queued.jobs.enqueued (Int64Counter)
//   - queued.jobs.retried (Int64Counter)
//   - queued.jobs.dead (Int64Counter)
type MetricsHook struct {
	enqueued metric.Int64Counter
	retried  metric.Int64Counter
	dead     metric.Int64Counter
}

var (
	_ JobEnqueued = (*MetricsHook)(nil)
	_ JobRetrying = (*MetricsHook)(nil)
	_ JobDead     = (*MetricsHook)(nil)
)

// NewMetricsHook creates a MetricsHook on the global MeterProvider.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	h := &MetricsHook{}
	// On error the OTel API returns noop instruments.
	h.enqueued, _ = meter.Int64Counter("queued.jobs.enqueued",
		metric.WithDescription("Total jobs accepted into the queue"),
		metric.WithUnit("{job}"))
	h.retried, _ = meter.Int64Counter("queued.jobs.retried",
		metric.WithDescription("Total failed executions sent back to pending"),
		metric.WithUnit("{job}"))
	h.dead, _ = meter.Int64Counter("queued.jobs.dead",
		metric.WithDescription("Total jobs that exhausted their retry budget"),
		metric.WithUnit("{job}"))
	return h
}

func (h *MetricsHook) Name() string { return "metrics" }

func (h *MetricsHook) OnJobEnqueued(ctx context.Context, _ *job.Job) error {
	h.enqueued.Add(ctx, 1)
	return nil
}

func (h *MetricsHook) OnJobRetrying(ctx context.Context, _ *job.Job, _ job.Outcome) error {
	h.retried.Add(ctx, 1)
	return nil
}

func (h *MetricsHook) OnJobDead(ctx context.Context, _ *job.Job, _ job.Outcome) error {
	h.dead.Add(ctx, 1)
	return nil
}
