package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/queued-dev/queued/job"
)

// meterName is the instrumentation scope name for queued metrics.
const meterName = "github.com/queued-dev/queued"

// Metrics returns middleware that records per-command execution metrics
// using the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - queued.job.duration (Float64Histogram): execution time in seconds,
//     with attribute: status ("succeeded" or "failed")
//   - queued.job.executions (Int64Counter): total executions,
//     with attribute: status ("succeeded" or "failed")
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once; on error the OTel API returns noop
	// instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"queued.job.duration",
		metric.WithDescription("Duration of command execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	executions, eErr := meter.Int64Counter(
		"queued.job.executions",
		metric.WithDescription("Total number of command executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr

	return func(ctx context.Context, j *job.Job, next Handler) job.Outcome {
		start := time.Now()
		out := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "succeeded"
		if !out.Success {
			status = "failed"
		}
		attrs := metric.WithAttributes(attribute.String("status", status))

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return out
	}
}
