package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/queued-dev/queued/job"
)

// tracerName is the instrumentation scope name for queued tracing.
const tracerName = "github.com/queued-dev/queued"

// Tracing returns middleware that wraps command execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes: queued.job.id, queued.job.attempt. On failure the
// span status is set to codes.Error with the failure detail.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) job.Outcome {
		ctx, span := tracer.Start(ctx, "queued.job.execute",
			trace.WithAttributes(
				attribute.String("queued.job.id", j.ID),
				attribute.Int("queued.job.attempt", j.Attempts+1),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		out := next(ctx)
		if out.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, out.Detail)
			span.SetAttributes(attribute.Int("queued.job.exit_code", out.ExitCode))
		}

		return out
	}
}
