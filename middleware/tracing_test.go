package middleware_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/queued-dev/queued/job"
	mw "github.com/queued-dev/queued/middleware"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	out := m(context.Background(), newTestJob(), func(_ context.Context) job.Outcome {
		return job.Succeeded()
	})
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "queued.job.execute" {
		t.Errorf("span name = %q, want queued.job.execute", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestTracing_FailureSetsErrorStatus(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	_ = m(context.Background(), newTestJob(), func(_ context.Context) job.Outcome {
		return job.Failed(7, "command blew up")
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	status := spans[0].Status()
	if status.Code != codes.Error {
		t.Errorf("span status = %v, want Error", status.Code)
	}
	if status.Description != "command blew up" {
		t.Errorf("span description = %q", status.Description)
	}

	var exitCode int64 = -999
	for _, attr := range spans[0].Attributes() {
		if attr.Key == attribute.Key("queued.job.exit_code") {
			exitCode = attr.Value.AsInt64()
		}
	}
	if exitCode != 7 {
		t.Errorf("exit_code attribute = %d, want 7", exitCode)
	}
}

func TestTracing_JobAttributes(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	j := newTestJob()
	j.Attempts = 2
	_ = m(context.Background(), j, func(_ context.Context) job.Outcome {
		return job.Succeeded()
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, attr := range spans[0].Attributes() {
		attrs[attr.Key] = attr.Value
	}
	if got := attrs["queued.job.id"].AsString(); got != "job-1" {
		t.Errorf("queued.job.id = %q", got)
	}
	if got := attrs["queued.job.attempt"].AsInt64(); got != 3 {
		t.Errorf("queued.job.attempt = %d, want 3", got)
	}
}
