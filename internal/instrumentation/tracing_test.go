package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder swaps the global tracer provider for one that records
// spans in memory.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSyncSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSyncSpan(context.Background(), "w_a", ModeFull, "pass-1")
	if GetTraceID(ctx) == "" {
		t.Error("expected a trace id in span context")
	}
	EndSpan(span, nil)

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "sync.full" {
		t.Errorf("span name = %q, want %q", ended[0].Name(), "sync.full")
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", ended[0].Status().Code)
	}

	found := false
	for _, kv := range ended[0].Attributes() {
		if string(kv.Key) == SpanAttrCalendar && kv.Value.AsString() == "w_a" {
			found = true
		}
	}
	if !found {
		t.Error("expected calendar attribute on sync span")
	}
}

func TestStartGoogleAPISpan(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceCalendar, "list")
	EndSpan(span, errors.New("gone"))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "google.calendar.list" {
		t.Errorf("span name = %q, want %q", ended[0].Name(), "google.calendar.list")
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", ended[0].Status().Code)
	}
	if len(ended[0].Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestSpanHelpers_NoPanic(t *testing.T) {
	_, span := StartSpan(context.Background(), "test-span")
	SetSpanError(span, nil)
	AddSpanEvent(span, "test-event")
	SetSpanSuccess(span)
	span.End()
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if traceID := GetTraceID(context.Background()); traceID != "" {
		t.Errorf("expected empty trace ID for context without span, got %q", traceID)
	}
}
