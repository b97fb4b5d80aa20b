package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMetrics(t *testing.T) (*Metrics, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
		DetailedLabels:  true,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}
	return metrics, ctx
}

func TestMetrics_RecordSync(t *testing.T) {
	metrics, ctx := newTestMetrics(t)

	// Should not panic
	metrics.RecordSyncPass(ctx, "w_a", ModeFull, StatusSuccess, 2*time.Second)
	metrics.RecordSyncPass(ctx, "", ModeIncremental, StatusError, 10*time.Millisecond)
	metrics.RecordSyncEvents(ctx, "add", 3)
	metrics.RecordSyncEvents(ctx, "cancel", 0)
	metrics.RecordSkippedEvent(ctx, "malformed_title")
	metrics.RecordCursorInvalidation(ctx)
	metrics.RecordLogRow(ctx, "written")
	metrics.RecordNotification(ctx, "calendar", StatusSuccess)
}

func TestMetrics_ObserveGoogleAPI(t *testing.T) {
	metrics, ctx := newTestMetrics(t)

	if err := metrics.ObserveGoogleAPI(ctx, ServiceCalendar, "list", func() error { return nil }); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	want := errors.New("quota exceeded")
	if err := metrics.ObserveGoogleAPI(ctx, ServiceSheets, "update", func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestMetrics_NoOp_WhenDisabled(t *testing.T) {
	ctx := context.Background()

	var nilMetrics *Metrics
	zero := &Metrics{}
	for _, m := range []*Metrics{nilMetrics, zero} {
		m.RecordSyncPass(ctx, "w_a", ModeRepair, StatusSuccess, time.Second)
		m.RecordSyncEvents(ctx, "add", 1)
		m.RecordSkippedEvent(ctx, "unknown_user")
		m.RecordCursorInvalidation(ctx)
		m.RecordGoogleAPIOperation(ctx, ServiceDrive, "update", StatusSuccess, time.Millisecond)
		m.RecordLogRow(ctx, "duplicate")
		m.RecordNotification(ctx, "directory", StatusError)
		if err := m.ObserveGoogleAPI(ctx, ServiceCalendar, "get", func() error { return nil }); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	}
}
