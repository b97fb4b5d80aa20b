package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMode      = "mode"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrAction    = "action"
	attrReason    = "reason"
	attrKind      = "kind"
	attrCalendar  = "calendar_id"
)

// Metrics records sync, logging and Google API metrics. The zero value is a
// no-op recorder.
type Metrics struct {
	syncPassesTotal          metric.Int64Counter
	syncPassDuration         metric.Float64Histogram
	syncEventsTotal          metric.Int64Counter
	syncSkippedTotal         metric.Int64Counter
	cursorInvalidationsTotal metric.Int64Counter

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	logRowsTotal       metric.Int64Counter
	notificationsTotal metric.Int64Counter

	// detailedLabels adds the calendar id to per-pass metrics
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.syncPassesTotal, err = meter.Int64Counter(
		"sync_passes_total",
		metric.WithDescription("Total number of calendar sync passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_passes_total counter: %w", err)
	}

	m.syncPassDuration, err = meter.Float64Histogram(
		"sync_pass_duration_seconds",
		metric.WithDescription("Calendar sync pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_pass_duration_seconds histogram: %w", err)
	}

	m.syncEventsTotal, err = meter.Int64Counter(
		"sync_events_total",
		metric.WithDescription("Total number of events processed by sync passes"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_events_total counter: %w", err)
	}

	m.syncSkippedTotal, err = meter.Int64Counter(
		"sync_skipped_events_total",
		metric.WithDescription("Total number of events skipped by sync passes"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_skipped_events_total counter: %w", err)
	}

	m.cursorInvalidationsTotal, err = meter.Int64Counter(
		"sync_cursor_invalidations_total",
		metric.WithDescription("Total number of sync cursors rejected by the calendar API"),
		metric.WithUnit("{cursor}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_cursor_invalidations_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.logRowsTotal, err = meter.Int64Counter(
		"event_log_rows_total",
		metric.WithDescription("Total number of reservation log rows by outcome"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event_log_rows_total counter: %w", err)
	}

	m.notificationsTotal, err = meter.Int64Counter(
		"notifications_total",
		metric.WithDescription("Total number of change notifications received"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications_total counter: %w", err)
	}

	return m, nil
}

// RecordSyncPass records one finished sync pass.
//
// Parameters:
//   - calendarID: write calendar id (only attached when detailed labels are on)
//   - mode: ModeIncremental, ModeFull or ModeRepair
//   - status: StatusSuccess or StatusError
//   - duration: wall time of the pass
func (m *Metrics) RecordSyncPass(ctx context.Context, calendarID, mode, status string, duration time.Duration) {
	if m == nil || m.syncPassesTotal == nil || m.syncPassDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMode, mode),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && calendarID != "" {
		attrs = append(attrs, attribute.String(attrCalendar, calendarID))
	}

	m.syncPassesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.syncPassDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSyncEvents adds n processed events for an action ("add", "cancel", "repair").
func (m *Metrics) RecordSyncEvents(ctx context.Context, action string, n int) {
	if m == nil || m.syncEventsTotal == nil || n == 0 {
		return
	}
	m.syncEventsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrAction, action)))
}

// RecordSkippedEvent records an event skipped for the given reason.
func (m *Metrics) RecordSkippedEvent(ctx context.Context, reason string) {
	if m == nil || m.syncSkippedTotal == nil {
		return
	}
	m.syncSkippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordCursorInvalidation records a sync cursor rejected by the calendar API.
func (m *Metrics) RecordCursorInvalidation(ctx context.Context) {
	if m == nil || m.cursorInvalidationsTotal == nil {
		return
	}
	m.cursorInvalidationsTotal.Add(ctx, 1)
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordLogRow records the outcome of one log flush ("written", "duplicate",
// "archived", "error").
func (m *Metrics) RecordLogRow(ctx context.Context, status string) {
	if m == nil || m.logRowsTotal == nil {
		return
	}
	m.logRowsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordNotification records a received change notification.
func (m *Metrics) RecordNotification(ctx context.Context, kind, status string) {
	if m == nil || m.notificationsTotal == nil {
		return
	}
	m.notificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	))
}

// ObserveGoogleAPI times fn and records it as a Google API operation.
func (m *Metrics) ObserveGoogleAPI(ctx context.Context, service, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))
	return err
}
