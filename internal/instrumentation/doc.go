// Package instrumentation provides OpenTelemetry metrics and tracing for
// reservesync.
//
// # Metrics
//
// Sync metrics:
//   - sync_passes_total: Counter of sync passes by mode and status
//   - sync_pass_duration_seconds: Histogram of sync pass durations
//   - sync_events_total: Counter of processed events by action
//   - sync_skipped_events_total: Counter of skipped events by reason
//   - sync_cursor_invalidations_total: Counter of rejected sync cursors
//
// Google API metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Logging and trigger metrics:
//   - event_log_rows_total: Counter of log flushes by outcome
//   - notifications_total: Counter of change notifications by kind and status
//
// # Tracing
//
// Spans are created for each sync pass (sync.<mode>) and each Google API call
// (google.<service>.<operation>).
//
// # Configuration
//
// Configuration is read from the environment by DefaultConfig:
//
//	INSTRUMENTATION_ENABLED=true
//	METRICS_EXPORTER=prometheus      # prometheus, otlp, stdout
//	TRACING_EXPORTER=none            # otlp, stdout, none
//	OTEL_EXPORTER_OTLP_ENDPOINT=localhost:4318
//	OTEL_TRACES_SAMPLER_ARG=0.1
//	METRICS_DETAILED_LABELS=false
package instrumentation
