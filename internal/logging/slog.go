package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyCalendar  = "calendar_id"
	KeyEvent     = "event_id"
	KeyEquipment = "equipment"
	KeyAction    = "action"
	KeyPass      = "pass_id"
	KeySheet     = "sheet"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// Status values for consistent logging.
// Note: These are intentionally duplicated from instrumentation package
// to avoid circular dependencies.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// New builds a logger writing to w in the given format ("text" or "json")
// at the given level ("debug", "info", "warn", "error").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q, must be one of: text, json", format)
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", level)
	}
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithCalendar returns a logger with the calendar attribute set.
func WithCalendar(logger *slog.Logger, calendarID string) *slog.Logger {
	return logger.With(slog.String(KeyCalendar, calendarID))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Calendar returns a slog attribute for a calendar id.
func Calendar(id string) slog.Attr {
	return slog.String(KeyCalendar, id)
}

// Event returns a slog attribute for an event id.
func Event(id string) slog.Attr {
	return slog.String(KeyEvent, id)
}

// Equipment returns a slog attribute for an equipment name.
func Equipment(name string) slog.Attr {
	return slog.String(KeyEquipment, name)
}

// Action returns a slog attribute for a log action ("add" or "cancel").
func Action(action string) slog.Attr {
	return slog.String(KeyAction, action)
}

// Pass returns a slog attribute for a sync pass id.
func Pass(id string) slog.Attr {
	return slog.String(KeyPass, id)
}

// Sheet returns a slog attribute for a spreadsheet tab name.
func Sheet(name string) slog.Attr {
	return slog.String(KeySheet, name)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a masked version of a sync cursor or credential for
// logging. Only the length is exposed.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
