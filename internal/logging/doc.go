// Package logging provides structured logging utilities for reservesync.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger scoped to one write calendar:
//
//	logger := logging.WithCalendar(slog.Default(), calendarID)
//	logger.Info("event mirrored",
//	    logging.Event(ev.ID),
//	    logging.Equipment("rie"))
//
// Sync cursors are opaque credentials of a sort and are never logged directly:
//
//	logger.Debug("using cursor", "cursor", logging.SanitizeToken(cursor))
package logging
