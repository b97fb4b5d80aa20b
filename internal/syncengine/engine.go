package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
)

// Defaults for Options.
const (
	DefaultLookbackDays   = 10
	DefaultPageSize       = 100
	DefaultCursorPageSize = 2500
)

// Skip reasons recorded in metrics.
const (
	SkipUnknownUser    = "unknown_user"
	SkipMalformedTitle = "malformed_title"
	SkipUnknownSheet   = "unknown_sheet"
)

var (
	// ErrUnknownUser is returned when a calendar or name matches no user.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnknownEquipment is returned when a sheet maps to no equipment.
	ErrUnknownEquipment = errors.New("unknown equipment")
	// ErrIncompleteRow is returned for condition rows missing time or user.
	ErrIncompleteRow = errors.New("incomplete condition row")
)

// EventSource is the calendar store.
type EventSource interface {
	ListEvents(ctx context.Context, calendarID string, opts calendar.ListOptions) (*calendar.EventPage, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, u calendar.EventUpdate) (*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, ev calendar.Event) (*calendar.Event, error)
}

// Directory provides a fresh subscription snapshot per pass.
type Directory interface {
	Snapshot(ctx context.Context) (*directory.Snapshot, error)
}

// CursorStore persists one sync cursor per calendar.
type CursorStore interface {
	Cursor(ctx context.Context, calendarID string) (string, bool, error)
	SetCursor(ctx context.Context, calendarID, cursor string) error
	InvalidateCursor(ctx context.Context, calendarID string) error
}

// EventLogger accumulates and flushes log rows.
type EventLogger interface {
	Store(eventID string, fields eventlog.Fields)
	Flush(ctx context.Context, eventID, sheet string) (bool, error)
	Discard(eventID string)
}

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	Location       *time.Location
	LookbackDays   int
	PageSize       int64
	CursorPageSize int64
	// Limiter paces calendar mutations. Nil means unlimited.
	Limiter *rate.Limiter
	// Conditions is the spreadsheet holding the equipment sheets; only
	// needed for LoadConditionRow and the description write-back.
	Conditions ConditionBook
	// ConditionCount is the number of condition columns from column M.
	ConditionCount int
	Logger         *slog.Logger
	Metrics        *instrumentation.Metrics
	Now            func() time.Time
}

// Engine runs sync and repair passes.
type Engine struct {
	source  EventSource
	dir     Directory
	cursors CursorStore
	log     EventLogger
	opts    Options
}

// New creates an Engine.
func New(source EventSource, dir Directory, cursors CursorStore, log EventLogger, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.CursorPageSize <= 0 {
		opts.CursorPageSize = DefaultCursorPageSize
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{source: source, dir: dir, cursors: cursors, log: log, opts: opts}
}

// Result summarizes a pass.
type Result struct {
	PassID     string
	CalendarID string
	Mode       string
	Events     int
	Active     int
	Cancelled  int
	// Updated counts events whose title or guests were patched.
	Updated int
	// Logged counts log rows written; duplicates are not counted.
	Logged  int
	Skipped int
	// Recovered is set when an invalid cursor forced a full pass.
	Recovered bool
	// Cursor reports whether a fresh cursor was stored.
	Cursor   bool
	Duration time.Duration
}

func (e *Engine) mutate(ctx context.Context, calendarID, eventID string, u calendar.EventUpdate) (*calendar.Event, error) {
	if err := e.opts.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	updated, err := e.source.UpdateEvent(ctx, calendarID, eventID, u)
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	return updated, nil
}

// FilterSubscribers returns the read calendars that should mirror an event
// of writer for equipment: subscribers that enabled the equipment, minus the
// writer itself (matched by name or by write calendar).
func FilterSubscribers(subscribers []directory.Subscriber, writer directory.Subscriber, equipment string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range subscribers {
		if s.ReadCalendarID == "" || !s.Enabled(equipment) {
			continue
		}
		if writer.Name != "" && s.Name == writer.Name {
			continue
		}
		if s.WriteCalendarID != "" && s.WriteCalendarID == writer.WriteCalendarID {
			continue
		}
		if seen[s.ReadCalendarID] {
			continue
		}
		seen[s.ReadCalendarID] = true
		out = append(out, s.ReadCalendarID)
	}
	return out
}
