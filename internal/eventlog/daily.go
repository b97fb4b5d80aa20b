package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/reservation"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// EventLister pages through a calendar.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, opts calendar.ListOptions) (*calendar.EventPage, error)
}

// Writer is a user whose write calendar is included in the daily log.
type Writer struct {
	Name       string
	CalendarID string
}

// Writers lists every user with a write calendar, once per calendar.
func Writers(snap *directory.Snapshot) []Writer {
	var out []Writer
	seen := make(map[string]bool)
	for _, sub := range snap.ListSubscribers() {
		if sub.IsAllEvents() || seen[sub.WriteCalendarID] {
			continue
		}
		seen[sub.WriteCalendarID] = true
		out = append(out, Writer{Name: sub.Name, CalendarID: sub.WriteCalendarID})
	}
	return out
}

// DailyConfig configures a DailyLogger.
type DailyConfig struct {
	Source   EventLister
	Book     Book
	Sheet    string
	Archiver *Archiver
	// BackupRows is the row budget of the final log sheet.
	BackupRows int
	Location   *time.Location
	PageSize   int64
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// DailyLogger appends the events of one past day to the final log sheet.
type DailyLogger struct {
	cfg  DailyConfig
	rows *Logger
}

// NewDaily creates a DailyLogger.
func NewDaily(cfg DailyConfig) *DailyLogger {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 250
	}
	return &DailyLogger{
		cfg: cfg,
		rows: New(Config{
			Book:     cfg.Book,
			Archiver: cfg.Archiver,
			Location: cfg.Location,
			Logger:   cfg.Logger,
			Metrics:  cfg.Metrics,
		}),
	}
}

// Window returns the interval logged by a run on day: from midnight three
// days before to midnight two days before, in the configured location.
func (d *DailyLogger) Window(day time.Time) (time.Time, time.Time) {
	return reservation.StartOfDay(day, d.cfg.Location, -3), reservation.StartOfDay(day, d.cfg.Location, -2)
}

// Run logs every active event of writers that starts inside Window(day). It
// returns the number of rows written.
func (d *DailyLogger) Run(ctx context.Context, day time.Time, writers []Writer) (int, error) {
	from, to := d.Window(day)
	logger := logging.WithOperation(d.cfg.Logger, "daily_log").With(
		slog.Time("from", from),
		slog.Time("to", to))

	var rows [][]any
	for _, w := range writers {
		if w.CalendarID == "" {
			continue
		}
		events, err := d.list(ctx, w.CalendarID, from, to)
		if err != nil {
			return 0, err
		}

		n := 0
		for _, ev := range events {
			if ev.Cancelled() || ev.Start.Before(from) || !ev.Start.Before(to) {
				continue
			}
			equipment, state, err := reservation.ParseEquipmentAndState(ev.Summary)
			if err != nil {
				logger.Warn("skipping event with malformed title",
					logging.Calendar(w.CalendarID),
					logging.Event(ev.ID),
					slog.String("title", ev.Summary))
				continue
			}
			rec := Fields{
				ColStartTime:     ev.Start,
				ColEndTime:       ev.End,
				ColName:          w.Name,
				ColEquipmentName: equipment,
				ColState:         state,
				ColDescription:   ev.Description,
				ColAllDay:        ev.AllDay,
				ColRecurring:     ev.Recurring,
				ColID:            ev.ID,
			}
			row := Render(rec, d.cfg.Location)
			values := make([]any, len(row))
			for i, v := range row {
				values[i] = v
			}
			rows = append(rows, values)
			n++
		}
		logger.Info("collected events for daily log", logging.Calendar(w.CalendarID), slog.Int("events", n))
	}

	if len(rows) == 0 {
		return 0, nil
	}

	start, err := d.rows.nextRow(ctx, d.cfg.Sheet, d.cfg.BackupRows)
	if err != nil {
		return 0, err
	}
	rng := sheets.Range(d.cfg.Sheet, 1, start, NumColumns, start+len(rows)-1)
	if err := d.cfg.Book.WriteRange(ctx, rng, rows); err != nil {
		d.cfg.Metrics.RecordLogRow(ctx, RowError)
		return 0, fmt.Errorf("failed to write daily log: %w", err)
	}
	for range rows {
		d.cfg.Metrics.RecordLogRow(ctx, RowWritten)
	}

	logger.Info("wrote daily log", logging.Sheet(d.cfg.Sheet), slog.Int("rows", len(rows)), slog.Int("first_row", start))
	return len(rows), nil
}

// list pages through events overlapping [from, to).
func (d *DailyLogger) list(ctx context.Context, calendarID string, from, to time.Time) ([]calendar.Event, error) {
	var events []calendar.Event
	opts := calendar.ListOptions{TimeMin: from, TimeMax: to, MaxResults: d.cfg.PageSize}
	for {
		page, err := d.cfg.Source.ListEvents(ctx, calendarID, opts)
		if err != nil {
			if errors.Is(err, calendar.ErrNotFound) {
				d.cfg.Logger.Warn("write calendar not found", logging.Calendar(calendarID))
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list events for daily log: %w", err)
		}
		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			return events, nil
		}
		opts.PageToken = page.NextPageToken
	}
}
