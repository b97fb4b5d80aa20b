package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/reservation"
)

// RunSync runs one pass over writeCalendarID. When fullSync is set, or no
// cursor is stored, every event ending after the lookback window start is
// pulled; otherwise only events changed since the cursor.
//
// An invalid cursor is deleted and the pass is retried once as a full pass.
// Any other calendar error aborts the pass without touching the cursor.
func (e *Engine) RunSync(ctx context.Context, writeCalendarID string, fullSync bool) (res *Result, err error) {
	start := e.opts.Now()
	res = &Result{PassID: uuid.NewString(), CalendarID: writeCalendarID, Mode: mode(fullSync)}

	ctx, span := instrumentation.StartSyncSpan(ctx, writeCalendarID, res.Mode, res.PassID)
	logger := logging.WithCalendar(logging.WithOperation(e.opts.Logger, "sync"), writeCalendarID).
		With(logging.Pass(res.PassID))

	defer func() {
		res.Duration = e.opts.Now().Sub(start)
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			logger.Error("sync pass failed", logging.Err(err))
		}
		e.opts.Metrics.RecordSyncPass(ctx, writeCalendarID, res.Mode, status, res.Duration)
		instrumentation.EndSpan(span, err)
	}()

	snap, err := e.dir.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load directory: %w", err)
	}

	writer, err := snap.Writer(writeCalendarID)
	if err != nil {
		logger.Warn("write calendar belongs to no user, skipping pass")
		e.opts.Metrics.RecordSkippedEvent(ctx, SkipUnknownUser)
		return res, fmt.Errorf("%w: write calendar %s", ErrUnknownUser, writeCalendarID)
	}
	logger = logger.With(slog.String("writer", writer.Name))

	var events []calendar.Event
	for attempt := 0; ; attempt++ {
		events, err = e.pull(ctx, logger, writeCalendarID, fullSync)
		if err == nil {
			break
		}
		if attempt == 0 && errors.Is(err, calendar.ErrSyncTokenInvalid) {
			logger.Warn("sync cursor rejected, retrying as full sync")
			if err := e.cursors.InvalidateCursor(ctx, writeCalendarID); err != nil {
				return res, err
			}
			e.opts.Metrics.RecordCursorInvalidation(ctx)
			fullSync = true
			res.Mode = instrumentation.ModeFull
			res.Recovered = true
			continue
		}
		return res, err
	}

	res.Events = len(events)
	var active, cancelled []calendar.Event
	for _, ev := range events {
		if ev.Cancelled() {
			cancelled = append(cancelled, ev)
		} else {
			active = append(active, ev)
		}
	}
	res.Active, res.Cancelled = len(active), len(cancelled)
	logger.Info("pulled events",
		slog.Int("active", res.Active),
		slog.Int("cancelled", res.Cancelled),
		slog.Bool("full", fullSync))

	for _, ev := range active {
		if err := e.syncActive(ctx, logger, snap, writer, ev, res); err != nil {
			return res, err
		}
	}
	for _, ev := range cancelled {
		if err := e.syncCancelled(ctx, logger, snap, writer, ev, res); err != nil {
			return res, err
		}
	}

	if err := e.refreshCursor(ctx, logger, writeCalendarID); err != nil {
		return res, err
	}
	res.Cursor = true

	e.opts.Metrics.RecordSyncEvents(ctx, eventlog.ActionAdd, res.Active)
	e.opts.Metrics.RecordSyncEvents(ctx, eventlog.ActionCancel, res.Cancelled)
	logger.Info("sync pass complete",
		slog.Int("updated", res.Updated),
		slog.Int("logged", res.Logged),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func mode(full bool) string {
	if full {
		return instrumentation.ModeFull
	}
	return instrumentation.ModeIncremental
}

// pull lists every page of changed events.
func (e *Engine) pull(ctx context.Context, logger *slog.Logger, calendarID string, full bool) ([]calendar.Event, error) {
	opts := calendar.ListOptions{MaxResults: e.opts.PageSize, ShowDeleted: true}

	cursor, ok := "", false
	if !full {
		var err error
		if cursor, ok, err = e.cursors.Cursor(ctx, calendarID); err != nil {
			return nil, err
		}
	}
	if ok {
		opts.SyncToken = cursor
		logger.Debug("using sync cursor", slog.String("cursor", logging.SanitizeToken(cursor)))
	} else {
		opts.TimeMin = reservation.StartOfDay(e.opts.Now(), e.opts.Location, -e.opts.LookbackDays)
		logger.Debug("no usable sync cursor, listing lookback window", slog.Time("time_min", opts.TimeMin))
	}

	var events []calendar.Event
	for {
		page, err := e.source.ListEvents(ctx, calendarID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			return events, nil
		}
		opts.PageToken = page.NextPageToken
	}
}

// refreshCursor lists the calendar without a time filter and stores the sync
// token of the last page.
func (e *Engine) refreshCursor(ctx context.Context, logger *slog.Logger, calendarID string) error {
	opts := calendar.ListOptions{MaxResults: e.opts.CursorPageSize, ShowDeleted: true}
	for {
		page, err := e.source.ListEvents(ctx, calendarID, opts)
		if err != nil {
			return fmt.Errorf("failed to refresh sync cursor: %w", err)
		}
		if page.NextPageToken != "" {
			opts.PageToken = page.NextPageToken
			continue
		}
		if page.NextSyncToken == "" {
			return fmt.Errorf("failed to refresh sync cursor: listing returned no sync token")
		}
		if err := e.cursors.SetCursor(ctx, calendarID, page.NextSyncToken); err != nil {
			return err
		}
		logger.Debug("stored sync cursor", slog.String("cursor", logging.SanitizeToken(page.NextSyncToken)))
		return nil
	}
}

func (e *Engine) syncActive(ctx context.Context, logger *slog.Logger, snap *directory.Snapshot, writer directory.Subscriber, ev calendar.Event, res *Result) error {
	logger = logger.With(logging.Event(ev.ID))

	equipment, state, err := reservation.ParseEquipmentAndState(ev.Summary)
	if err != nil {
		logger.Warn("skipping event with malformed title", slog.String("title", ev.Summary))
		e.opts.Metrics.RecordSkippedEvent(ctx, SkipMalformedTitle)
		res.Skipped++
		return nil
	}

	e.log.Store(ev.ID, baseFields(ev, writer.Name, equipment, state))

	mirror := FilterSubscribers(snap.Subscribers, writer, equipment)
	title := reservation.FormatTitle(writer.Name, equipment, state)
	logger.Debug("computed mirror set",
		logging.Equipment(equipment),
		slog.Int("guests", len(mirror)),
		slog.Any("read_calendars", mirror))

	var u calendar.EventUpdate
	changed := false
	if ev.Summary != title {
		u.Summary = &title
		changed = true
	}
	if !calendar.SameGuests(ev.Guests, mirror) {
		u.Guests = mirror
		u.Pinned = ev.Pinned
		u.SetGuests = true
		changed = true
	}
	if changed {
		if _, err := e.mutate(ctx, writer.WriteCalendarID, ev.ID, u); err != nil {
			e.log.Discard(ev.ID)
			return err
		}
		res.Updated++
		logger.Info("reconciled event", slog.String("title", title), slog.Int("guests", len(mirror)))
	}

	e.log.Store(ev.ID, eventlog.Fields{eventlog.ColAction: eventlog.ActionAdd})
	return e.flush(ctx, logger, snap, ev.ID, equipment, res)
}

func (e *Engine) syncCancelled(ctx context.Context, logger *slog.Logger, snap *directory.Snapshot, writer directory.Subscriber, ev calendar.Event, res *Result) error {
	logger = logger.With(logging.Event(ev.ID))

	// Tombstones from incremental listings may carry only the id and status.
	full, err := e.source.GetEvent(ctx, writer.WriteCalendarID, ev.ID)
	switch {
	case err == nil:
		ev = *full
	case errors.Is(err, calendar.ErrNotFound):
		logger.Debug("cancelled event no longer retrievable, logging tombstone")
	default:
		return fmt.Errorf("failed to fetch cancelled event %s: %w", ev.ID, err)
	}

	equipment, state, err := reservation.ParseEquipmentAndState(ev.Summary)
	if err != nil {
		logger.Warn("skipping cancelled event with malformed title", slog.String("title", ev.Summary))
		e.opts.Metrics.RecordSkippedEvent(ctx, SkipMalformedTitle)
		res.Skipped++
		return nil
	}

	e.log.Store(ev.ID, baseFields(ev, writer.Name, equipment, state))
	e.log.Store(ev.ID, eventlog.Fields{eventlog.ColAction: eventlog.ActionCancel})
	return e.flush(ctx, logger, snap, ev.ID, equipment, res)
}

func (e *Engine) flush(ctx context.Context, logger *slog.Logger, snap *directory.Snapshot, eventID, equipment string, res *Result) error {
	sheet, ok := snap.SheetFor(equipment)
	if !ok {
		logger.Warn("no equipment sheet for event, dropping log row", logging.Equipment(equipment))
		e.opts.Metrics.RecordSkippedEvent(ctx, SkipUnknownSheet)
		e.log.Discard(eventID)
		return nil
	}
	wrote, err := e.log.Flush(ctx, eventID, sheet)
	if err != nil {
		return fmt.Errorf("failed to log event %s: %w", eventID, err)
	}
	if wrote {
		res.Logged++
	}
	return nil
}

func baseFields(ev calendar.Event, name, equipment, state string) eventlog.Fields {
	return eventlog.Fields{
		eventlog.ColStartTime:     ev.Start,
		eventlog.ColEndTime:       ev.End,
		eventlog.ColName:          name,
		eventlog.ColEquipmentName: equipment,
		eventlog.ColState:         state,
		eventlog.ColDescription:   ev.Description,
		eventlog.ColAllDay:        ev.AllDay,
		eventlog.ColRecurring:     ev.Recurring,
		eventlog.ColID:            ev.ID,
	}
}
