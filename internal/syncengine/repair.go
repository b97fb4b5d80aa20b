package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/reservation"
)

// OnSubscriptionChange reconciles one subscriber's membership in the guest
// lists of every write calendar after their equipment checkboxes changed.
// The subscriber is looked up by readCalendarID, or by subscriberIndex when
// readCalendarID is empty.
//
// Only guest lists are touched: titles are left alone, nothing is logged and
// stored cursors are kept, so the next RunSync still sees every user edit.
func (e *Engine) OnSubscriptionChange(ctx context.Context, readCalendarID string, subscriberIndex int) (res *Result, err error) {
	start := e.opts.Now()
	res = &Result{PassID: uuid.NewString(), CalendarID: readCalendarID, Mode: instrumentation.ModeRepair}

	ctx, span := instrumentation.StartSyncSpan(ctx, readCalendarID, res.Mode, res.PassID)
	logger := logging.WithOperation(e.opts.Logger, "repair").With(logging.Pass(res.PassID))

	defer func() {
		res.Duration = e.opts.Now().Sub(start)
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			logger.Error("repair pass failed", logging.Err(err))
		}
		e.opts.Metrics.RecordSyncPass(ctx, res.CalendarID, res.Mode, status, res.Duration)
		instrumentation.EndSpan(span, err)
	}()

	snap, err := e.dir.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load directory: %w", err)
	}

	var target directory.Subscriber
	if readCalendarID != "" {
		target, err = snap.ByReadCalendar(readCalendarID)
	} else {
		target, err = snap.At(subscriberIndex)
	}
	if err != nil {
		e.opts.Metrics.RecordSkippedEvent(ctx, SkipUnknownUser)
		return res, fmt.Errorf("%w: %w", ErrUnknownUser, err)
	}
	if target.ReadCalendarID == "" {
		return res, fmt.Errorf("%w: subscriber %d has no read calendar", ErrUnknownUser, target.Index)
	}
	res.CalendarID = target.ReadCalendarID
	logger = logger.With(
		logging.Calendar(target.ReadCalendarID),
		slog.Int("subscriber", target.Index),
		slog.Any("equipment", target.EnabledEquipment()))

	for _, writeCalendarID := range snap.WriteCalendars() {
		writer, err := snap.Writer(writeCalendarID)
		if err != nil {
			continue
		}
		if err := e.repairCalendar(ctx, logger, target, writer, res); err != nil {
			return res, err
		}
	}

	logger.Info("repair pass complete",
		slog.Int("events", res.Events),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

func (e *Engine) repairCalendar(ctx context.Context, logger *slog.Logger, target, writer directory.Subscriber, res *Result) error {
	logger = logger.With(slog.String("write_calendar", writer.WriteCalendarID))

	events, err := e.pull(ctx, logger, writer.WriteCalendarID, true)
	if errors.Is(err, calendar.ErrNotFound) {
		logger.Warn("write calendar not found, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	for _, ev := range events {
		if ev.Cancelled() {
			continue
		}
		res.Events++
		res.Active++

		equipment, _, err := reservation.ParseEquipmentAndState(ev.Summary)
		if err != nil {
			logger.Warn("skipping event with malformed title", logging.Event(ev.ID), slog.String("title", ev.Summary))
			res.Skipped++
			continue
		}

		want := len(FilterSubscribers([]directory.Subscriber{target}, writer, equipment)) > 0
		var guests []string
		var changed bool
		if want {
			guests, changed = calendar.WithGuest(ev.Guests, target.ReadCalendarID)
		} else {
			guests, changed = calendar.WithoutGuest(ev.Guests, target.ReadCalendarID)
		}
		if !changed {
			continue
		}

		if _, err := e.mutate(ctx, writer.WriteCalendarID, ev.ID, calendar.EventUpdate{Guests: guests, Pinned: ev.Pinned, SetGuests: true}); err != nil {
			return err
		}
		res.Updated++
		logger.Info("updated guest membership",
			logging.Event(ev.ID),
			logging.Equipment(equipment),
			slog.Bool("guest", want))
	}
	return nil
}
