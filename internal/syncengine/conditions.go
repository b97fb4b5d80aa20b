package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/reservation"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// Equipment sheet columns, 1-based.
const (
	condColStart       = 1
	condColEnd         = 2
	condColUser        = 3
	condColState       = 5
	condColDescription = 6
	condColAllDay      = 7
	condColEventID     = 11
)

// ConditionBook reads and writes equipment sheets.
type ConditionBook interface {
	Values(ctx context.Context, rng string) ([][]string, error)
	WriteRange(ctx context.Context, rng string, values [][]any) error
}

// ConditionRow is a reservation edited directly in an equipment sheet.
type ConditionRow struct {
	Sheet string
	Row   int
	// Start and End use the local sheet layout.
	Start      string
	End        string
	AllDay     bool
	User       string
	State      string
	EventID    string
	Conditions reservation.Conditions
}

// LoadConditionRow reads row of an equipment sheet.
func (e *Engine) LoadConditionRow(ctx context.Context, sheet string, row int) (ConditionRow, error) {
	if e.opts.Conditions == nil {
		return ConditionRow{}, fmt.Errorf("no condition spreadsheet configured")
	}
	if row < 2 {
		return ConditionRow{}, fmt.Errorf("row %d is not a data row", row)
	}

	last := eventlog.ConditionColumn + max(e.opts.ConditionCount, 1) - 1
	headerRows, err := e.opts.Conditions.Values(ctx, sheets.Range(sheet, 1, 1, last, 1))
	if err != nil {
		return ConditionRow{}, fmt.Errorf("failed to read condition headers: %w", err)
	}
	valueRows, err := e.opts.Conditions.Values(ctx, sheets.Range(sheet, 1, row, last, row))
	if err != nil {
		return ConditionRow{}, fmt.Errorf("failed to read condition row: %w", err)
	}

	var headers, values []string
	if len(headerRows) > 0 {
		headers = headerRows[0]
	}
	if len(valueRows) > 0 {
		values = valueRows[0]
	}
	at := func(row []string, col int) string {
		if col-1 < len(row) {
			return strings.TrimSpace(row[col-1])
		}
		return ""
	}

	cr := ConditionRow{
		Sheet:   sheet,
		Row:     row,
		Start:   at(values, condColStart),
		End:     at(values, condColEnd),
		AllDay:  strings.EqualFold(at(values, condColAllDay), "TRUE"),
		User:    at(values, condColUser),
		State:   at(values, condColState),
		EventID: at(values, condColEventID),
	}
	var condHeaders, condValues []string
	if len(headers) >= eventlog.ConditionColumn {
		condHeaders = headers[eventlog.ConditionColumn-1:]
	}
	if len(values) >= eventlog.ConditionColumn {
		condValues = values[eventlog.ConditionColumn-1:]
	}
	cr.Conditions = reservation.ConditionsFromRow(condHeaders, condValues)
	return cr, nil
}

// ApplyConditionRow creates or updates the reservation described by row on
// the user's write calendar. The following RunSync of that calendar fixes
// guests and logs the change.
func (e *Engine) ApplyConditionRow(ctx context.Context, row ConditionRow) (*calendar.Event, error) {
	logger := logging.WithOperation(e.opts.Logger, "apply_condition").With(
		logging.Sheet(row.Sheet),
		slog.Int("row", row.Row))

	snap, err := e.dir.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}
	equipment, ok := snap.EquipmentForSheet(row.Sheet)
	if !ok {
		return nil, fmt.Errorf("%w: sheet %s", ErrUnknownEquipment, row.Sheet)
	}
	if row.Start == "" || row.End == "" || row.User == "" {
		return nil, fmt.Errorf("%w: start, end and user are required", ErrIncompleteRow)
	}

	user, err := snap.ByName(row.User)
	if err != nil || user.WriteCalendarID == "" {
		logger.Warn("condition row names an unknown user", slog.String("user", row.User))
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, row.User)
	}

	start, err := reservation.ParseLocal(row.Start, e.opts.Location)
	if err != nil {
		return nil, err
	}
	end, err := reservation.ParseLocal(row.End, e.opts.Location)
	if err != nil {
		return nil, err
	}

	description, err := row.Conditions.Encode()
	if err != nil {
		return nil, err
	}
	if e.opts.Conditions != nil && row.Row >= 2 {
		rng := sheets.Range(row.Sheet, condColDescription, row.Row, condColDescription, row.Row)
		if err := e.opts.Conditions.WriteRange(ctx, rng, [][]any{{description}}); err != nil {
			logger.Warn("failed to write description back to sheet", logging.Err(err))
		}
	}

	state := row.State
	if state == "" {
		state = reservation.DefaultState
	}
	title := reservation.FormatTitle(user.Name, equipment, state)

	if err := e.opts.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if row.EventID == "" {
		created, err := e.source.InsertEvent(ctx, user.WriteCalendarID, calendar.Event{
			Summary:     title,
			Description: description,
			Start:       start,
			End:         end,
			AllDay:      row.AllDay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create reservation: %w", err)
		}
		logger.Info("created reservation from condition row", logging.Event(created.ID), slog.String("title", title))
		return created, nil
	}

	updated, err := e.source.UpdateEvent(ctx, user.WriteCalendarID, row.EventID, calendar.EventUpdate{
		Summary:     &title,
		Description: &description,
		Start:       &start,
		End:         &end,
		AllDay:      row.AllDay,
	})
	if errors.Is(err, calendar.ErrNotFound) {
		logger.Warn("condition row references a missing event", logging.Event(row.EventID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation %s: %w", row.EventID, err)
	}
	logger.Info("updated reservation from condition row", logging.Event(updated.ID), slog.String("title", title))
	return updated, nil
}
