package eventlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/reservation"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// Row statuses recorded in metrics.
const (
	RowWritten   = "written"
	RowDuplicate = "duplicate"
	RowArchived  = "archived"
	RowError     = "error"
)

// Book is the spreadsheet the log is written into.
type Book interface {
	Values(ctx context.Context, rng string) ([][]string, error)
	WriteRange(ctx context.Context, rng string, values [][]any) error
	CountNonEmpty(ctx context.Context, sheet string, col int) (int, error)
	DeleteRows(ctx context.Context, sheet string, start, count int) error
}

// Ledger remembers the last row flushed per event.
type Ledger interface {
	Flushed(ctx context.Context, eventID string) (string, bool, error)
	MarkFlushed(ctx context.Context, eventID, fingerprint string) error
}

// Config configures a Logger.
type Config struct {
	Book     Book
	Ledger   Ledger
	Archiver *Archiver
	Location *time.Location
	// ConditionCount is how many condition columns follow column M.
	ConditionCount int
	// BackupRows is the row budget of each equipment sheet.
	BackupRows int
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	Now        func() time.Time
}

// Logger accumulates log fields per event and flushes them as sheet rows.
type Logger struct {
	cfg Config

	mu      sync.Mutex
	pending map[string]Fields
}

// New creates a Logger.
func New(cfg Config) *Logger {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Logger{cfg: cfg, pending: make(map[string]Fields)}
}

// Store merges fields into the pending record of eventID. Later values for
// the same column replace earlier ones.
func (l *Logger) Store(eventID string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.pending[eventID]
	if !ok {
		rec = make(Fields, NumColumns)
		l.pending[eventID] = rec
	}
	for col, v := range fields {
		rec[col] = v
	}
}

// Discard drops the pending record of eventID.
func (l *Logger) Discard(eventID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, eventID)
}

// Pending returns how many events have unflushed fields.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Logger) take(eventID string) (Fields, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.pending[eventID]
	delete(l.pending, eventID)
	return rec, ok
}

// Flush writes the pending record of eventID as one row of sheet and clears
// it. It returns false without writing when nothing is pending or when the
// ledger shows an identical row was already written.
func (l *Logger) Flush(ctx context.Context, eventID, sheet string) (bool, error) {
	rec, ok := l.take(eventID)
	if !ok {
		return false, nil
	}
	if _, ok := rec[ColID]; !ok {
		rec[ColID] = eventID
	}
	if _, ok := rec[ColExecutionTime]; !ok {
		rec[ColExecutionTime] = l.cfg.Now()
	}

	row := Render(rec, l.cfg.Location)
	fp := Fingerprint(row)
	logger := l.cfg.Logger.With(logging.Event(eventID), logging.Sheet(sheet))

	if l.cfg.Ledger != nil {
		prev, seen, err := l.cfg.Ledger.Flushed(ctx, eventID)
		if err != nil {
			l.cfg.Metrics.RecordLogRow(ctx, RowError)
			return false, err
		}
		if seen && prev == fp {
			logger.Debug("log row already flushed", logging.Action(row[ColAction]))
			l.cfg.Metrics.RecordLogRow(ctx, RowDuplicate)
			return false, nil
		}
	}

	target, err := l.nextRow(ctx, sheet, l.cfg.BackupRows)
	if err != nil {
		l.cfg.Metrics.RecordLogRow(ctx, RowError)
		return false, err
	}

	values := make([]any, NumColumns)
	for i, v := range row {
		values[i] = v
	}
	if err := l.cfg.Book.WriteRange(ctx, sheets.Range(sheet, 1, target, NumColumns, target), [][]any{values}); err != nil {
		l.cfg.Metrics.RecordLogRow(ctx, RowError)
		return false, fmt.Errorf("failed to write log row: %w", err)
	}

	if err := l.writeConditions(ctx, sheet, target, row[ColDescription]); err != nil {
		logger.Warn("failed to write experiment conditions", logging.Err(err))
	}

	if l.cfg.Ledger != nil {
		if err := l.cfg.Ledger.MarkFlushed(ctx, eventID, fp); err != nil {
			return true, err
		}
	}

	l.cfg.Metrics.RecordLogRow(ctx, RowWritten)
	logger.Info("flushed log row",
		logging.Action(row[ColAction]),
		logging.Equipment(row[ColEquipmentName]),
		slog.Int("row", target))
	return true, nil
}

// nextRow returns the row after the last non-empty cell of column A,
// archiving first when that row exceeds budget.
func (l *Logger) nextRow(ctx context.Context, sheet string, budget int) (int, error) {
	n, err := l.cfg.Book.CountNonEmpty(ctx, sheet, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to find last log row: %w", err)
	}
	row := n + 1

	if budget > 0 && row > budget && l.cfg.Archiver != nil {
		archived := min(budget, row-2)
		if _, err := l.cfg.Archiver.Archive(ctx, l.cfg.Book, sheet, archived); err != nil {
			return 0, err
		}
		l.cfg.Metrics.RecordLogRow(ctx, RowArchived)
		if n, err = l.cfg.Book.CountNonEmpty(ctx, sheet, 1); err != nil {
			return 0, fmt.Errorf("failed to find last log row: %w", err)
		}
		row = n + 1
	}
	return row, nil
}

func (l *Logger) writeConditions(ctx context.Context, sheet string, row int, description string) error {
	if l.cfg.ConditionCount <= 0 {
		return nil
	}
	conds, ok := reservation.ParseConditions(description)
	if !ok {
		return nil
	}

	last := ConditionColumn + l.cfg.ConditionCount - 1
	headerRows, err := l.cfg.Book.Values(ctx, sheets.Range(sheet, ConditionColumn, 1, last, 1))
	if err != nil {
		return err
	}
	headers := make([]string, l.cfg.ConditionCount)
	if len(headerRows) > 0 {
		copy(headers, headerRows[0])
	}

	vals := conds.Values(headers)
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return l.cfg.Book.WriteRange(ctx, sheets.Range(sheet, ConditionColumn, row, last, row), [][]any{out})
}

// Render formats a record into the fixed columns. Times use the local sheet
// layout in loc and booleans render as TRUE or FALSE.
func Render(rec Fields, loc *time.Location) []string {
	row := make([]string, NumColumns)
	for col, v := range rec {
		if int(col) < 0 || int(col) >= NumColumns {
			continue
		}
		row[col] = renderValue(v, loc)
	}
	return row
}

func renderValue(v any, loc *time.Location) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return reservation.FormatLocal(t, loc)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(t)
	}
}

// Fingerprint hashes every rendered column except the execution time.
func Fingerprint(row []string) string {
	h := sha256.New()
	for i, v := range row {
		if Column(i) == ColExecutionTime {
			continue
		}
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
