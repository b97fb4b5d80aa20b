package state

import (
	"context"
	"fmt"
)

const (
	cursorPrefix = "syncToken:"
	ledgerPrefix = "flushed:"
)

// CursorKey returns the KV key holding the sync cursor of a calendar.
func CursorKey(calendarID string) string {
	return cursorPrefix + calendarID
}

// LedgerKey returns the KV key holding the last flushed fingerprint of an event.
func LedgerKey(eventID string) string {
	return ledgerPrefix + eventID
}

// Store keeps sync cursors and the flush ledger in a KV.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Cursor returns the stored sync cursor of a calendar, ok=false when none
// has been stored or it was invalidated.
func (s *Store) Cursor(ctx context.Context, calendarID string) (string, bool, error) {
	cursor, ok, err := s.kv.Get(ctx, CursorKey(calendarID))
	if err != nil {
		return "", false, fmt.Errorf("failed to load sync cursor: %w", err)
	}
	if cursor == "" {
		return "", false, nil
	}
	return cursor, ok, nil
}

// SetCursor replaces the sync cursor of a calendar.
func (s *Store) SetCursor(ctx context.Context, calendarID, cursor string) error {
	if cursor == "" {
		return s.InvalidateCursor(ctx, calendarID)
	}
	if err := s.kv.Put(ctx, CursorKey(calendarID), cursor); err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}

// InvalidateCursor forgets the sync cursor of a calendar so the next pass
// is a full sync.
func (s *Store) InvalidateCursor(ctx context.Context, calendarID string) error {
	if err := s.kv.Delete(ctx, CursorKey(calendarID)); err != nil {
		return fmt.Errorf("failed to invalidate sync cursor: %w", err)
	}
	return nil
}

// Flushed returns the fingerprint of the last log row flushed for an event.
func (s *Store) Flushed(ctx context.Context, eventID string) (string, bool, error) {
	fp, ok, err := s.kv.Get(ctx, LedgerKey(eventID))
	if err != nil {
		return "", false, fmt.Errorf("failed to load flush ledger: %w", err)
	}
	return fp, ok, nil
}

// MarkFlushed records the fingerprint of a log row that has been written.
func (s *Store) MarkFlushed(ctx context.Context, eventID, fingerprint string) error {
	if err := s.kv.Put(ctx, LedgerKey(eventID), fingerprint); err != nil {
		return fmt.Errorf("failed to update flush ledger: %w", err)
	}
	return nil
}

// Close closes the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}
