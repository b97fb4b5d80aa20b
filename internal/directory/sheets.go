package directory

import (
	"context"
	"fmt"

	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// Spreadsheet is the subset of sheets.Spreadsheet the directory reads.
type Spreadsheet interface {
	Values(ctx context.Context, rng string) ([][]string, error)
	SheetTitles(ctx context.Context) (map[int64]string, error)
}

// SheetsDirectory reads snapshots from the directory spreadsheet.
type SheetsDirectory struct {
	book            Spreadsheet
	usersSheet      string
	propertiesSheet string
}

// NewSheetsDirectory creates a SheetsDirectory over book.
func NewSheetsDirectory(book Spreadsheet, usersSheet, propertiesSheet string) *SheetsDirectory {
	return &SheetsDirectory{book: book, usersSheet: usersSheet, propertiesSheet: propertiesSheet}
}

// UsersSheet returns the title of the users sheet.
func (d *SheetsDirectory) UsersSheet() string {
	return d.usersSheet
}

// Snapshot reads both tables and the sheet metadata.
func (d *SheetsDirectory) Snapshot(ctx context.Context) (*Snapshot, error) {
	users, err := d.book.Values(ctx, sheets.QuoteSheet(d.usersSheet)+"!A1:ZZ")
	if err != nil {
		return nil, fmt.Errorf("failed to read users table: %w", err)
	}
	properties, err := d.book.Values(ctx, sheets.QuoteSheet(d.propertiesSheet)+"!A2:B")
	if err != nil {
		return nil, fmt.Errorf("failed to read properties table: %w", err)
	}
	titles, err := d.book.SheetTitles(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := Parse(users, properties, titles)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory: %w", err)
	}
	return snap, nil
}
