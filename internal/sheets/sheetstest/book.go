// Package sheetstest provides an in-memory spreadsheet with the same surface
// as sheets.Spreadsheet, for tests of packages that read and write sheets.
package sheetstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// Created records a spreadsheet made through CreateSpreadsheet.
type Created struct {
	ID    string
	Title string
	Sheet string
	Rows  [][]string
}

// Book is an in-memory spreadsheet. Cells hold formatted strings.
type Book struct {
	mu      sync.Mutex
	grids   map[string][][]string
	ids     map[string]int64
	nextID  int64
	created []Created
	writes  int
	failAll error
}

// NewBook creates a book containing the given sheets.
func NewBook(titles ...string) *Book {
	b := &Book{grids: make(map[string][][]string), ids: make(map[string]int64), nextID: 100}
	for _, title := range titles {
		b.AddSheet(title)
	}
	return b
}

// AddSheet adds an empty sheet and returns its id.
func (b *Book) AddSheet(title string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.ids[title]; ok {
		return id
	}
	b.nextID++
	b.ids[title] = b.nextID
	b.grids[title] = nil
	return b.nextID
}

// SheetID returns the id of a sheet.
func (b *Book) SheetID(title string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ids[title]
}

// SetRows replaces the contents of a sheet, creating it if needed.
func (b *Book) SetRows(title string, rows [][]string) {
	b.AddSheet(title)
	b.mu.Lock()
	defer b.mu.Unlock()
	grid := make([][]string, len(rows))
	for i, row := range rows {
		grid[i] = append([]string(nil), row...)
	}
	b.grids[title] = grid
}

// Rows returns a copy of a sheet's contents with trailing empties trimmed.
func (b *Book) Rows(title string) [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return trim(b.grids[title], 1, len(b.grids[title]), 1, 0)
}

// Cell returns one cell; rows and columns are 1-based.
func (b *Book) Cell(title string, row, col int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	grid := b.grids[title]
	if row-1 < len(grid) && col-1 < len(grid[row-1]) {
		return grid[row-1][col-1]
	}
	return ""
}

// Created returns the spreadsheets created so far.
func (b *Book) Created() []Created {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Created(nil), b.created...)
}

// Writes returns how many WriteRange calls succeeded.
func (b *Book) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// FailWith makes every call return err until cleared with nil.
func (b *Book) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAll = err
}

// Values implements the sheets.Spreadsheet method.
func (b *Book) Values(_ context.Context, rng string) ([][]string, error) {
	g, err := sheets.ParseRange(rng)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll != nil {
		return nil, b.failAll
	}
	grid, ok := b.grids[g.Sheet]
	if !ok {
		return nil, fmt.Errorf("unable to parse range: %s", rng)
	}
	endRow := g.EndRow
	if endRow == 0 {
		endRow = len(grid)
	}
	return trim(grid, g.StartRow, endRow, g.StartCol, g.EndCol), nil
}

// WriteRange implements the sheets.Spreadsheet method.
func (b *Book) WriteRange(_ context.Context, rng string, values [][]any) error {
	g, err := sheets.ParseRange(rng)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll != nil {
		return b.failAll
	}
	grid, ok := b.grids[g.Sheet]
	if !ok {
		return fmt.Errorf("unable to parse range: %s", rng)
	}

	for i, row := range values {
		r := g.StartRow - 1 + i
		for len(grid) <= r {
			grid = append(grid, nil)
		}
		for j, v := range row {
			c := g.StartCol - 1 + j
			for len(grid[r]) <= c {
				grid[r] = append(grid[r], "")
			}
			if v == nil {
				grid[r][c] = ""
			} else {
				grid[r][c] = fmt.Sprint(v)
			}
		}
	}
	b.grids[g.Sheet] = grid
	b.writes++
	return nil
}

// CountNonEmpty implements the sheets.Spreadsheet method.
func (b *Book) CountNonEmpty(_ context.Context, sheet string, col int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll != nil {
		return 0, b.failAll
	}
	n := 0
	for _, row := range b.grids[sheet] {
		if col-1 < len(row) && row[col-1] != "" {
			n++
		}
	}
	return n, nil
}

// SheetTitles implements the sheets.Spreadsheet method.
func (b *Book) SheetTitles(context.Context) (map[int64]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll != nil {
		return nil, b.failAll
	}
	out := make(map[int64]string, len(b.ids))
	for title, id := range b.ids {
		out[id] = title
	}
	return out, nil
}

// DeleteRows implements the sheets.Spreadsheet method.
func (b *Book) DeleteRows(_ context.Context, sheet string, start, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll != nil {
		return b.failAll
	}
	grid, ok := b.grids[sheet]
	if !ok {
		return fmt.Errorf("sheet %q not found", sheet)
	}
	from := start - 1
	if from >= len(grid) || count <= 0 {
		return nil
	}
	to := min(from+count, len(grid))
	b.grids[sheet] = append(grid[:from:from], grid[to:]...)
	return nil
}

// CreateSpreadsheet implements the sheets.Client method.
func (b *Book) CreateSpreadsheet(_ context.Context, title, sheetTitle string, values [][]any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll != nil {
		return "", b.failAll
	}
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				rows[i][j] = fmt.Sprint(v)
			}
		}
	}
	id := fmt.Sprintf("spreadsheet-%d", len(b.created)+1)
	b.created = append(b.created, Created{ID: id, Title: title, Sheet: sheetTitle, Rows: rows})
	return id, nil
}

// trim returns rows [startRow, endRow] and columns [startCol, endCol] (endCol
// 0 is open) without trailing empty cells or rows, as the Sheets API does.
func trim(grid [][]string, startRow, endRow, startCol, endCol int) [][]string {
	var out [][]string
	for r := startRow - 1; r < endRow && r < len(grid); r++ {
		row := grid[r]
		var cells []string
		for c := startCol - 1; c < len(row) && (endCol == 0 || c < endCol); c++ {
			cells = append(cells, row[c])
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if cells == nil {
			cells = []string{}
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}
