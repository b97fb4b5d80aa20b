package sheets

import (
	"fmt"
	"strings"
)

// ColumnName converts a 1-based column index to its A1 letters (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// QuoteSheet quotes a sheet title for use in an A1 range.
func QuoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Range returns the A1 range sheet!<col1><row1>:<col2><row2>. A zero row
// leaves the row open, so Range("log", 1, 0, 1, 0) is 'log'!A:A.
func Range(sheet string, col1, row1, col2, row2 int) string {
	cell := func(col, row int) string {
		if row <= 0 {
			return ColumnName(col)
		}
		return fmt.Sprintf("%s%d", ColumnName(col), row)
	}
	return fmt.Sprintf("%s!%s:%s", QuoteSheet(sheet), cell(col1, row1), cell(col2, row2))
}

// GridRange is a parsed A1 range. Columns and rows are 1-based; a zero row
// bound is open.
type GridRange struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses ranges of the forms produced by Range, plus single cells
// and unquoted sheet titles.
func ParseRange(rng string) (GridRange, error) {
	i := strings.LastIndex(rng, "!")
	if i <= 0 {
		return GridRange{}, fmt.Errorf("range %q has no sheet", rng)
	}

	g := GridRange{Sheet: rng[:i]}
	if strings.HasPrefix(g.Sheet, "'") && strings.HasSuffix(g.Sheet, "'") && len(g.Sheet) >= 2 {
		g.Sheet = strings.ReplaceAll(g.Sheet[1:len(g.Sheet)-1], "''", "'")
	}

	start, end, found := strings.Cut(rng[i+1:], ":")
	if !found {
		end = start
	}

	var err error
	if g.StartCol, g.StartRow, err = parseCell(start); err != nil {
		return GridRange{}, fmt.Errorf("range %q: %w", rng, err)
	}
	if g.EndCol, g.EndRow, err = parseCell(end); err != nil {
		return GridRange{}, fmt.Errorf("range %q: %w", rng, err)
	}
	if g.StartRow == 0 {
		g.StartRow = 1
	}
	return g, nil
}

func parseCell(s string) (col, row int, err error) {
	j := 0
	for j < len(s) && s[j] >= 'A' && s[j] <= 'Z' {
		col = col*26 + int(s[j]-'A'+1)
		j++
	}
	if col == 0 {
		return 0, 0, fmt.Errorf("cell %q has no column", s)
	}
	for ; j < len(s); j++ {
		if s[j] < '0' || s[j] > '9' {
			return 0, 0, fmt.Errorf("cell %q is not A1 notation", s)
		}
		row = row*10 + int(s[j]-'0')
	}
	return col, row, nil
}
