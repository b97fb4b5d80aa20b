package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// Users sheet columns derived from the full name, 0-based.
const (
	colLastName  = 1
	colFirstName = 2
	colUserName1 = 3
)

// Names are the columns derived from a full name.
type Names struct {
	LastName  string
	FirstName string
	// UserName1 is up to four letters of the last name, a dot and the first
	// letter of the first name.
	UserName1 string
}

// DeriveNames splits a "First Last" full name. Tokens past the second are
// ignored; a single token is taken as the first name.
func DeriveNames(fullName string) Names {
	tokens := strings.Fields(fullName)
	if len(tokens) == 0 {
		return Names{}
	}
	n := Names{FirstName: tokens[0]}
	if len(tokens) > 1 {
		n.LastName = tokens[1]
	}
	n.UserName1 = prefix(n.LastName, 4) + "." + prefix(n.FirstName, 1)
	return n
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// UniqueNames assigns each userName1 its occurrence number among the rows
// up to and including it, so duplicates become "Tana.T1", "Tana.T2".
// Empty entries stay empty and are not counted.
func UniqueNames(userNames1 []string) []string {
	out := make([]string, len(userNames1))
	seen := make(map[string]int, len(userNames1))
	for i, name := range userNames1 {
		if name == "" {
			continue
		}
		seen[name]++
		out[i] = name + strconv.Itoa(seen[name])
	}
	return out
}

// NameWriter is the part of a spreadsheet RefreshNames needs.
type NameWriter interface {
	Spreadsheet
	WriteRange(ctx context.Context, rng string, values [][]any) error
}

// RefreshNames rewrites the derived name columns of the subscriber at index
// from its full name, then renumbers the user names of every row. Rows
// without a userName1 keep their user name.
func (d *SheetsDirectory) RefreshNames(ctx context.Context, index int) error {
	book, ok := d.book.(NameWriter)
	if !ok {
		return fmt.Errorf("directory spreadsheet is read-only")
	}

	users, err := d.book.Values(ctx, sheets.QuoteSheet(d.usersSheet)+"!A2:E")
	if err != nil {
		return fmt.Errorf("failed to read users table: %w", err)
	}
	if index < 0 {
		return fmt.Errorf("index %d: %w", index, ErrSubscriberNotFound)
	}
	// A cleared trailing row is missing from the response.
	for len(users) <= index {
		users = append(users, nil)
	}

	row := index + 2
	names := DeriveNames(cell(users[index], colFullName))
	derived := [][]any{{names.LastName, names.FirstName, names.UserName1}}
	if err := book.WriteRange(ctx, sheets.Range(d.usersSheet, colLastName+1, row, colUserName1+1, row), derived); err != nil {
		return fmt.Errorf("failed to write names of row %d: %w", row, err)
	}

	first := make([]string, len(users))
	for i, r := range users {
		first[i] = cell(r, colUserName1)
	}
	first[index] = names.UserName1

	unique := UniqueNames(first)
	values := make([][]any, len(users))
	for i := range users {
		name := unique[i]
		if name == "" {
			name = cell(users[i], colName)
		}
		values[i] = []any{name}
	}
	if err := book.WriteRange(ctx, sheets.Range(d.usersSheet, colName+1, 2, colName+1, len(users)+1), values); err != nil {
		return fmt.Errorf("failed to write user names: %w", err)
	}
	return nil
}
