package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BoronSpoon/equipment-reservation/internal/sheets/sheetstest"
)

func TestDeriveNames(t *testing.T) {
	tests := []struct {
		fullName string
		want     Names
	}{
		{"Taro Tanaka", Names{LastName: "Tanaka", FirstName: "Taro", UserName1: "Tana.T"}},
		{"Jo Li", Names{LastName: "Li", FirstName: "Jo", UserName1: "Li.J"}},
		{"  Hanako   Yamada  Jr ", Names{LastName: "Yamada", FirstName: "Hanako", UserName1: "Yama.H"}},
		{"Cher", Names{FirstName: "Cher", UserName1: ".C"}},
		{"太郎 田中", Names{LastName: "田中", FirstName: "太郎", UserName1: "田中.太"}},
		{"", Names{}},
	}

	for _, tt := range tests {
		t.Run(tt.fullName, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveNames(tt.fullName))
		})
	}
}

func TestUniqueNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "unique names get 1",
			in:   []string{"Tana.T", "Yama.H"},
			want: []string{"Tana.T1", "Yama.H1"},
		},
		{
			name: "duplicates count in row order",
			in:   []string{"Tana.T", "Yama.H", "Tana.T", "Tana.T"},
			want: []string{"Tana.T1", "Yama.H1", "Tana.T2", "Tana.T3"},
		},
		{
			name: "empty rows are skipped",
			in:   []string{"Tana.T", "", "Tana.T"},
			want: []string{"Tana.T1", "", "Tana.T2"},
		},
		{
			name: "nothing",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueNames(tt.in))
		})
	}
}

func namesBook() *sheetstest.Book {
	book := sheetstest.NewBook("users", "properties")
	book.SetRows("users", [][]string{
		{"fullName", "lastName", "firstName", "userName1", "userName2", "readCalendarId", "writeCalendarId"},
		{"Taro Tanaka", "Tanaka", "Taro", "Tana.T", "Tana.T1", "r_1", "w_1"},
		{"Takeshi Tanabe", "", "", "", "old", "r_2", "w_2"},
		{"ALL EVENTS", "", "", "", "ALL EVENTS", "r_all", ""},
	})
	return book
}

func TestSheetsDirectory_RefreshNames(t *testing.T) {
	ctx := context.Background()
	book := namesBook()
	dir := NewSheetsDirectory(book, "users", "properties")

	require.NoError(t, dir.RefreshNames(ctx, 1))

	assert.Equal(t, []string{"Takeshi Tanabe", "Tanabe", "Takeshi", "Tana.T", "Tana.T2", "r_2", "w_2"}, book.Rows("users")[2])
	assert.Equal(t, "Tana.T1", book.Cell("users", 2, 5), "earlier rows keep their number")
	assert.Equal(t, "ALL EVENTS", book.Cell("users", 4, 5), "rows without a userName1 keep their name")

	snap, err := dir.Snapshot(ctx)
	require.NoError(t, err)
	w, err := snap.Writer("w_2")
	require.NoError(t, err)
	assert.Equal(t, "Tana.T2", w.Name)
}

func TestSheetsDirectory_RefreshNamesRenumbers(t *testing.T) {
	ctx := context.Background()
	book := namesBook()
	dir := NewSheetsDirectory(book, "users", "properties")
	require.NoError(t, dir.RefreshNames(ctx, 1))

	rows := book.Rows("users")
	rows[1] = []string{"Hanako Yamada", "Tanaka", "Taro", "Tana.T", "Tana.T1", "r_1", "w_1"}
	book.SetRows("users", rows)
	require.NoError(t, dir.RefreshNames(ctx, 0))

	assert.Equal(t, "Yama.H", book.Cell("users", 2, 4))
	assert.Equal(t, "Yama.H1", book.Cell("users", 2, 5))
	assert.Equal(t, "Tana.T1", book.Cell("users", 3, 5), "the remaining duplicate moves up")
}

func TestSheetsDirectory_RefreshNamesErrors(t *testing.T) {
	ctx := context.Background()

	dir := NewSheetsDirectory(namesBook(), "users", "properties")
	assert.ErrorIs(t, dir.RefreshNames(ctx, -1), ErrSubscriberNotFound)

	readOnly := NewSheetsDirectory(&fakeBook{}, "users", "properties")
	assert.Error(t, readOnly.RefreshNames(ctx, 0))

	book := namesBook()
	book.FailWith(errors.New("quota"))
	assert.Error(t, NewSheetsDirectory(book, "users", "properties").RefreshNames(ctx, 0))
}
