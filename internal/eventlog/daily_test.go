package eventlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets/sheetstest"
)

type fakeLister struct {
	events map[string][]calendar.Event
	calls  map[string]int
	opts   []calendar.ListOptions
	err    error
}

// ListEvents serves one event per page to exercise paging.
func (f *fakeLister) ListEvents(_ context.Context, calendarID string, opts calendar.ListOptions) (*calendar.EventPage, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[calendarID]++
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}

	events := f.events[calendarID]
	idx := 0
	if opts.PageToken != "" {
		idx = int(opts.PageToken[0] - '0')
	}
	page := &calendar.EventPage{}
	if idx < len(events) {
		page.Items = events[idx : idx+1]
	}
	if idx+1 < len(events) {
		page.NextPageToken = string(rune('0' + idx + 1))
	}
	return page, nil
}

func TestDailyLogger_Window(t *testing.T) {
	loc := tokyo(t)
	d := NewDaily(DailyConfig{Location: loc})

	from, to := d.Window(time.Date(2024, 3, 10, 8, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, loc), to)
}

func TestDailyLogger_Run(t *testing.T) {
	ctx := context.Background()
	loc := tokyo(t)
	at := func(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, loc) }

	lister := &fakeLister{events: map[string][]calendar.Event{
		"w_a": {
			{ID: "in", Summary: "A rie use", Start: at(7, 10), End: at(7, 11), Description: `{"gas":"O2"}`},
			{ID: "cancelled", Summary: "A rie use", Start: at(7, 12), End: at(7, 13), Status: calendar.StatusCancelled},
			{ID: "before", Summary: "A rie use", Start: at(6, 23), End: at(7, 1)},
			{ID: "edge", Summary: "A rie use", Start: at(8, 0), End: at(8, 1)},
			{ID: "bad", Summary: "too many title tokens", Start: at(7, 9), End: at(7, 10)},
		},
		"w_b": {
			{ID: "allday", Summary: "cvd", Start: at(7, 0), End: at(8, 0), AllDay: true, Recurring: true},
		},
	}}

	book := sheetstest.NewBook()
	book.SetRows("finalLog", [][]string{Headers()})

	d := NewDaily(DailyConfig{
		Source:     lister,
		Book:       book,
		Sheet:      "finalLog",
		BackupRows: 990000,
		Location:   loc,
	})

	n, err := d.Run(ctx, at(10, 8), []Writer{
		{Name: "A", CalendarID: "w_a"},
		{Name: "B", CalendarID: "w_b"},
		{Name: "ALL EVENTS"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, lister.calls["w_a"], "every page is read")
	for _, opts := range lister.opts {
		assert.Equal(t, at(7, 0), opts.TimeMin)
		assert.Equal(t, at(8, 0), opts.TimeMax, "the query is bounded to the window")
	}

	rows := book.Rows("finalLog")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"03/07/24 10:00", "03/07/24 11:00", "A", "rie", "use", `{"gas":"O2"}`, "FALSE", "FALSE", "", "", "in"}, rows[1])
	assert.Equal(t, []string{"03/07/24 00:00", "03/08/24 00:00", "B", "cvd", "use", "", "TRUE", "TRUE", "", "", "allday"}, rows[2])
	assert.Equal(t, 1, book.Writes(), "rows are written in one batch")
}

func TestWriters(t *testing.T) {
	snap := &directory.Snapshot{Subscribers: []directory.Subscriber{
		{Name: "A", WriteCalendarID: "w_a"},
		{Name: "B", WriteCalendarID: "w_b"},
		{Name: "B again", WriteCalendarID: "w_b"},
		{Name: directory.AllEventsName, ReadCalendarID: "r_all"},
	}}

	assert.Equal(t, []Writer{
		{Name: "A", CalendarID: "w_a"},
		{Name: "B", CalendarID: "w_b"},
	}, Writers(snap))
}

func TestDailyLogger_NothingToLog(t *testing.T) {
	book := sheetstest.NewBook("finalLog")
	d := NewDaily(DailyConfig{Source: &fakeLister{}, Book: book, Sheet: "finalLog"})

	n, err := d.Run(context.Background(), time.Now(), []Writer{{Name: "A", CalendarID: "w_a"}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, book.Writes())
}

func TestDailyLogger_Errors(t *testing.T) {
	book := sheetstest.NewBook("finalLog")

	d := NewDaily(DailyConfig{Source: &fakeLister{err: calendar.ErrNotFound}, Book: book, Sheet: "finalLog"})
	n, err := d.Run(context.Background(), time.Now(), []Writer{{Name: "A", CalendarID: "gone"}})
	require.NoError(t, err, "missing calendars are skipped")
	assert.Zero(t, n)

	boom := errors.New("transport")
	d = NewDaily(DailyConfig{Source: &fakeLister{err: boom}, Book: book, Sheet: "finalLog"})
	_, err = d.Run(context.Background(), time.Now(), []Writer{{Name: "A", CalendarID: "w_a"}})
	assert.ErrorIs(t, err, boom)
}

func TestDailyLogger_ArchivesFullSheet(t *testing.T) {
	ctx := context.Background()
	loc := tokyo(t)
	book := sheetstest.NewBook()
	book.SetRows("finalLog", [][]string{Headers(), {"x"}, {"y"}, {"z"}})

	lister := &fakeLister{events: map[string][]calendar.Event{
		"w_a": {{ID: "in", Summary: "rie", Start: time.Date(2024, 3, 7, 10, 0, 0, 0, loc), End: time.Date(2024, 3, 7, 11, 0, 0, 0, loc)}},
	}}
	d := NewDaily(DailyConfig{
		Source:     lister,
		Book:       book,
		Sheet:      "finalLog",
		BackupRows: 3,
		Archiver:   NewArchiver(book, nil, "", nil),
		Location:   loc,
	})

	n, err := d.Run(ctx, time.Date(2024, 3, 10, 8, 0, 0, 0, loc), []Writer{{Name: "A", CalendarID: "w_a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	created := book.Created()
	require.Len(t, created, 1)
	assert.Len(t, created[0].Rows, 4, "header plus three archived rows")

	rows := book.Rows("finalLog")
	require.Len(t, rows, 2)
	assert.Equal(t, "in", rows[1][ColID])
}
