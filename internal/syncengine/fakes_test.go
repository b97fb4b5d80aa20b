package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets/sheetstest"
	"github.com/BoronSpoon/equipment-reservation/internal/state"
)

type listCall struct {
	CalendarID string
	Opts       calendar.ListOptions
}

type updateCall struct {
	CalendarID string
	EventID    string
	Update     calendar.EventUpdate
}

// fakeSource is an in-memory EventSource. Listings ignore cursors and
// windows; they only page and hide cancelled events unless asked.
type fakeSource struct {
	mu       sync.Mutex
	events   map[string][]*calendar.Event
	lists    []listCall
	listErrs []error
	updates  []updateCall
	inserts  []calendar.Event
	gets     int
	tokens   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(map[string][]*calendar.Event)}
}

func (f *fakeSource) add(calendarID string, ev calendar.Event) *calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == "" {
		ev.ID = fmt.Sprintf("evt%d", len(f.events[calendarID])+1)
	}
	stored := ev
	f.events[calendarID] = append(f.events[calendarID], &stored)
	return &stored
}

func (f *fakeSource) find(calendarID, eventID string) *calendar.Event {
	for _, ev := range f.events[calendarID] {
		if ev.ID == eventID {
			return ev
		}
	}
	return nil
}

func (f *fakeSource) event(calendarID, eventID string) calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.find(calendarID, eventID)
}

func (f *fakeSource) cancel(calendarID, eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.find(calendarID, eventID).Status = calendar.StatusCancelled
}

func (f *fakeSource) failLists(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrs = append(f.listErrs, errs...)
}

func (f *fakeSource) listCalls() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.lists...)
}

func (f *fakeSource) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.updates...)
}

func (f *fakeSource) ListEvents(_ context.Context, calendarID string, opts calendar.ListOptions) (*calendar.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists = append(f.lists, listCall{CalendarID: calendarID, Opts: opts})
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	var matches []calendar.Event
	for _, ev := range f.events[calendarID] {
		if ev.Cancelled() && !opts.ShowDeleted {
			continue
		}
		matches = append(matches, *ev)
	}

	offset := 0
	if opts.PageToken != "" {
		offset, _ = strconv.Atoi(strings.TrimPrefix(opts.PageToken, "p"))
	}
	size := int(opts.MaxResults)
	if size <= 0 {
		size = 250
	}
	end := min(offset+size, len(matches))

	page := &calendar.EventPage{Items: matches[offset:end]}
	if end < len(matches) {
		page.NextPageToken = fmt.Sprintf("p%d", end)
	} else {
		f.tokens++
		page.NextSyncToken = fmt.Sprintf("tok-%d", f.tokens)
	}
	return page, nil
}

func (f *fakeSource) GetEvent(_ context.Context, calendarID, eventID string) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	ev := f.find(calendarID, eventID)
	if ev == nil {
		return nil, calendar.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeSource) UpdateEvent(_ context.Context, calendarID, eventID string, u calendar.EventUpdate) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{CalendarID: calendarID, EventID: eventID, Update: u})

	ev := f.find(calendarID, eventID)
	if ev == nil {
		return nil, calendar.ErrNotFound
	}
	if u.Summary != nil {
		ev.Summary = *u.Summary
	}
	if u.Description != nil {
		ev.Description = *u.Description
	}
	if u.Start != nil {
		ev.Start = *u.Start
		ev.AllDay = u.AllDay
	}
	if u.End != nil {
		ev.End = *u.End
	}
	if u.SetGuests {
		ev.Guests = append([]string(nil), u.Guests...)
		ev.Pinned = append([]string(nil), u.Pinned...)
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeSource) InsertEvent(_ context.Context, calendarID string, ev calendar.Event) (*calendar.Event, error) {
	f.mu.Lock()
	f.inserts = append(f.inserts, ev)
	f.mu.Unlock()
	return f.add(calendarID, ev), nil
}

type staticDirectory struct {
	snap *directory.Snapshot
	err  error
}

func (d *staticDirectory) Snapshot(context.Context) (*directory.Snapshot, error) {
	return d.snap, d.err
}

func subscriber(index int, name, read, write string, equipment ...string) directory.Subscriber {
	s := directory.Subscriber{
		Index:           index,
		FullName:        name,
		Name:            name,
		ReadCalendarID:  read,
		WriteCalendarID: write,
		Equipment:       make(map[string]bool),
	}
	for _, eq := range equipment {
		s.Equipment[eq] = true
	}
	return s
}

// scenarioSnapshot is A (w_a, r_a, rie) and B (w_b, r_b, rie+cvd).
func scenarioSnapshot() *directory.Snapshot {
	return &directory.Snapshot{
		Subscribers: []directory.Subscriber{
			subscriber(0, "A", "r_a", "w_a", "rie"),
			subscriber(1, "B", "r_b", "w_b", "rie", "cvd"),
		},
		EquipmentSheets: map[string]string{"rie": "RIE-1", "cvd": "CVD"},
	}
}

type harness struct {
	engine *Engine
	source *fakeSource
	dir    *staticDirectory
	store  *state.Store
	book   *sheetstest.Book
	now    time.Time
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		source: newFakeSource(),
		dir:    &staticDirectory{snap: scenarioSnapshot()},
		store:  state.NewStore(state.NewMemoryKV()),
		book:   sheetstest.NewBook(),
		now:    time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}
	h.book.SetRows("RIE-1", [][]string{eventlog.Headers()})
	h.book.SetRows("CVD", [][]string{eventlog.Headers()})

	logger := eventlog.New(eventlog.Config{
		Book:     h.book,
		Ledger:   h.store,
		Location: time.UTC,
		Now:      func() time.Time { return h.now },
	})

	opts := Options{
		Location:   time.UTC,
		Conditions: h.book,
		Now:        func() time.Time { return h.now },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.engine = New(h.source, h.dir, h.store, logger, opts)
	return h
}

func (h *harness) logRows(t *testing.T, sheet string) [][]string {
	t.Helper()
	rows := h.book.Rows(sheet)
	require.NotEmpty(t, rows, "header row")
	return rows[1:]
}

func (h *harness) cursor(t *testing.T, calendarID string) (string, bool) {
	t.Helper()
	c, ok, err := h.store.Cursor(context.Background(), calendarID)
	require.NoError(t, err)
	return c, ok
}
