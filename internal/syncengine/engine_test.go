package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/reservation"
)

func TestFilterSubscribers(t *testing.T) {
	all := subscriber(3, "", "r_all", "", "rie", "cvd")
	subs := []directory.Subscriber{
		subscriber(0, "A", "r_a", "w_a", "rie"),
		subscriber(1, "B", "r_b", "w_b", "rie", "cvd"),
		subscriber(2, "C", "", "w_c", "rie"),
		all,
		subscriber(4, "D", "r_all", "w_d", "rie"),
	}

	tests := []struct {
		name      string
		writer    directory.Subscriber
		equipment string
		want      []string
	}{
		{name: "gates on equipment and excludes writer", writer: subs[0], equipment: "rie", want: []string{"r_b", "r_all"}},
		{name: "other writer", writer: subs[1], equipment: "rie", want: []string{"r_a", "r_all"}},
		{name: "equipment nobody else enabled", writer: subs[1], equipment: "cvd", want: []string{"r_all"}},
		{name: "unknown equipment", writer: subs[0], equipment: "pvd", want: nil},
		{name: "same name different calendar", writer: subscriber(9, "B", "r_x", "w_x"), equipment: "cvd", want: []string{"r_all"}},
		{name: "same write calendar different name", writer: subscriber(9, "Z", "r_z", "w_a"), equipment: "rie", want: []string{"r_b", "r_all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterSubscribers(subs, tt.writer, tt.equipment))
		})
	}
}

func TestFilterSubscribers_Invariants(t *testing.T) {
	equipment := []string{"rie", "cvd", "pvd"}
	var subs []directory.Subscriber
	for i := 0; i < 8; i++ {
		var enabled []string
		for j, eq := range equipment {
			if (i>>j)&1 == 1 {
				enabled = append(enabled, eq)
			}
		}
		name := fmt.Sprintf("u%d", i)
		subs = append(subs, subscriber(i, name, "r_"+name, "w_"+name, enabled...))
	}

	for _, writer := range subs {
		for _, eq := range equipment {
			mirror := FilterSubscribers(subs, writer, eq)
			in := make(map[string]bool)
			for _, id := range mirror {
				in[id] = true
			}
			assert.False(t, in[writer.ReadCalendarID], "writer %s mirrored to itself", writer.Name)
			for _, s := range subs {
				want := s.Enabled(eq) && s.Name != writer.Name
				assert.Equal(t, want, in[s.ReadCalendarID], "writer %s subscriber %s equipment %s", writer.Name, s.Name, eq)
			}
		}
	}
}

func TestRunSync_CreateThenCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	start := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	ev := h.source.add("w_a", calendar.Event{Summary: "rie", Start: start, End: start.Add(time.Hour)})

	res, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	assert.Equal(t, instrumentation.ModeFull, res.Mode)
	assert.NotEmpty(t, res.PassID)
	assert.Equal(t, 1, res.Active)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Logged)
	assert.True(t, res.Cursor)

	got := h.source.event("w_a", ev.ID)
	assert.Equal(t, "A rie use", got.Summary)
	assert.Equal(t, []string{"r_b"}, got.Guests)

	rows := h.logRows(t, "RIE-1")
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0][eventlog.ColName])
	assert.Equal(t, "rie", rows[0][eventlog.ColEquipmentName])
	assert.Equal(t, "use", rows[0][eventlog.ColState])
	assert.Equal(t, eventlog.ActionAdd, rows[0][eventlog.ColAction])
	assert.Equal(t, ev.ID, rows[0][eventlog.ColID])
	assert.Equal(t, "03/06/24 10:00", rows[0][eventlog.ColStartTime])

	cursor, ok := h.cursor(t, "w_a")
	require.True(t, ok)

	h.source.cancel("w_a", ev.ID)
	updatesBefore := len(h.source.updateCalls())

	res, err = h.engine.RunSync(ctx, "w_a", false)
	require.NoError(t, err)
	assert.Equal(t, instrumentation.ModeIncremental, res.Mode)
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, 1, res.Logged)
	assert.Len(t, h.source.updateCalls(), updatesBefore, "cancelled events are not mutated")

	calls := h.source.listCalls()
	assert.Equal(t, cursor, calls[len(calls)-2].Opts.SyncToken, "incremental pass uses the stored cursor")

	rows = h.logRows(t, "RIE-1")
	require.Len(t, rows, 2)
	assert.Equal(t, eventlog.ActionCancel, rows[1][eventlog.ColAction])
	assert.Equal(t, "A", rows[1][eventlog.ColName])
}

func TestRunSync_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	start := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	h.source.add("w_a", calendar.Event{Summary: "rie", Start: start, End: start.Add(time.Hour)})
	h.source.add("w_a", calendar.Event{Summary: "A cvd cool", Start: start, End: start.Add(2 * time.Hour), Guests: []string{"r_x"}})
	h.source.add("w_b", calendar.Event{Summary: "B rie etch", Start: start, End: start.Add(time.Hour)})

	_, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	_, err = h.engine.RunSync(ctx, "w_b", true)
	require.NoError(t, err)

	snapshot := func() ([]calendar.Event, int, int) {
		evs := []calendar.Event{h.source.event("w_a", "evt1"), h.source.event("w_a", "evt2"), h.source.event("w_b", "evt1")}
		return evs, len(h.book.Rows("RIE-1")), len(h.book.Rows("CVD"))
	}
	events1, rie1, cvd1 := snapshot()
	updates1 := len(h.source.updateCalls())

	for i := 0; i < 2; i++ {
		h.now = h.now.Add(time.Minute)
		res, err := h.engine.RunSync(ctx, "w_a", true)
		require.NoError(t, err)
		assert.Zero(t, res.Updated)
		assert.Zero(t, res.Logged)
	}

	events2, rie2, cvd2 := snapshot()
	assert.Equal(t, events1, events2)
	assert.Equal(t, rie1, rie2)
	assert.Equal(t, cvd1, cvd2)
	assert.Equal(t, updates1, len(h.source.updateCalls()))

	assert.Equal(t, []string{"r_a"}, events1[2].Guests, "B's rie event mirrors to A")
	assert.Equal(t, "A cvd cool", events1[1].Summary)
	assert.Equal(t, []string{"r_b"}, events1[1].Guests, "stale guest replaced")
}

func TestRunSync_ReconcilesGuests(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ev := h.source.add("w_a", calendar.Event{Summary: "A rie use", Guests: []string{"r_gone", "r_b"}})

	res, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	updates := h.source.updateCalls()
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].Update.Summary, "title already canonical")
	assert.True(t, updates[0].Update.SetGuests)
	assert.Equal(t, []string{"r_b"}, h.source.event("w_a", ev.ID).Guests)
}

func TestRunSync_KeepsOrganizerAttendee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ev := h.source.add("w_a", calendar.Event{Summary: "A rie use", Guests: []string{"r_gone"}, Pinned: []string{"w_a"}})

	_, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)

	updates := h.source.updateCalls()
	require.Len(t, updates, 1)
	assert.Equal(t, []string{"w_a"}, updates[0].Update.Pinned)
	got := h.source.event("w_a", ev.ID)
	assert.Equal(t, []string{"r_b"}, got.Guests)
	assert.Equal(t, []string{"w_a"}, got.Pinned)

	res, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	assert.Zero(t, res.Updated, "the organizer does not count against the mirror set")
	assert.Len(t, h.source.updateCalls(), 1)
}

func TestRunSync_CursorInvalidationRecovery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.source.add("w_a", calendar.Event{Summary: "rie"})
	require.NoError(t, h.store.SetCursor(ctx, "w_a", "stale"))
	h.source.failLists(fmt.Errorf("list events: %w", calendar.ErrSyncTokenInvalid))

	res, err := h.engine.RunSync(ctx, "w_a", false)
	require.NoError(t, err)
	assert.True(t, res.Recovered)
	assert.Equal(t, instrumentation.ModeFull, res.Mode)
	assert.Equal(t, 1, res.Logged)

	calls := h.source.listCalls()
	require.Len(t, calls, 3, "rejected incremental, one full pull, one cursor refresh")
	assert.Equal(t, "stale", calls[0].Opts.SyncToken)
	assert.Empty(t, calls[1].Opts.SyncToken)
	assert.False(t, calls[1].Opts.TimeMin.IsZero())
	assert.Empty(t, calls[2].Opts.SyncToken)
	assert.True(t, calls[2].Opts.TimeMin.IsZero())

	cursor, ok := h.cursor(t, "w_a")
	assert.True(t, ok)
	assert.NotEqual(t, "stale", cursor)
}

func TestRunSync_CursorInvalidationRetriedOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.store.SetCursor(ctx, "w_a", "stale"))
	h.source.failLists(calendar.ErrSyncTokenInvalid, calendar.ErrSyncTokenInvalid)

	_, err := h.engine.RunSync(ctx, "w_a", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, calendar.ErrSyncTokenInvalid)
	assert.Len(t, h.source.listCalls(), 2)

	_, ok := h.cursor(t, "w_a")
	assert.False(t, ok, "rejected cursor stays deleted")
}

func TestRunSync_TransportErrorKeepsCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.source.add("w_a", calendar.Event{Summary: "rie"})
	require.NoError(t, h.store.SetCursor(ctx, "w_a", "c1"))
	boom := errors.New("connection reset")
	h.source.failLists(boom)

	_, err := h.engine.RunSync(ctx, "w_a", false)
	require.ErrorIs(t, err, boom)

	cursor, ok := h.cursor(t, "w_a")
	assert.True(t, ok)
	assert.Equal(t, "c1", cursor)
	assert.Empty(t, h.source.updateCalls())
	assert.Len(t, h.source.listCalls(), 1)
}

func TestRunSync_UnknownWriter(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.engine.RunSync(context.Background(), "w_nobody", true)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Empty(t, h.source.listCalls())
}

func TestRunSync_DirectoryError(t *testing.T) {
	h := newHarness(t, nil)
	h.dir.err = errors.New("sheets down")

	_, err := h.engine.RunSync(context.Background(), "w_a", true)
	assert.Error(t, err)
}

func TestRunSync_SkipsMalformedAndUnmapped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bad := h.source.add("w_a", calendar.Event{Summary: "one two three four"})
	unmapped := h.source.add("w_a", calendar.Event{Summary: "pvd"})

	res, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Logged)

	assert.Equal(t, "one two three four", h.source.event("w_a", bad.ID).Summary, "malformed titles are left alone")
	assert.Equal(t, "A pvd use", h.source.event("w_a", unmapped.ID).Summary, "events without a sheet are still reconciled")
	assert.Empty(t, h.logRows(t, "RIE-1"))
}

func TestRunSync_LookbackAndPaging(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	h := newHarness(t, func(o *Options) {
		o.Location = loc
		o.PageSize = 2
		o.CursorPageSize = 3
	})
	for i := 0; i < 5; i++ {
		h.source.add("w_a", calendar.Event{Summary: "rie"})
	}

	res, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Events)

	calls := h.source.listCalls()
	require.Len(t, calls, 5, "three pull pages and two cursor pages")
	want := reservation.StartOfDay(h.now, loc, -DefaultLookbackDays)
	for _, c := range calls[:3] {
		assert.Equal(t, int64(2), c.Opts.MaxResults)
		assert.True(t, c.Opts.ShowDeleted)
		assert.True(t, want.Equal(c.Opts.TimeMin))
	}
	for _, c := range calls[3:] {
		assert.Equal(t, int64(3), c.Opts.MaxResults)
		assert.True(t, c.Opts.TimeMin.IsZero())
	}
	assert.Equal(t, "p2", calls[1].Opts.PageToken)
	assert.Equal(t, "p3", calls[4].Opts.PageToken)

	_, ok := h.cursor(t, "w_a")
	assert.True(t, ok)
}

func TestRunSync_CancelledTombstoneWithoutDetails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ev := h.source.add("w_a", calendar.Event{Summary: "A rie use", Status: calendar.StatusCancelled})

	res, err := h.engine.RunSync(ctx, "w_a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, 1, res.Logged)
	assert.Equal(t, 1, h.source.gets, "cancelled events are re-fetched")

	rows := h.logRows(t, "RIE-1")
	require.Len(t, rows, 1)
	assert.Equal(t, eventlog.ActionCancel, rows[0][eventlog.ColAction])
	assert.Equal(t, ev.ID, rows[0][eventlog.ColID])
}

func TestOnSubscriptionChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	rie := h.source.add("w_a", calendar.Event{Summary: "A rie use", Guests: []string{"r_b"}})
	cvd := h.source.add("w_a", calendar.Event{Summary: "A cvd use"})
	own := h.source.add("w_b", calendar.Event{Summary: "B cvd use"})
	odd := h.source.add("w_a", calendar.Event{Summary: "x y z w"})
	require.NoError(t, h.store.SetCursor(ctx, "w_a", "keep"))

	// B switches from rie to cvd.
	snap := scenarioSnapshot()
	snap.Subscribers[1] = subscriber(1, "B", "r_b", "w_b", "cvd")
	h.dir.snap = snap

	res, err := h.engine.OnSubscriptionChange(ctx, "r_b", -1)
	require.NoError(t, err)
	assert.Equal(t, instrumentation.ModeRepair, res.Mode)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Skipped)

	assert.Empty(t, h.source.event("w_a", rie.ID).Guests)
	assert.Equal(t, []string{"r_b"}, h.source.event("w_a", cvd.ID).Guests)
	assert.Empty(t, h.source.event("w_b", own.ID).Guests, "own events never gain the own read calendar")
	assert.Equal(t, "A cvd use", h.source.event("w_a", cvd.ID).Summary)
	assert.Equal(t, "x y z w", h.source.event("w_a", odd.ID).Summary)

	for _, u := range h.source.updateCalls() {
		assert.Nil(t, u.Update.Summary, "repair only touches guests")
	}
	assert.Empty(t, h.logRows(t, "RIE-1"))
	assert.Empty(t, h.logRows(t, "CVD"))

	cursor, ok := h.cursor(t, "w_a")
	assert.True(t, ok)
	assert.Equal(t, "keep", cursor)

	res, err = h.engine.OnSubscriptionChange(ctx, "r_b", -1)
	require.NoError(t, err)
	assert.Zero(t, res.Updated, "repair is idempotent")
}

func TestOnSubscriptionChange_Lookup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ev := h.source.add("w_b", calendar.Event{Summary: "B rie use"})

	res, err := h.engine.OnSubscriptionChange(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "r_a", res.CalendarID)
	assert.Equal(t, []string{"r_a"}, h.source.event("w_b", ev.ID).Guests)

	_, err = h.engine.OnSubscriptionChange(ctx, "", 7)
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = h.engine.OnSubscriptionChange(ctx, "r_missing", 0)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestOnSubscriptionChange_AllEventsSubscriber(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	snap := scenarioSnapshot()
	snap.Subscribers = append(snap.Subscribers, subscriber(2, "", "r_all", "", "rie", "cvd"))
	h.dir.snap = snap
	a := h.source.add("w_a", calendar.Event{Summary: "A rie use"})
	b := h.source.add("w_b", calendar.Event{Summary: "B cvd use"})

	_, err := h.engine.OnSubscriptionChange(ctx, "r_all", -1)
	require.NoError(t, err)

	guests := append(h.source.event("w_a", a.ID).Guests, h.source.event("w_b", b.ID).Guests...)
	sort.Strings(guests)
	assert.Equal(t, []string{"r_all", "r_all"}, guests)
}
