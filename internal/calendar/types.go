package calendar

import (
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// StatusCancelled is the status of a deleted event. Deleted events stay
// visible to sync listings as tombstones.
const StatusCancelled = "cancelled"

// Event is a reservation event on a write calendar.
type Event struct {
	ID          string
	ICalUID     string
	Summary     string
	Description string
	Status      string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Recurring   bool
	// Guests are the attendee emails, i.e. the read calendars mirroring the event.
	Guests []string
	// Pinned are attendees that are not mirrors: the organizer, the calendar
	// itself and resources. They are kept whenever Guests are replaced.
	Pinned []string
}

// Cancelled reports whether the event has been deleted.
func (e Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// HasGuest reports whether id is among the event guests.
func (e Event) HasGuest(id string) bool {
	for _, g := range e.Guests {
		if strings.EqualFold(g, id) {
			return true
		}
	}
	return false
}

// ListOptions are the parameters of one events.list page request. The time
// bounds are ignored when SyncToken is set, as the API rejects them together.
type ListOptions struct {
	SyncToken   string
	TimeMin     time.Time
	TimeMax     time.Time
	MaxResults  int64
	ShowDeleted bool
	PageToken   string
}

// EventPage is one page of an events.list response. NextSyncToken is only
// set on the last page.
type EventPage struct {
	Items         []Event
	NextPageToken string
	NextSyncToken string
}

// EventUpdate is a partial update of an event. Nil fields are left
// untouched; guests are only replaced when SetGuests is true, which allows
// clearing the guest list.
type EventUpdate struct {
	Summary     *string
	Description *string
	Start       *time.Time
	End         *time.Time
	// AllDay sends Start and End as dates.
	AllDay    bool
	Guests    []string
	SetGuests bool
	// Pinned are sent ahead of Guests when SetGuests is true.
	Pinned []string
}

// WithGuest returns guests with id added, and whether it was missing.
func WithGuest(guests []string, id string) ([]string, bool) {
	for _, g := range guests {
		if strings.EqualFold(g, id) {
			return guests, false
		}
	}
	out := make([]string, 0, len(guests)+1)
	out = append(out, guests...)
	return append(out, id), true
}

// WithoutGuest returns guests with id removed, and whether it was present.
func WithoutGuest(guests []string, id string) ([]string, bool) {
	out := make([]string, 0, len(guests))
	removed := false
	for _, g := range guests {
		if strings.EqualFold(g, id) {
			removed = true
			continue
		}
		out = append(out, g)
	}
	return out, removed
}

// SameGuests reports whether a and b hold the same set of guests, ignoring
// order and case.
func SameGuests(a, b []string) bool {
	set := make(map[string]int, len(a))
	for _, g := range a {
		set[strings.ToLower(g)]++
	}
	seen := make(map[string]bool, len(b))
	for _, g := range b {
		k := strings.ToLower(g)
		if set[k] == 0 {
			return false
		}
		seen[k] = true
	}
	return len(seen) == len(set)
}

// toEvent converts a Google Calendar event. All-day dates are interpreted
// in loc.
func toEvent(ev *calendar.Event, loc *time.Location) Event {
	out := Event{
		ID:          ev.Id,
		ICalUID:     ev.ICalUID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Status:      ev.Status,
		Recurring:   ev.RecurringEventId != "" || len(ev.Recurrence) > 0,
	}

	out.Start, out.AllDay = parseEventTime(ev.Start, loc)
	out.End, _ = parseEventTime(ev.End, loc)

	for _, att := range ev.Attendees {
		if att == nil || att.Email == "" {
			continue
		}
		if pinned(ev, att) {
			out.Pinned = append(out.Pinned, att.Email)
			continue
		}
		out.Guests = append(out.Guests, att.Email)
	}

	return out
}

// pinned reports whether att was added by Calendar itself rather than as a
// mirror guest.
func pinned(ev *calendar.Event, att *calendar.EventAttendee) bool {
	if att.Organizer || att.Self || att.Resource {
		return true
	}
	return ev.Organizer != nil && strings.EqualFold(att.Email, ev.Organizer.Email)
}

func parseEventTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t, false
		}
	}
	if dt.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", dt.Date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toAttendees(guests []string) []*calendar.EventAttendee {
	attendees := make([]*calendar.EventAttendee, 0, len(guests))
	for _, g := range guests {
		attendees = append(attendees, &calendar.EventAttendee{Email: g})
	}
	return attendees
}

func toEventDateTime(t time.Time, allDay bool, loc *time.Location) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.In(loc).Format("2006-01-02")}
	}
	return &calendar.EventDateTime{
		DateTime: t.In(loc).Format(time.RFC3339),
		TimeZone: loc.String(),
	}
}
