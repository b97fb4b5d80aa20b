// Package calendartest provides an in-process fake of the Google Calendar v3
// events API, including sync tokens, tombstones and paging, for exercising
// the real API client in tests.
package calendartest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

type storedEvent struct {
	ev  *calendar.Event
	seq int64
}

type fakeCalendar struct {
	seq    int64
	gen    int
	order  []string
	events map[string]*storedEvent
}

// Server is a fake Google Calendar API server.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calendars map[string]*fakeCalendar
	nextID    int
	listCalls map[string]int
	patches   map[string]int
	failures  map[string][]int
}

// NewServer starts a fake server. Close it when done.
func NewServer() *Server {
	s := &Server{
		calendars: make(map[string]*fakeCalendar),
		nextID:    1,
		listCalls: make(map[string]int),
		patches:   make(map[string]int),
		failures:  make(map[string][]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) calendar(id string) *fakeCalendar {
	c, ok := s.calendars[id]
	if !ok {
		c = &fakeCalendar{events: make(map[string]*storedEvent)}
		s.calendars[id] = c
	}
	return c
}

func (c *fakeCalendar) put(ev *calendar.Event) {
	c.seq++
	if _, ok := c.events[ev.Id]; !ok {
		c.order = append(c.order, ev.Id)
	}
	c.events[ev.Id] = &storedEvent{ev: ev, seq: c.seq}
}

// AddEvent stores ev in calendarID as if a user had created it, assigning an
// id when empty. The stored copy is returned.
func (s *Server) AddEvent(calendarID string, ev *calendar.Event) *calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ev
	if cp.Id == "" {
		cp.Id = fmt.Sprintf("evt%d", s.nextID)
		s.nextID++
	}
	if cp.ICalUID == "" {
		cp.ICalUID = cp.Id + "@google.com"
	}
	if cp.Status == "" {
		cp.Status = "confirmed"
	}
	markOrganizer(calendarID, &cp)
	s.calendar(calendarID).put(&cp)
	out := cp
	return &out
}

// markOrganizer sets the organizer to the calendar and flags its attendee
// entry, as Calendar does for events created on a secondary calendar.
func markOrganizer(calendarID string, ev *calendar.Event) {
	if ev.Organizer == nil {
		ev.Organizer = &calendar.EventOrganizer{Email: calendarID, Self: true}
	}
	if len(ev.Attendees) == 0 {
		return
	}
	attendees := make([]*calendar.EventAttendee, 0, len(ev.Attendees))
	for _, att := range ev.Attendees {
		if att == nil {
			continue
		}
		cp := *att
		if strings.EqualFold(cp.Email, ev.Organizer.Email) {
			cp.Organizer = true
			cp.Self = true
		}
		attendees = append(attendees, &cp)
	}
	ev.Attendees = attendees
}

// CancelEvent marks an event as deleted, leaving a tombstone.
func (s *Server) CancelEvent(calendarID, eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.calendar(calendarID)
	stored, ok := c.events[eventID]
	if !ok {
		return false
	}
	cp := *stored.ev
	cp.Status = "cancelled"
	c.put(&cp)
	return true
}

// Event returns a copy of a stored event.
func (s *Server) Event(calendarID, eventID string) (*calendar.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.calendar(calendarID).events[eventID]
	if !ok {
		return nil, false
	}
	cp := *stored.ev
	return &cp, true
}

// InvalidateSyncTokens makes every sync token issued so far for calendarID
// answer 410 Gone.
func (s *Server) InvalidateSyncTokens(calendarID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendar(calendarID).gen++
}

// FailNextList makes the next list calls on calendarID fail with the given
// HTTP status codes, in order.
func (s *Server) FailNextList(calendarID string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[calendarID] = append(s.failures[calendarID], codes...)
}

// ListCalls returns how many list requests calendarID has served.
func (s *Server) ListCalls(calendarID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls[calendarID]
}

// PatchCalls returns how many patch requests calendarID has served.
func (s *Server) PatchCalls(calendarID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patches[calendarID]
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	idx := strings.Index(path, "/calendars/")
	if idx == -1 {
		writeError(w, http.StatusNotFound, "notFound", "unsupported endpoint")
		return
	}

	parts := strings.Split(strings.Trim(path[idx+len("/calendars/"):], "/"), "/")
	if len(parts) < 2 || parts[1] != "events" {
		writeError(w, http.StatusNotFound, "notFound", "unsupported resource")
		return
	}
	calendarID := parts[0]

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			s.handleList(w, r, calendarID)
		case http.MethodPost:
			s.handleInsert(w, r, calendarID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "methodNotAllowed", "method not allowed")
		}
		return
	}

	eventID := parts[2]
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, calendarID, eventID)
	case http.MethodPatch:
		s.handlePatch(w, r, calendarID, eventID)
	case http.MethodDelete:
		if !s.CancelEvent(calendarID, eventID) {
			writeError(w, http.StatusNotFound, "notFound", "Not Found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "methodNotAllowed", "method not allowed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, calendarID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls[calendarID]++
	if codes := s.failures[calendarID]; len(codes) > 0 {
		s.failures[calendarID] = codes[1:]
		writeError(w, codes[0], "backendError", "injected failure")
		return
	}

	c := s.calendar(calendarID)
	q := r.URL.Query()

	maxResults := 250
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid", "invalid maxResults")
			return
		}
		maxResults = n
	}

	var matches []*calendar.Event
	if token := q.Get("syncToken"); token != "" {
		since, ok := c.parseSyncToken(token)
		if !ok {
			writeError(w, http.StatusGone, "fullSyncRequired", "Sync token is no longer valid, a full sync is required.")
			return
		}
		for _, id := range c.order {
			if stored := c.events[id]; stored.seq > since {
				matches = append(matches, stored.ev)
			}
		}
	} else {
		var timeMin, timeMax time.Time
		for name, dst := range map[string]*time.Time{"timeMin": &timeMin, "timeMax": &timeMax} {
			if v := q.Get(name); v != "" {
				t, err := time.Parse(time.RFC3339, v)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid", "invalid "+name)
					return
				}
				*dst = t
			}
		}
		showDeleted := q.Get("showDeleted") == "true"
		for _, id := range c.order {
			ev := c.events[id].ev
			if ev.Status == "cancelled" && !showDeleted {
				continue
			}
			if !timeMin.IsZero() && !endsAfter(ev, timeMin) {
				continue
			}
			if !timeMax.IsZero() && !startsBefore(ev, timeMax) {
				continue
			}
			matches = append(matches, ev)
		}
	}

	offset := 0
	if v := q.Get("pageToken"); v != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(v, "page-"))
		if err != nil || n < 0 || n > len(matches) {
			writeError(w, http.StatusBadRequest, "invalid", "invalid pageToken")
			return
		}
		offset = n
	}

	end := offset + maxResults
	resp := &calendar.Events{Kind: "calendar#events", Items: []*calendar.Event{}}
	if end < len(matches) {
		resp.NextPageToken = fmt.Sprintf("page-%d", end)
	} else {
		end = len(matches)
		resp.NextSyncToken = fmt.Sprintf("g%d-%d", c.gen, c.seq)
	}
	resp.Items = append(resp.Items, matches[offset:end]...)

	writeJSON(w, http.StatusOK, resp)
}

func (c *fakeCalendar) parseSyncToken(token string) (int64, bool) {
	var gen int
	var seq int64
	if _, err := fmt.Sscanf(token, "g%d-%d", &gen, &seq); err != nil {
		return 0, false
	}
	if gen != c.gen || seq > c.seq {
		return 0, false
	}
	return seq, true
}

func endsAfter(ev *calendar.Event, t time.Time) bool {
	if ev.End == nil {
		return true
	}
	if ev.End.DateTime != "" {
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		return err != nil || end.After(t)
	}
	if ev.End.Date != "" {
		end, err := time.Parse("2006-01-02", ev.End.Date)
		return err != nil || end.After(t)
	}
	return true
}

func startsBefore(ev *calendar.Event, t time.Time) bool {
	if ev.Start == nil {
		return true
	}
	if ev.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		return err != nil || start.Before(t)
	}
	if ev.Start.Date != "" {
		start, err := time.Parse("2006-01-02", ev.Start.Date)
		return err != nil || start.Before(t)
	}
	return true
}

func (s *Server) handleGet(w http.ResponseWriter, calendarID, eventID string) {
	ev, ok := s.Event(calendarID, eventID)
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request, calendarID string) {
	var ev calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "parseError", err.Error())
		return
	}
	ev.Id = ""
	writeJSON(w, http.StatusOK, s.AddEvent(calendarID, &ev))
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, calendarID, eventID string) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "parseError", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.patches[calendarID]++
	c := s.calendar(calendarID)
	stored, ok := c.events[eventID]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", "Not Found")
		return
	}

	cp := *stored.ev
	for name, raw := range fields {
		var err error
		switch name {
		case "summary":
			err = json.Unmarshal(raw, &cp.Summary)
		case "description":
			err = json.Unmarshal(raw, &cp.Description)
		case "start":
			cp.Start = nil
			err = json.Unmarshal(raw, &cp.Start)
		case "end":
			cp.End = nil
			err = json.Unmarshal(raw, &cp.End)
		case "attendees":
			cp.Attendees = nil
			err = json.Unmarshal(raw, &cp.Attendees)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "parseError", err.Error())
			return
		}
	}
	markOrganizer(calendarID, &cp)
	c.put(&cp)

	out := cp
	writeJSON(w, http.StatusOK, &out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors": []map[string]string{
				{"domain": "global", "reason": reason, "message": message},
			},
		},
	})
}
