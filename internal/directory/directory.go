package directory

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AllEventsName is the display name of the subscriber that sees every event.
const AllEventsName = "ALL EVENTS"

// Users sheet columns, 0-based.
const (
	colFullName        = 0
	colName            = 4
	colReadCalendarID  = 5
	colWriteCalendarID = 6
	colFirstEquipment  = 9
)

// Users sheet columns as the spreadsheet numbers them, for routing edits.
const (
	FullNameColumn       = colFullName + 1
	FirstEquipmentColumn = colFirstEquipment + 1
)

// ErrSubscriberNotFound is returned when a lookup matches no subscriber.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// Subscriber is one row of the users table.
type Subscriber struct {
	// Index is the 0-based position among data rows; sheet row is Index+2.
	Index           int
	FullName        string
	Name            string
	ReadCalendarID  string
	WriteCalendarID string
	Equipment       map[string]bool
}

// Enabled reports whether the subscriber has opted into equipment.
func (s Subscriber) Enabled(equipment string) bool {
	return s.Equipment[equipment]
}

// IsAllEvents reports whether this is the synthetic subscriber without a
// write calendar.
func (s Subscriber) IsAllEvents() bool {
	return s.WriteCalendarID == ""
}

// EnabledEquipment returns the enabled equipment names, sorted.
func (s Subscriber) EnabledEquipment() []string {
	out := make([]string, 0, len(s.Equipment))
	for name, on := range s.Equipment {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot is an immutable view of the directory for one pass.
type Snapshot struct {
	Subscribers []Subscriber
	// EquipmentSheets maps equipment name to equipment sheet title.
	EquipmentSheets map[string]string
}

// ListSubscribers returns every subscriber in sheet order.
func (s *Snapshot) ListSubscribers() []Subscriber {
	return s.Subscribers
}

// Writer returns the subscriber owning writeCalendarID.
func (s *Snapshot) Writer(writeCalendarID string) (Subscriber, error) {
	if writeCalendarID != "" {
		for _, sub := range s.Subscribers {
			if sub.WriteCalendarID == writeCalendarID {
				return sub, nil
			}
		}
	}
	return Subscriber{}, fmt.Errorf("write calendar %s: %w", writeCalendarID, ErrSubscriberNotFound)
}

// ByReadCalendar returns the subscriber owning readCalendarID.
func (s *Snapshot) ByReadCalendar(readCalendarID string) (Subscriber, error) {
	if readCalendarID != "" {
		for _, sub := range s.Subscribers {
			if sub.ReadCalendarID == readCalendarID {
				return sub, nil
			}
		}
	}
	return Subscriber{}, fmt.Errorf("read calendar %s: %w", readCalendarID, ErrSubscriberNotFound)
}

// At returns the subscriber at index.
func (s *Snapshot) At(index int) (Subscriber, error) {
	if index < 0 || index >= len(s.Subscribers) {
		return Subscriber{}, fmt.Errorf("index %d: %w", index, ErrSubscriberNotFound)
	}
	return s.Subscribers[index], nil
}

// ByName returns the first subscriber named name. Duplicate names resolve to
// the earliest row.
func (s *Snapshot) ByName(name string) (Subscriber, error) {
	if name != "" {
		for _, sub := range s.Subscribers {
			if sub.Name == name {
				return sub, nil
			}
		}
	}
	return Subscriber{}, fmt.Errorf("name %q: %w", name, ErrSubscriberNotFound)
}

// SheetFor returns the equipment sheet title for equipment.
func (s *Snapshot) SheetFor(equipment string) (string, bool) {
	sheet, ok := s.EquipmentSheets[equipment]
	return sheet, ok
}

// EquipmentForSheet is the inverse of SheetFor.
func (s *Snapshot) EquipmentForSheet(sheet string) (string, bool) {
	for name, title := range s.EquipmentSheets {
		if title == sheet {
			return name, true
		}
	}
	return "", false
}

// WriteCalendars returns the distinct write calendar ids in sheet order.
func (s *Snapshot) WriteCalendars() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, sub := range s.Subscribers {
		if sub.WriteCalendarID == "" || seen[sub.WriteCalendarID] {
			continue
		}
		seen[sub.WriteCalendarID] = true
		ids = append(ids, sub.WriteCalendarID)
	}
	return ids
}

// Parse builds a Snapshot from the users table (header row included), the
// properties table (data rows only: equipment name, sheet id) and the sheet
// id to title mapping of the spreadsheet.
func Parse(users, properties [][]string, sheetTitles map[int64]string) (*Snapshot, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("users table is empty")
	}

	header := users[0]
	snap := &Snapshot{EquipmentSheets: make(map[string]string)}

	for i, row := range users[1:] {
		sub := Subscriber{
			Index:           i,
			FullName:        cell(row, colFullName),
			Name:            cell(row, colName),
			ReadCalendarID:  cell(row, colReadCalendarID),
			WriteCalendarID: cell(row, colWriteCalendarID),
			Equipment:       make(map[string]bool),
		}
		for col := colFirstEquipment; col < len(header); col++ {
			name := strings.TrimSpace(header[col])
			if name != "" && checked(cell(row, col)) {
				sub.Equipment[name] = true
			}
		}
		snap.Subscribers = append(snap.Subscribers, sub)
	}

	for i, row := range properties {
		name := cell(row, 0)
		rawID := cell(row, 1)
		if name == "" || rawID == "" {
			continue
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("properties row %d: invalid sheet id %q: %w", i+2, rawID, err)
		}
		if title, ok := sheetTitles[id]; ok {
			snap.EquipmentSheets[name] = title
		}
	}

	return snap, nil
}

func cell(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

func checked(v string) bool {
	return strings.EqualFold(v, "TRUE")
}
