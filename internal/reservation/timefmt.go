package reservation

import (
	"fmt"
	"time"
)

// LocalLayout is the time layout used in log sheets and condition rows.
const LocalLayout = "01/02/06 15:04"

// FormatLocal renders t in loc using LocalLayout.
func FormatLocal(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(LocalLayout)
}

// ParseLocal parses a LocalLayout timestamp in loc.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(LocalLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay returns midnight of the day containing t, in loc, shifted by
// offsetDays.
func StartOfDay(t time.Time, loc *time.Location, offsetDays int) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day()+offsetDays, 0, 0, 0, 0, loc)
}
