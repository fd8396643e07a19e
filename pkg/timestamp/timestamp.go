// Package timestamp holds the single textual representation of instants used
// by the store, and the lenient parser applied to incoming date-time strings.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Layout is how instants are written to the store: UTC, millisecond
// precision, fixed width, so text order equals time order.
const Layout = "2006-01-02T15:04:05.000Z"

// DateLayout is the calendar-day form accepted by the date channels.
const DateLayout = "2006-01-02"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Format renders t in the store layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse accepts RFC 3339 strings and the zone-less forms sent by the UI.
// Zone-less values are interpreted in loc. A bare date is midnight in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// IsDateOnly reports whether s is a bare calendar date.
func IsDateOnly(s string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(s))
	return err == nil
}

// DayBounds returns the first and last millisecond of the calendar day that
// contains t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}
