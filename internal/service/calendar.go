package service

import (
	"strings"
	"time"

	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/timestamp"
)

// Calendar turns the date strings sent by the UI into instants. Calendar
// days are taken in the configured location.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{loc: loc}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) Parse(s string) (time.Time, error) {
	return timestamp.Parse(s, c.loc)
}

// Day returns the bounds of the calendar day containing t.
func (c *Calendar) Day(t time.Time) (time.Time, time.Time) {
	return timestamp.DayBounds(t, c.loc)
}

// ParseDay reads a date or date-time and returns the instant it denotes.
func (c *Calendar) ParseDay(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, apperr.Validation("La date est obligatoire")
	}
	t, err := c.Parse(s)
	if err != nil {
		return time.Time{}, apperr.Validation("La date n'est pas valide")
	}
	return t, nil
}

// Range resolves an inclusive period. A bare date as end bound stands for
// the whole day.
func (c *Calendar) Range(startDate, endDate string) (time.Time, time.Time, error) {
	var msgs []string
	if strings.TrimSpace(startDate) == "" {
		msgs = append(msgs, "La date de début est obligatoire")
	}
	if strings.TrimSpace(endDate) == "" {
		msgs = append(msgs, "La date de fin est obligatoire")
	}
	if len(msgs) > 0 {
		return time.Time{}, time.Time{}, apperr.Validation(msgs...)
	}

	start, err := c.Parse(startDate)
	if err != nil {
		msgs = append(msgs, "La date de début n'est pas valide")
	}
	end, err := c.Parse(endDate)
	if err != nil {
		msgs = append(msgs, "La date de fin n'est pas valide")
	}
	if len(msgs) > 0 {
		return time.Time{}, time.Time{}, apperr.Validation(msgs...)
	}

	if timestamp.IsDateOnly(endDate) {
		_, end = c.Day(end)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.Validation("La date de début doit précéder la date de fin")
	}
	return start, end, nil
}
