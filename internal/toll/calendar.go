package toll

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// TimeZone is the civil timezone every day, weekend and holiday rule is evaluated in.
const TimeZone = "Europe/Stockholm"

const dateKeyLayout = "2006-01-02"

// Calendar classifies instants in the fixed civil timezone.
type Calendar struct {
	loc      *time.Location
	holidays HolidayCalendar
}

// NewCalendar builds a Calendar for TimeZone using the given holiday table.
func NewCalendar(holidays HolidayCalendar) (*Calendar, error) {
	loc, err := time.LoadLocation(TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", TimeZone, err)
	}
	return &Calendar{loc: loc, holidays: holidays}, nil
}

// MustDefaultCalendar returns a Calendar over the embedded holiday table.
func MustDefaultCalendar() *Calendar {
	cal, err := NewCalendar(DefaultHolidays())
	if err != nil {
		panic(err)
	}
	return cal
}

// civil is the one conversion from an absolute instant to wall-clock time; every
// classifier below goes through it.
func (c *Calendar) civil(t time.Time) time.Time { return t.In(c.loc) }

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) Holidays() HolidayCalendar { return c.holidays }

// LocalDateKey returns the civil date as YYYY-MM-DD.
func (c *Calendar) LocalDateKey(t time.Time) string {
	return c.civil(t).Format(dateKeyLayout)
}

func (c *Calendar) IsWeekend(t time.Time) bool {
	switch c.civil(t).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

func (c *Calendar) IsHoliday(t time.Time) bool {
	ct := c.civil(t)
	return c.holidays.Contains(ct.Year(), ct.Month(), ct.Day())
}

// MinutesSinceMidnight returns the civil minute of day, 0–1439.
func (c *Calendar) MinutesSinceMidnight(t time.Time) int {
	ct := c.civil(t)
	return ct.Hour()*60 + ct.Minute()
}

// ParseDateKey validates a YYYY-MM-DD key.
func ParseDateKey(s string) (string, error) {
	d, err := time.Parse(dateKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d.Format(dateKeyLayout), nil
}
