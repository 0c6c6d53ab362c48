// Package timeutil provides the calendar arithmetic used for streak tracking.
//
// A streak day is the local civil date in a configured timezone, shifted back
// by one calendar day when the local hour is before the cutover hour. Days are
// represented as whole calendar days since 1970-01-01 so that consecutiveness
// never depends on elapsed hours, which makes DST transitions harmless.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical text form of a Day.
const DateLayout = "2006-01-02"

// Day is a civil calendar date counted in days since 1970-01-01.
// The zero Day means "no day recorded".
type Day int32

// DayOf returns the Day for a civil date. Out-of-range values are normalized
// the way time.Date normalizes them.
func DayOf(year int, month time.Month, day int) Day {
	secs := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix()
	d := secs / 86400
	if secs%86400 < 0 {
		d--
	}
	return Day(d)
}

// DayFromTime returns the Day of t's civil date in t's own location.
func DayFromTime(t time.Time) Day {
	y, m, d := t.Date()
	return DayOf(y, m, d)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayFromTime(t), nil
}

// IsZero reports whether no day is recorded.
func (d Day) IsZero() bool { return d == 0 }

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// Weekday returns the day of week.
func (d Day) Weekday() time.Weekday { return d.Time().Weekday() }

// AddDays returns the day n days later (or earlier for negative n).
func (d Day) AddDays(n int) Day { return d + Day(n) }

// Since returns the number of days from other to d.
func (d Day) Since(other Day) int { return int(d - other) }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// MarshalText encodes the day as YYYY-MM-DD; the zero Day encodes as "".
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts YYYY-MM-DD or "".
func (d *Day) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = 0
		return nil
	}
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Calendar maps instants to streak days.
type Calendar struct {
	loc         *time.Location
	cutoverHour int
	weekAnchor  time.Weekday
}

// NewCalendar creates a Calendar. cutoverHour must be within [0, 23].
func NewCalendar(loc *time.Location, cutoverHour int, weekAnchor time.Weekday) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	if cutoverHour < 0 || cutoverHour > 23 {
		return nil, fmt.Errorf("cutover hour %d out of range [0,23]", cutoverHour)
	}
	if weekAnchor < time.Sunday || weekAnchor > time.Saturday {
		return nil, fmt.Errorf("invalid week anchor %d", weekAnchor)
	}
	return &Calendar{loc: loc, cutoverHour: cutoverHour, weekAnchor: weekAnchor}, nil
}

// MustCalendar is NewCalendar that panics on invalid input.
func MustCalendar(loc *time.Location, cutoverHour int, weekAnchor time.Weekday) *Calendar {
	c, err := NewCalendar(loc, cutoverHour, weekAnchor)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Calendar) Location() *time.Location { return c.loc }
func (c *Calendar) CutoverHour() int         { return c.cutoverHour }
func (c *Calendar) WeekAnchor() time.Weekday { return c.weekAnchor }

// StreakDay returns the streak day that t belongs to.
func (c *Calendar) StreakDay(t time.Time) Day {
	local := t.In(c.loc)
	day := DayFromTime(local)
	if local.Hour() < c.cutoverHour {
		day--
	}
	return day
}

// WeekStart returns the first day of the consistency week containing d.
func (c *Calendar) WeekStart(d Day) Day {
	offset := (int(d.Weekday()) - int(c.weekAnchor) + 7) % 7
	return d - Day(offset)
}

// DayStart returns the instant at which streak day d begins.
func (c *Calendar) DayStart(d Day) time.Time {
	y, m, dd := d.Time().Date()
	return time.Date(y, m, dd, c.cutoverHour, 0, 0, 0, c.loc)
}

// DaysSince returns whole streak days elapsed from then to now.
func (c *Calendar) DaysSince(then, now time.Time) int {
	return c.StreakDay(now).Since(c.StreakDay(then))
}

// ParseWeekday parses an English weekday name ("monday", "Mon").
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
