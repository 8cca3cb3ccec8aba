package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidClock is returned for malformed "HH:MM" values.
var ErrInvalidClock = errors.New("invalid clock time")

// MinutesPerDay is the exclusive upper bound of a ClockTime, written "24:00".
const MinutesPerDay = 24 * 60

// Date is a civil calendar date with no location attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// SameMonthDay reports whether both dates fall on the same month and day.
func (d Date) SameMonthDay(o Date) bool {
	return d.Month == o.Month && d.Day == o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ClockTime is a wall-clock reading in minutes after local midnight.
type ClockTime int

// ParseClock parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseClock(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return ClockTime(h*60 + m), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ClockOf returns the wall-clock minute of t in t's location. Seconds are dropped.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// LocalDateTime is a wall-clock date and minute, meaningful only together with
// the location it was read in.
type LocalDateTime struct {
	Date  Date
	Clock ClockTime
}

// Localize reads the instant t as wall-clock time in loc.
func Localize(t time.Time, loc *time.Location) LocalDateTime {
	local := t.In(loc)
	return LocalDateTime{Date: DateOf(local), Clock: ClockOf(local)}
}

// In converts the wall-clock reading back to an absolute instant in loc.
// Readings that do not exist (DST gaps) are normalized forward by time.Date.
func (l LocalDateTime) In(loc *time.Location) time.Time {
	return time.Date(l.Date.Year, l.Date.Month, l.Date.Day, int(l.Clock)/60, int(l.Clock)%60, 0, 0, loc)
}
