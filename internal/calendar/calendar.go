// Package calendar answers business-hours questions for a single schedule.
// All arithmetic happens on wall-clock values in the schedule's timezone;
// instants are converted in on entry and out on return.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SearchHorizonDays bounds the forward search for an open window.
const SearchHorizonDays = 14

var (
	// ErrNoBusinessHours means no open window exists within SearchHorizonDays.
	ErrNoBusinessHours = errors.New("no business hours configured")
	// ErrInvalidTimezone wraps an unknown IANA zone name.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// Window is an open interval [Start, End) on one local day.
type Window struct {
	Start ClockTime
	End   ClockTime
}

// Contains reports whether c falls inside the window.
func (w Window) Contains(c ClockTime) bool {
	return c >= w.Start && c < w.End
}

// HolidayRule closes one date, or the same month/day every year when Recurring.
type HolidayRule struct {
	Date      Date
	Recurring bool
}

// Calendar is an immutable business-hours view of one schedule.
type Calendar struct {
	loc        *time.Location
	alwaysOpen bool
	week       [7]*Window
	holidays   []HolidayRule
}

// New builds a calendar from per-weekday windows. Weekdays absent from week are closed.
func New(loc *time.Location, week map[time.Weekday]Window, holidays []HolidayRule) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{loc: loc, holidays: holidays}
	for day, w := range week {
		w := w
		c.week[day] = &w
	}
	return c
}

// AlwaysOpen returns a calendar where every instant is business time.
func AlwaysOpen() *Calendar {
	return &Calendar{loc: time.UTC, alwaysOpen: true}
}

// FromSchedule builds the calendar for a schedule. holidays must already be
// narrowed to the schedule's own plus tenant-wide holidays.
func FromSchedule(schedule domain.BusinessHoursSchedule, holidays []domain.Holiday) (*Calendar, error) {
	if schedule.Is24x7 {
		return AlwaysOpen(), nil
	}
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, schedule.Timezone, err)
	}
	week := make(map[time.Weekday]Window, len(schedule.Entries))
	for _, entry := range schedule.Entries {
		if !entry.IsEnabled {
			continue
		}
		start, err := ParseClock(entry.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(entry.EndTime)
		if err != nil {
			return nil, err
		}
		week[time.Weekday(entry.DayOfWeek)] = Window{Start: start, End: end}
	}
	rules := make([]HolidayRule, 0, len(holidays))
	for _, h := range holidays {
		rules = append(rules, HolidayRule{Date: DateOf(h.Date), Recurring: h.IsRecurring})
	}
	return New(loc, week, rules), nil
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsAlwaysOpen reports whether the calendar is 24x7.
func (c *Calendar) IsAlwaysOpen() bool {
	return c.alwaysOpen
}

// IsHoliday reports whether the local date is closed by a holiday.
func (c *Calendar) IsHoliday(d Date) bool {
	for _, h := range c.holidays {
		if h.Recurring && h.Date.SameMonthDay(d) {
			return true
		}
		if !h.Recurring && h.Date == d {
			return true
		}
	}
	return false
}

func (c *Calendar) windowOn(d Date) *Window {
	if c.IsHoliday(d) {
		return nil
	}
	return c.week[d.Weekday()]
}

// IsOpen reports whether t is within business hours.
func (c *Calendar) IsOpen(t time.Time) bool {
	if c.alwaysOpen {
		return true
	}
	local := Localize(t, c.loc)
	w := c.windowOn(local.Date)
	return w != nil && w.Contains(local.Clock)
}

// NextOpen returns the first business instant at or after t.
func (c *Calendar) NextOpen(t time.Time) (time.Time, error) {
	if c.alwaysOpen {
		return t, nil
	}
	local := Localize(t, c.loc)
	for i := 0; i < SearchHorizonDays; i++ {
		day := local.Date.AddDays(i)
		w := c.windowOn(day)
		if w == nil {
			continue
		}
		if i == 0 {
			if local.Clock >= w.End {
				continue
			}
			if local.Clock >= w.Start {
				return t, nil
			}
		}
		start := LocalDateTime{Date: day, Clock: w.Start}.In(c.loc)
		// repeated wall-clock hours on DST fall-back days can map before t
		if start.Before(t) {
			return t, nil
		}
		return start, nil
	}
	return time.Time{}, ErrNoBusinessHours
}

// AddBusinessMinutes returns the instant reached after consuming minutes of
// business time starting from t. Closed time before t's first open window is skipped.
func (c *Calendar) AddBusinessMinutes(t time.Time, minutes int) (time.Time, error) {
	if c.alwaysOpen {
		return t.Add(time.Duration(minutes) * time.Minute), nil
	}
	cur, err := c.NextOpen(t)
	if err != nil {
		return time.Time{}, err
	}
	remaining := time.Duration(minutes) * time.Minute
	for {
		local := Localize(cur, c.loc)
		w := c.windowOn(local.Date)
		if w == nil {
			return time.Time{}, ErrNoBusinessHours
		}
		end := LocalDateTime{Date: local.Date, Clock: w.End}.In(c.loc)
		available := end.Sub(cur)
		if remaining <= available {
			return cur.Add(remaining), nil
		}
		if available > 0 {
			remaining -= available
		}
		if cur, err = c.NextOpen(end); err != nil {
			return time.Time{}, err
		}
	}
}

// BusinessMinutesBetween counts whole business minutes in [from, to).
func (c *Calendar) BusinessMinutesBetween(from, to time.Time) (int, error) {
	if !to.After(from) {
		return 0, nil
	}
	if c.alwaysOpen {
		return int(to.Sub(from) / time.Minute), nil
	}
	var total time.Duration
	cur := from
	for cur.Before(to) {
		next, err := c.NextOpen(cur)
		if err != nil {
			return 0, err
		}
		if !next.Before(to) {
			break
		}
		local := Localize(next, c.loc)
		w := c.windowOn(local.Date)
		if w == nil {
			break
		}
		end := LocalDateTime{Date: local.Date, Clock: w.End}.In(c.loc)
		if end.After(to) {
			end = to
		}
		total += end.Sub(next)
		cur = end
	}
	return int(total / time.Minute), nil
}
