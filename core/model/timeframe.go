package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	p, err := time.Parse(layout, s)
	if err != nil {
		return t, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: p.Hour(), Minute: p.Minute(), Second: p.Second()}, nil
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int { return t.Hour*3600 + t.Minute*60 + t.Second }

// OnDate returns t on the given date in loc.
func (t TimeOfDay) OnDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Window is one absolute occurrence of a timeframe.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window, end exclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Timeframe yields the absolute windows of a recurring or single period.
type Timeframe interface {
	// Occurrences returns the windows that overlap [from, to), ordered by start.
	Occurrences(from, to time.Time) []Window
}

// DayTimeframe recurs daily between two times of day. An end before the start
// crosses midnight. Days restricts the weekdays on which a window starts;
// empty means every day.
type DayTimeframe struct {
	Start TimeOfDay
	End   TimeOfDay
	Days  []time.Weekday
}

func (d DayTimeframe) allowed(wd time.Weekday) bool {
	if len(d.Days) == 0 {
		return true
	}
	for _, x := range d.Days {
		if x == wd {
			return true
		}
	}
	return false
}

// Occurrences implements Timeframe.
func (d DayTimeframe) Occurrences(from, to time.Time) []Window {
	var res []Window
	loc := from.Location()
	length := time.Duration(d.End.Seconds()-d.Start.Seconds()) * time.Second
	if length <= 0 {
		length += 24 * time.Hour
	}
	y, m, day := from.AddDate(0, 0, -1).Date()
	for i := 0; ; i++ {
		start := d.Start.OnDate(y, m, day+i, loc)
		if !start.Before(to) {
			break
		}
		if !d.allowed(start.Weekday()) {
			continue
		}
		end := start.Add(length)
		if end.After(from) {
			res = append(res, Window{Start: start, End: end})
		}
	}
	return res
}

// ConsecutiveDaysTimeframe spans several days once a week, e.g. from Friday
// 18:00 to Monday 07:00.
type ConsecutiveDaysTimeframe struct {
	StartDay time.Weekday
	Start    TimeOfDay
	EndDay   time.Weekday
	End      TimeOfDay
}

func (c ConsecutiveDaysTimeframe) length() time.Duration {
	days := (int(c.EndDay) - int(c.StartDay) + 7) % 7
	d := time.Duration(days)*24*time.Hour + time.Duration(c.End.Seconds()-c.Start.Seconds())*time.Second
	if d <= 0 {
		d += 7 * 24 * time.Hour
	}
	return d
}

// Occurrences implements Timeframe.
func (c ConsecutiveDaysTimeframe) Occurrences(from, to time.Time) []Window {
	var res []Window
	loc := from.Location()
	length := c.length()
	first := from.Add(-length)
	offset := (int(c.StartDay) - int(first.Weekday()) + 7) % 7
	y, m, day := first.Date()
	for i := 0; ; i++ {
		start := c.Start.OnDate(y, m, day+offset+7*i, loc)
		if !start.Before(to) {
			break
		}
		end := start.Add(length)
		if end.After(from) {
			res = append(res, Window{Start: start, End: end})
		}
	}
	return res
}

// OneOffTimeframe is a single absolute window.
type OneOffTimeframe struct {
	Start time.Time
	End   time.Time
}

// Occurrences implements Timeframe.
func (o OneOffTimeframe) Occurrences(from, to time.Time) []Window {
	if o.End.After(from) && o.Start.Before(to) {
		return []Window{{Start: o.Start, End: o.End}}
	}
	return nil
}
