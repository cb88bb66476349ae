package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeframeConfig is the serialised form of a Timeframe.
type TimeframeConfig struct {
	// Type is one of "day", "consecutive_days" or "one_off".
	Type     string   `json:"type" yaml:"type"`
	Start    string   `json:"start" yaml:"start"`
	End      string   `json:"end" yaml:"end"`
	Days     []string `json:"days,omitempty" yaml:"days,omitempty"`
	StartDay string   `json:"start_day,omitempty" yaml:"start_day,omitempty"`
	EndDay   string   `json:"end_day,omitempty" yaml:"end_day,omitempty"`
}

// RequestConfig is the serialised form of a Request.
type RequestConfig struct {
	// Type is one of "runtime", "energy" or "soc".
	Type      string `json:"type" yaml:"type"`
	Min       int    `json:"min,omitempty" yaml:"min,omitempty"`
	Max       int    `json:"max,omitempty" yaml:"max,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty" yaml:"vehicle_id,omitempty"`
	SoC       int    `json:"soc,omitempty" yaml:"soc,omitempty"`
}

// ScheduleConfig is the serialised form of a Schedule.
type ScheduleConfig struct {
	Enabled   *bool           `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Timeframe TimeframeConfig `json:"timeframe" yaml:"timeframe"`
	Request   RequestConfig   `json:"request" yaml:"request"`
}

// Build validates the configuration and returns the schedule. Wall clock
// times are interpreted in loc.
func (c ScheduleConfig) Build(loc *time.Location) (Schedule, error) {
	tf, err := c.Timeframe.Build(loc)
	if err != nil {
		return Schedule{}, err
	}
	req, err := c.Request.Build()
	if err != nil {
		return Schedule{}, err
	}
	enabled := c.Enabled == nil || *c.Enabled
	return Schedule{Enabled: enabled, Timeframe: tf, Request: req}, nil
}

// Build returns the timeframe described by c.
func (c TimeframeConfig) Build(loc *time.Location) (Timeframe, error) {
	if loc == nil {
		loc = time.Local
	}
	switch strings.ToLower(c.Type) {
	case "day", "":
		start, end, err := parseRange(c.Start, c.End)
		if err != nil {
			return nil, err
		}
		if start == end {
			return nil, fmt.Errorf("day timeframe %s-%s has zero length", c.Start, c.End)
		}
		days := make([]time.Weekday, 0, len(c.Days))
		for _, d := range c.Days {
			wd, err := ParseWeekday(d)
			if err != nil {
				return nil, err
			}
			days = append(days, wd)
		}
		return DayTimeframe{Start: start, End: end, Days: days}, nil
	case "consecutive_days":
		start, end, err := parseRange(c.Start, c.End)
		if err != nil {
			return nil, err
		}
		sd, err := ParseWeekday(c.StartDay)
		if err != nil {
			return nil, err
		}
		ed, err := ParseWeekday(c.EndDay)
		if err != nil {
			return nil, err
		}
		if sd == ed && start == end {
			return nil, fmt.Errorf("consecutive days timeframe has zero length")
		}
		return ConsecutiveDaysTimeframe{StartDay: sd, Start: start, EndDay: ed, End: end}, nil
	case "one_off":
		start, err := time.ParseInLocation(time.RFC3339, c.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("one_off start: %w", err)
		}
		end, err := time.ParseInLocation(time.RFC3339, c.End, loc)
		if err != nil {
			return nil, fmt.Errorf("one_off end: %w", err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("one_off timeframe must end after it starts")
		}
		return OneOffTimeframe{Start: start, End: end}, nil
	default:
		return nil, fmt.Errorf("unknown timeframe type %s", c.Type)
	}
}

// Build returns the request described by c.
func (c RequestConfig) Build() (Request, error) {
	switch strings.ToLower(c.Type) {
	case "runtime":
		if c.Min < 0 || c.Max < c.Min {
			return nil, fmt.Errorf("runtime request: invalid range %d-%d", c.Min, c.Max)
		}
		return RuntimeRequest{Min: c.Min, Max: c.Max}, nil
	case "energy":
		if c.Min < 0 || c.Max < c.Min {
			return nil, fmt.Errorf("energy request: invalid range %d-%d", c.Min, c.Max)
		}
		return EnergyRequest{Min: c.Min, Max: c.Max}, nil
	case "soc":
		if c.SoC < 0 || c.SoC > 100 {
			return nil, fmt.Errorf("soc request: soc %d out of range", c.SoC)
		}
		return SocRequest{VehicleID: c.VehicleID, SoC: c.SoC}, nil
	default:
		return nil, fmt.Errorf("unknown request type %s", c.Type)
	}
}

func parseRange(s, e string) (TimeOfDay, TimeOfDay, error) {
	start, err := ParseTimeOfDay(s)
	if err != nil {
		return start, TimeOfDay{}, err
	}
	end, err := ParseTimeOfDay(e)
	if err != nil {
		return start, end, err
	}
	return start, end, nil
}

// ParseWeekday accepts English weekday names or their three letter prefix.
func ParseWeekday(s string) (time.Weekday, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if l == name || (len(l) == 3 && strings.HasPrefix(name, l)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
