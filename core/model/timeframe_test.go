package model

import (
	"testing"
	"time"
)

func day(h, m int) time.Time {
	return time.Date(2025, 3, 5, h, m, 0, 0, time.UTC) // a Wednesday
}

func TestDayTimeframeOccurrences(t *testing.T) {
	tf := DayTimeframe{Start: TimeOfDay{Hour: 10}, End: TimeOfDay{Hour: 16}}
	now := day(9, 55)
	occ := tf.Occurrences(now, now.Add(48*time.Hour))
	if len(occ) != 2 {
		t.Fatalf("expected 2 windows got %d", len(occ))
	}
	if !occ[0].Start.Equal(day(10, 0)) || !occ[0].End.Equal(day(16, 0)) {
		t.Fatalf("unexpected first window %v", occ[0])
	}
	if !occ[1].Start.Equal(day(10, 0).Add(24 * time.Hour)) {
		t.Fatalf("unexpected second window %v", occ[1])
	}
}

func TestDayTimeframeActiveWindowIncluded(t *testing.T) {
	tf := DayTimeframe{Start: TimeOfDay{Hour: 10}, End: TimeOfDay{Hour: 16}}
	occ := tf.Occurrences(day(11, 0), day(11, 0).Add(48*time.Hour))
	if len(occ) != 3 {
		t.Fatalf("expected 3 windows got %d", len(occ))
	}
	if !occ[0].Contains(day(11, 0)) {
		t.Fatalf("first window should be active")
	}
}

func TestDayTimeframeAcrossMidnight(t *testing.T) {
	tf := DayTimeframe{Start: TimeOfDay{Hour: 22}, End: TimeOfDay{Hour: 6}}
	occ := tf.Occurrences(day(1, 0), day(1, 0).Add(2*time.Hour))
	if len(occ) != 1 {
		t.Fatalf("expected the window started yesterday, got %d", len(occ))
	}
	if !occ[0].Start.Equal(day(22, 0).Add(-24*time.Hour)) || !occ[0].End.Equal(day(6, 0)) {
		t.Fatalf("unexpected window %v", occ[0])
	}
}

func TestDayTimeframeWeekdays(t *testing.T) {
	tf := DayTimeframe{Start: TimeOfDay{Hour: 8}, End: TimeOfDay{Hour: 9}, Days: []time.Weekday{time.Friday}}
	occ := tf.Occurrences(day(0, 0), day(0, 0).Add(7*24*time.Hour))
	if len(occ) != 1 || occ[0].Start.Weekday() != time.Friday {
		t.Fatalf("expected one friday window got %v", occ)
	}
}

func TestConsecutiveDaysTimeframe(t *testing.T) {
	tf := ConsecutiveDaysTimeframe{
		StartDay: time.Friday, Start: TimeOfDay{Hour: 18},
		EndDay: time.Monday, End: TimeOfDay{Hour: 7},
	}
	occ := tf.Occurrences(day(12, 0), day(12, 0).Add(7*24*time.Hour))
	if len(occ) != 1 {
		t.Fatalf("expected 1 window got %d", len(occ))
	}
	w := occ[0]
	if w.Start.Weekday() != time.Friday || w.End.Weekday() != time.Monday {
		t.Fatalf("unexpected window %v", w)
	}
	if w.End.Sub(w.Start) != 61*time.Hour {
		t.Fatalf("unexpected length %v", w.End.Sub(w.Start))
	}
	// a reference time inside the window still yields it
	inside := w.Start.Add(time.Hour)
	occ = tf.Occurrences(inside, inside.Add(time.Hour))
	if len(occ) != 1 || !occ[0].Start.Equal(w.Start) {
		t.Fatalf("active window not found: %v", occ)
	}
}

func TestOneOffTimeframe(t *testing.T) {
	tf := OneOffTimeframe{Start: day(10, 0), End: day(12, 0)}
	if occ := tf.Occurrences(day(13, 0), day(14, 0)); len(occ) != 0 {
		t.Fatalf("past window returned")
	}
	if occ := tf.Occurrences(day(11, 0), day(14, 0)); len(occ) != 1 {
		t.Fatalf("active window missing")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("07:30")
	if err != nil || tod.Seconds() != 7*3600+30*60 {
		t.Fatalf("parse: %v %v", tod, err)
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatalf("expected error")
	}
}
