package sessionlog

import (
	"testing"
	"time"
)

func TestQueryMatches(t *testing.T) {
	end := time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC)
	r := Record{ApplianceID: "F-001", VehicleID: "ev1", EndedAt: end, EnergyWh: 20000, FinalState: "completed"}
	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"appliance", Query{ApplianceID: "F-001"}, true},
		{"other appliance", Query{ApplianceID: "F-002"}, false},
		{"vehicle", Query{VehicleID: "ev2"}, false},
		{"inside range", Query{Start: end.Add(-time.Hour), End: end}, true},
		{"before start", Query{Start: end.Add(time.Minute)}, false},
		{"after end", Query{End: end.Add(-time.Minute)}, false},
	}
	for _, c := range cases {
		if got := c.q.Matches(r); got != c.want {
			t.Fatalf("%s: expected %v got %v", c.name, c.want, got)
		}
	}
}
