package model

import (
	"math"
	"testing"
	"time"
)

func TestVehicleEnergyForSoC(t *testing.T) {
	v := Vehicle{ID: "ev", BatteryCapacityWh: 40000}
	if e := v.EnergyForSoC(70, 80, 1.1); math.Round(e) != 4400 {
		t.Fatalf("expected 4400 got %v", e)
	}
	if e := v.EnergyForSoC(84, 80, 1.1); e != 0 {
		t.Fatalf("expected 0 got %v", e)
	}
}

func TestTruncateSoC(t *testing.T) {
	cases := map[float64]int{84.5: 84, 42.7: 42, -3: 0, 120: 100}
	for in, want := range cases {
		if got := TruncateSoC(in); got != want {
			t.Errorf("TruncateSoC(%v)=%d want %d", in, got, want)
		}
	}
}

func TestVehicleValidate(t *testing.T) {
	v := Vehicle{ID: "ev"}
	if err := v.Validate(); err == nil {
		t.Fatalf("expected capacity error")
	}
	v.BatteryCapacityWh = 1000
	v.SetDefaults()
	if v.MaxSoC != DefaultMaxSoC {
		t.Fatalf("default max soc not applied")
	}
	if err := v.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDemandRemaining(t *testing.T) {
	d := Demand{MinWh: 4400, MaxWh: 4400, BaselineWh: 1000}
	min, max := d.Remaining(2000)
	if min != 3400 || max != 3400 {
		t.Fatalf("unexpected remaining %v %v", min, max)
	}
	min, max = d.Remaining(9000)
	if min != 0 || max != 0 {
		t.Fatalf("remaining must not go negative: %v %v", min, max)
	}
	at := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	d.Deadline = at
	if d.Expired(at.Add(-time.Second)) || !d.Expired(at) {
		t.Fatalf("deadline handling wrong")
	}
}
