package sim

import (
	"math"
	"time"
)

// Battery models the traction battery of a simulated vehicle.
type Battery struct {
	CapacityKWh  float64 // total capacity
	Soc          float64 // state of charge [0,1]
	ChargeRateKW float64 // maximum charging power
}

// Charge feeds the battery with up to powerKW for dt and returns the energy
// stored in kWh.
func (b *Battery) Charge(powerKW float64, dt time.Duration) float64 {
	hours := dt.Hours()
	if hours <= 0 || powerKW <= 0 || b.CapacityKWh <= 0 {
		return 0
	}
	p := math.Min(powerKW, b.ChargeRateKW)
	avail := (1 - b.Soc) * b.CapacityKWh
	stored := math.Min(p*hours, avail)
	b.Soc += stored / b.CapacityKWh
	if b.Soc > 1 {
		b.Soc = 1
	}
	return stored
}

// Full reports whether the battery accepts no more energy.
func (b *Battery) Full() bool { return b.Soc >= 1 }
