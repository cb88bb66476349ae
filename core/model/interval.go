package model

import "fmt"

// RuntimeInterval is an opportunity for the appliance to run. Start and End
// are offsets in seconds from the instant the interval was computed for and
// both bounds are inclusive. Energies are in Wh.
type RuntimeInterval struct {
	Start      int  `json:"start"`
	End        int  `json:"end"`
	MinEnergy  int  `json:"min_energy"`
	MaxEnergy  int  `json:"max_energy"`
	Sufficient bool `json:"sufficient_energy_available"`
}

// Contains reports whether the offset falls inside the interval.
func (r RuntimeInterval) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// Duration returns the interval length in seconds.
func (r RuntimeInterval) Duration() int { return r.End - r.Start }

func (r RuntimeInterval) String() string {
	return fmt.Sprintf("[%d..%d min=%dWh max=%dWh sufficient=%t]",
		r.Start, r.End, r.MinEnergy, r.MaxEnergy, r.Sufficient)
}
