package model

import (
	"fmt"
	"math"
)

// DefaultMaxSoC is used when a vehicle does not declare its own charge limit.
const DefaultMaxSoC = 100

// Vehicle describes an electric vehicle that may be plugged into a charger.
type Vehicle struct {
	ID                string `json:"id" yaml:"id"`
	BatteryCapacityWh int    `json:"battery_capacity_wh" yaml:"battery_capacity_wh"`
	// MaxSoC caps optional charging, in percent.
	MaxSoC int `json:"max_soc" yaml:"max_soc"`
}

// SetDefaults applies the default charge limit.
func (v *Vehicle) SetDefaults() {
	if v.MaxSoC == 0 {
		v.MaxSoC = DefaultMaxSoC
	}
}

// Validate checks that the vehicle configuration is sound.
// In particular BatteryCapacityWh must be positive.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.BatteryCapacityWh <= 0 {
		return fmt.Errorf("vehicle %s: battery capacity must be positive", v.ID)
	}
	if v.MaxSoC < 0 || v.MaxSoC > 100 {
		return fmt.Errorf("vehicle %s: max soc %d out of range", v.ID, v.MaxSoC)
	}
	return nil
}

// EnergyForSoC returns the energy in Wh needed to raise the battery from one
// state of charge to another, scaled by the charge loss factor.
func (v Vehicle) EnergyForSoC(from, to int, lossFactor float64) float64 {
	if to <= from {
		return 0
	}
	raw := float64((to-from)*v.BatteryCapacityWh) / 100
	return raw * lossFactor
}

// TruncateSoC converts a state of charge reading to whole percent.
func TruncateSoC(soc float64) int {
	if soc < 0 {
		return 0
	}
	if soc > 100 {
		return 100
	}
	return int(math.Trunc(soc))
}
