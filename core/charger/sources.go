package charger

import (
	"context"
	"errors"
)

// VehicleStateSource reports the plug and charging state of the vehicle.
type VehicleStateSource interface {
	IsVehicleConnected() bool
	IsCharging() bool
}

// EnergyMeter accumulates the energy of the current charge cycle.
// Stop must not reset the accumulated energy.
type EnergyMeter interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
	Reset(ctx context.Context)
	// Energy returns the energy in kWh metered since the last reset.
	Energy(ctx context.Context) (float64, error)
}

// StateOfChargeSource reports the battery level in percent.
type StateOfChargeSource interface {
	StateOfCharge(ctx context.Context) (float64, error)
}

var (
	// ErrNotConnected is returned for requests that need a plugged vehicle.
	ErrNotConnected = errors.New("vehicle not connected")
	// ErrUnknownVehicle is returned when a request names a vehicle the
	// charger is not configured for.
	ErrUnknownVehicle = errors.New("unknown vehicle")
)

// Switch energises or de-energises the charger. powerW is a hint for the
// charge power and may be zero.
type Switch interface {
	SetSwitch(ctx context.Context, on bool, powerW int) error
}
