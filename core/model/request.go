package model

// RequestContext carries what a request needs to turn into energy.
type RequestContext struct {
	Vehicle      Vehicle
	SoC          int
	SoCKnown     bool
	LossFactor   float64
	ChargePowerW float64
}

// Request is the requirement attached to a scheduled timeframe.
type Request interface {
	// Energy returns the min and max energy in Wh needed in one window.
	Energy(c RequestContext) (minWh, maxWh float64)
	// AppliesTo reports whether the request targets the given vehicle.
	AppliesTo(vehicleID string) bool
}

// RuntimeRequest asks for a running time in seconds, converted to energy at
// the nominal charge power.
type RuntimeRequest struct {
	Min int
	Max int
}

func (r RuntimeRequest) Energy(c RequestContext) (float64, float64) {
	toWh := c.ChargePowerW / 3600
	return float64(r.Min) * toWh, float64(r.Max) * toWh
}

func (RuntimeRequest) AppliesTo(string) bool { return true }

// EnergyRequest asks for an amount of energy in Wh.
type EnergyRequest struct {
	Min int
	Max int
}

func (r EnergyRequest) Energy(RequestContext) (float64, float64) {
	return float64(r.Min), float64(r.Max)
}

func (EnergyRequest) AppliesTo(string) bool { return true }

// SocRequest asks for the vehicle to reach a state of charge. An unknown
// current state of charge counts as empty.
type SocRequest struct {
	VehicleID string
	SoC       int
}

func (r SocRequest) Energy(c RequestContext) (float64, float64) {
	from := 0
	if c.SoCKnown {
		from = c.SoC
	}
	e := c.Vehicle.EnergyForSoC(from, r.SoC, c.LossFactor)
	return e, e
}

func (r SocRequest) AppliesTo(vehicleID string) bool {
	return r.VehicleID == "" || r.VehicleID == vehicleID
}

// Schedule binds a request to the timeframe in which it must be met.
type Schedule struct {
	Enabled   bool
	Timeframe Timeframe
	Request   Request
}

// WindowKey identifies one occurrence of a schedule.
type WindowKey struct {
	Schedule int
	Start    int64
}
