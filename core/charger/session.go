package charger

import (
	"time"

	"github.com/kilianp07/chargeplan/core/model"
)

// DefaultLossFactor is the charge loss margin applied to energies derived
// from a state of charge.
const DefaultLossFactor = 1.1

// Params is the static configuration of a charger.
type Params struct {
	// Vehicles lists the vehicles that may be plugged in. The first one is
	// assumed until a request names another.
	Vehicles []model.Vehicle
	// LossFactor scales SOC derived energies.
	LossFactor float64
	// ChargePowerW is the nominal charge power used to convert runtimes and
	// to derive deadlines.
	ChargePowerW float64
}

// Vehicle returns the configured vehicle with the given id. An empty id
// selects the default vehicle.
func (p Params) Vehicle(id string) (model.Vehicle, bool) {
	if len(p.Vehicles) == 0 {
		return model.Vehicle{}, false
	}
	if id == "" {
		return p.Vehicles[0], true
	}
	for _, v := range p.Vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return model.Vehicle{}, false
}

func (p Params) lossFactor() float64 {
	if p.LossFactor <= 0 {
		return DefaultLossFactor
	}
	return p.LossFactor
}

// Session is the state of one connection cycle of a charger.
type Session struct {
	State       model.ChargerState
	VehicleID   string
	ConnectedAt time.Time
	// SoC is the state of charge read when the cycle started.
	SoC      int
	SoCKnown bool

	SwitchedOn bool
	PowerW     int

	Default  model.Demand
	Explicit *model.Demand

	ConsumedWh float64

	MeterRunning bool
	// MeterUsed is set once the meter has been started since its last reset.
	MeterUsed bool

	// Baselines holds the consumed energy at the first tick inside each
	// active schedule window.
	Baselines map[model.WindowKey]float64
}

// Active returns the connection level demand in effect.
func (s Session) Active() model.Demand {
	if s.Explicit != nil {
		return *s.Explicit
	}
	return s.Default
}

// Connected reports whether a vehicle is plugged in.
func (s Session) Connected() bool { return s.State != model.StateNotConnected }

func (s Session) clone() Session {
	c := s
	if s.Explicit != nil {
		d := *s.Explicit
		c.Explicit = &d
	}
	if s.Baselines != nil {
		c.Baselines = make(map[model.WindowKey]float64, len(s.Baselines))
		for k, v := range s.Baselines {
			c.Baselines[k] = v
		}
	}
	return c
}

// Observation is what the charger learned from its collaborators on a tick.
type Observation struct {
	Now       time.Time
	Connected bool
	Charging  bool
	// EnergyKWh is the metered energy of the cycle, valid when EnergyOK.
	EnergyKWh float64
	EnergyOK  bool
	// SoC is the battery level in percent, valid when SoCOK.
	SoC   float64
	SoCOK bool
	// ActiveWindows are the schedule windows containing Now.
	ActiveWindows []model.WindowKey
}

// Action is a side effect requested by Step.
type Action int

const (
	ActionStartMeter Action = iota
	ActionStopMeter
	ActionResetMeter
)

func (a Action) String() string {
	switch a {
	case ActionStartMeter:
		return "start_meter"
	case ActionStopMeter:
		return "stop_meter"
	case ActionResetMeter:
		return "reset_meter"
	default:
		return "unknown"
	}
}

// Step advances the session by one tick. It does not touch s and returns the
// meter actions to apply in order.
func Step(p Params, s Session, o Observation) (Session, []Action) {
	if !o.Connected {
		if s.State == model.StateNotConnected {
			return s.clone(), nil
		}
		var actions []Action
		if s.MeterRunning {
			actions = append(actions, ActionStopMeter)
		}
		return Session{
			State:      model.StateNotConnected,
			SwitchedOn: s.SwitchedOn,
			PowerW:     s.PowerW,
			MeterUsed:  s.MeterUsed,
		}, actions
	}

	next := s.clone()
	var actions []Action

	if next.MeterRunning && o.EnergyOK {
		next.ConsumedWh = o.EnergyKWh * 1000
	}

	if next.State == model.StateNotConnected {
		var reset bool
		next, reset = begin(p, next, o.Now, o.SoC, o.SoCOK, "")
		if reset {
			actions = append(actions, ActionResetMeter)
		}
	}

	switch next.State {
	case model.StateConnected, model.StateInterrupted:
		if o.Charging {
			next.State = model.StateCharging
			next.MeterRunning = true
			next.MeterUsed = true
			actions = append(actions, ActionStartMeter)
		}
	case model.StateCharging:
		if !o.Charging {
			next.MeterRunning = false
			actions = append(actions, ActionStopMeter)
			if next.SwitchedOn {
				next.State = model.StateCompleted
			} else {
				next.State = model.StateInterrupted
			}
		}
	}

	if next.Explicit != nil && next.Explicit.Expired(o.Now) {
		next.Explicit = nil
	}

	if next.State == model.StateCharging || next.State == model.StateInterrupted {
		d := next.Active()
		if _, maxWh := d.Remaining(next.ConsumedWh); d.MaxWh > 0 && model.WholeWh(maxWh) <= 0 {
			next.State = model.StateCompleted
			if next.MeterRunning {
				next.MeterRunning = false
				actions = append(actions, ActionStopMeter)
			}
		}
	}

	next.Baselines = trackWindows(next.Baselines, o.ActiveWindows, next.ConsumedWh)
	return next, actions
}

// Begin starts a fresh cycle for a connected vehicle. It reports whether the
// meter has to be reset first. vehicleID may be empty for the default vehicle.
func Begin(p Params, s Session, now time.Time, soc float64, socOK bool, vehicleID string) (Session, bool) {
	return begin(p, s.clone(), now, soc, socOK, vehicleID)
}

func begin(p Params, s Session, now time.Time, soc float64, socOK bool, vehicleID string) (Session, bool) {
	v, _ := p.Vehicle(vehicleID)
	next := Session{
		State:       model.StateConnected,
		VehicleID:   v.ID,
		ConnectedAt: now,
		SwitchedOn:  s.SwitchedOn,
		PowerW:      s.PowerW,
		Baselines:   map[model.WindowKey]float64{},
	}
	from := 0
	kind := model.DemandOptional
	if socOK {
		next.SoC = model.TruncateSoC(soc)
		next.SoCKnown = true
		from = next.SoC
		kind = model.DemandSoC
	}
	maxSoC := v.MaxSoC
	if maxSoC == 0 {
		maxSoC = model.DefaultMaxSoC
	}
	next.Default = model.Demand{
		Kind:      kind,
		MaxWh:     v.EnergyForSoC(from, maxSoC, p.lossFactor()),
		Installed: now,
	}
	return next, s.MeterUsed
}

func trackWindows(prev map[model.WindowKey]float64, active []model.WindowKey, consumedWh float64) map[model.WindowKey]float64 {
	res := make(map[model.WindowKey]float64, len(active))
	for _, k := range active {
		if v, ok := prev[k]; ok {
			res[k] = v
			continue
		}
		res[k] = consumedWh
	}
	return res
}

// RequestContext returns what schedule requests need to be evaluated for the
// session's vehicle.
func (p Params) RequestContext(s Session) model.RequestContext {
	v, _ := p.Vehicle(s.VehicleID)
	return model.RequestContext{
		Vehicle:      v,
		SoC:          s.SoC,
		SoCKnown:     s.SoCKnown,
		LossFactor:   p.lossFactor(),
		ChargePowerW: p.ChargePowerW,
	}
}
