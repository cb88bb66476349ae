package charger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/chargeplan/core/logger"
	"github.com/kilianp07/chargeplan/core/model"
)

// Transition describes a state change of the charger.
type Transition struct {
	ApplianceID string
	VehicleID   string
	From        model.ChargerState
	To          model.ChargerState
	At          time.Time
	ConnectedAt time.Time
	ConsumedWh  float64
}

// EndsCycle reports whether the transition closes a charge cycle, either by
// disconnect or by restarting a completed one. The vehicle, connect time and
// energy of such a transition describe the cycle that ended.
func (t Transition) EndsCycle() bool {
	return t.To == model.StateNotConnected ||
		(t.From == model.StateCompleted && t.To == model.StateConnected)
}

// DemandRequest asks the charger to deliver energy in the current cycle.
// When TargetSoC is set the energy is derived from CurrentSoC and TargetSoC,
// otherwise MinWh and MaxWh are used as given.
type DemandRequest struct {
	VehicleID  string
	CurrentSoC int
	TargetSoC  int
	MinWh      int
	MaxWh      int
	// Deadline is optional. Without it the demand lasts as long as delivering
	// MaxWh takes at the nominal charge power.
	Deadline time.Time
}

// Charger drives a Session from its live collaborators.
type Charger struct {
	id      string
	params  Params
	vehicle VehicleStateSource
	meter   EnergyMeter
	soc     StateOfChargeSource
	log     logger.Logger

	mu           sync.Mutex
	session      Session
	onTransition func(Transition)
}

// Option configures a Charger.
type Option func(*Charger)

// WithSoCSource sets the optional state of charge source.
func WithSoCSource(s StateOfChargeSource) Option {
	return func(c *Charger) { c.soc = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Charger) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTransitionHandler registers a callback invoked after every state
// change, while the charger lock is held.
func WithTransitionHandler(fn func(Transition)) Option {
	return func(c *Charger) { c.onTransition = fn }
}

// New creates a charger for the appliance id.
func New(id string, p Params, vehicle VehicleStateSource, meter EnergyMeter, opts ...Option) (*Charger, error) {
	if vehicle == nil {
		return nil, fmt.Errorf("charger %s: vehicle state source is required", id)
	}
	if meter == nil {
		return nil, fmt.Errorf("charger %s: energy meter is required", id)
	}
	if len(p.Vehicles) == 0 {
		return nil, fmt.Errorf("charger %s: at least one vehicle is required", id)
	}
	c := &Charger{
		id:      id,
		params:  p,
		vehicle: vehicle,
		meter:   meter,
		log:     logger.Nop{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ID returns the appliance id.
func (c *Charger) ID() string { return c.id }

// Params returns the static configuration.
func (c *Charger) Params() Params { return c.params }

// Session returns a copy of the current session.
func (c *Charger) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// IsChargingCompleted reports whether the current cycle is complete.
func (c *Charger) IsChargingCompleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State == model.StateCompleted
}

// Update reads the collaborators and advances the session. activeWindows are
// the schedule windows containing now. Collaborator failures are logged and
// never abort the tick. The state of charge is read before the session is
// locked.
func (c *Charger) Update(ctx context.Context, now time.Time, activeWindows []model.WindowKey) Session {
	connected := c.vehicle.IsVehicleConnected()
	charging := connected && c.vehicle.IsCharging()
	soc, socOK := c.prefetchSoC(ctx, func(s Session) bool { return connected && !s.Connected() })

	c.mu.Lock()
	defer c.mu.Unlock()

	o := Observation{
		Now:           now,
		Connected:     connected,
		Charging:      charging,
		ActiveWindows: activeWindows,
	}
	if c.session.MeterRunning {
		kwh, err := c.meter.Energy(ctx)
		if err != nil {
			c.log.Warnf("appliance %s: energy meter read failed: %v", c.id, err)
		} else {
			o.EnergyKWh, o.EnergyOK = kwh, true
		}
	}
	if connected && !c.session.Connected() {
		o.SoC, o.SoCOK = soc, socOK
	}

	next, actions := Step(c.params, c.session, o)
	c.apply(ctx, actions)
	c.commit(now, next)
	return c.session.clone()
}

// SetApplianceState records a switch of the charger. Switching on a
// completed cycle by hand starts a new one.
func (c *Charger) SetApplianceState(ctx context.Context, now time.Time, on bool, powerW *int, timerControlled bool, reason string) {
	restart := func(s Session) bool { return on && !timerControlled && s.State == model.StateCompleted }
	soc, socOK := c.prefetchSoC(ctx, restart)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Infof("appliance %s: switch %s timer=%t reason=%q", c.id, onOff(on), timerControlled, reason)
	next := c.session.clone()
	next.SwitchedOn = on
	if powerW != nil {
		next.PowerW = *powerW
	}
	if restart(next) {
		var reset bool
		next, reset = Begin(c.params, next, now, soc, socOK, next.VehicleID)
		if reset {
			c.apply(ctx, []Action{ActionResetMeter})
		}
	}
	c.commit(now, next)
}

// SetEnergyDemand installs an explicit demand for the current cycle and
// switches the charger on.
func (c *Charger) SetEnergyDemand(ctx context.Context, now time.Time, req DemandRequest) error {
	v, ok := c.params.Vehicle(req.VehicleID)
	restart := func(s Session) bool { return s.State == model.StateCompleted || s.VehicleID != v.ID }
	var soc float64
	var socOK bool
	if ok {
		soc, socOK = c.prefetchSoC(ctx, func(s Session) bool { return s.Connected() && restart(s) })
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Connected() {
		return ErrNotConnected
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, req.VehicleID)
	}

	var minWh, maxWh float64
	if req.TargetSoC > 0 {
		if req.TargetSoC > 100 || req.CurrentSoC < 0 || req.CurrentSoC > 100 {
			return fmt.Errorf("soc request %d%% -> %d%% out of range", req.CurrentSoC, req.TargetSoC)
		}
		e := v.EnergyForSoC(req.CurrentSoC, req.TargetSoC, c.params.lossFactor())
		minWh, maxWh = e, e
	} else {
		if req.MinWh < 0 || req.MaxWh < req.MinWh {
			return fmt.Errorf("energy request %d-%d Wh is invalid", req.MinWh, req.MaxWh)
		}
		minWh, maxWh = float64(req.MinWh), float64(req.MaxWh)
	}

	next := c.session.clone()
	if restart(next) {
		if next.MeterRunning {
			c.apply(ctx, []Action{ActionStopMeter})
			next.MeterRunning = false
		}
		var reset bool
		next, reset = Begin(c.params, next, now, soc, socOK, v.ID)
		if reset {
			c.apply(ctx, []Action{ActionResetMeter})
		}
	}

	deadline := req.Deadline
	if deadline.IsZero() && c.params.ChargePowerW > 0 {
		secs := math.Round(maxWh / c.params.ChargePowerW * 3600)
		deadline = now.Add(time.Duration(secs) * time.Second)
	}
	next.Explicit = &model.Demand{
		Kind:       model.DemandExplicit,
		MinWh:      minWh,
		MaxWh:      maxWh,
		BaselineWh: next.ConsumedWh,
		Installed:  now,
		Deadline:   deadline,
	}
	next.SwitchedOn = true
	c.log.Infof("appliance %s: energy demand %.0f-%.0f Wh for %s until %s",
		c.id, minWh, maxWh, v.ID, deadline.Format(time.RFC3339))
	c.commit(now, next)
	return nil
}

// prefetchSoC reads the state of charge without holding the lock when need
// reports that the current session will begin a new cycle.
func (c *Charger) prefetchSoC(ctx context.Context, need func(Session) bool) (float64, bool) {
	if c.soc == nil || !need(c.Session()) {
		return 0, false
	}
	return c.readSoC(ctx)
}

func (c *Charger) readSoC(ctx context.Context) (float64, bool) {
	if c.soc == nil {
		return 0, false
	}
	v, err := c.soc.StateOfCharge(ctx)
	if err != nil {
		c.log.Warnf("appliance %s: state of charge unavailable: %v", c.id, err)
		return 0, false
	}
	return v, true
}

func (c *Charger) apply(ctx context.Context, actions []Action) {
	for _, a := range actions {
		switch a {
		case ActionStartMeter:
			c.meter.Start(ctx)
		case ActionStopMeter:
			c.meter.Stop(ctx)
		case ActionResetMeter:
			c.meter.Reset(ctx)
		}
		c.log.Debugw("meter action", map[string]any{"appliance": c.id, "action": a.String()})
	}
}

func (c *Charger) commit(now time.Time, next Session) {
	prev := c.session
	c.session = next
	if prev.State == next.State {
		return
	}
	t := Transition{
		ApplianceID: c.id,
		VehicleID:   prev.VehicleID,
		From:        prev.State,
		To:          next.State,
		At:          now,
		ConnectedAt: prev.ConnectedAt,
		ConsumedWh:  prev.ConsumedWh,
	}
	if !t.EndsCycle() {
		t.VehicleID = next.VehicleID
		t.ConnectedAt = next.ConnectedAt
		t.ConsumedWh = next.ConsumedWh
	}
	c.log.Infof("appliance %s: %s -> %s (consumed %.0f Wh)", c.id, t.From, t.To, t.ConsumedWh)
	if c.onTransition != nil {
		c.onTransition(t)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
