// Package appliance ties a charger, its schedules and its running-time
// monitor together behind the API used by hosts such as the HTTP server or
// the tick loop.
package appliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/logger"
	"github.com/kilianp07/chargeplan/core/metrics"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/core/monitor"
	"github.com/kilianp07/chargeplan/core/scheduler"
	"github.com/kilianp07/chargeplan/core/sessionlog"
	"github.com/kilianp07/chargeplan/internal/eventbus"
)

// ErrUnknownAppliance is returned when no appliance has the requested id.
var ErrUnknownAppliance = errors.New("unknown appliance")

// Config is the static description of an appliance.
type Config struct {
	ID        string
	Params    charger.Params
	Schedules []model.Schedule
	Horizon   time.Duration
}

// Deps are the live collaborators of the charger. SoC is optional.
type Deps struct {
	Vehicle charger.VehicleStateSource
	Meter   charger.EnergyMeter
	SoC     charger.StateOfChargeSource
}

// Appliance is one EV charger managed by the service.
type Appliance struct {
	id        string
	charger   *charger.Charger
	schedules []model.Schedule
	horizon   time.Duration
	monitor   *monitor.Monitor
	bus       *eventbus.Bus[monitor.Event]
	metrics   metrics.Sink
	sessions  sessionlog.Store
	log       logger.Logger

	mu      sync.Mutex
	pending []charger.Transition
}

// Option configures an Appliance.
type Option func(*Appliance)

// WithLogger sets the logger used by the appliance and its charger.
func WithLogger(l logger.Logger) Option {
	return func(a *Appliance) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.Sink) Option {
	return func(a *Appliance) {
		if s != nil {
			a.metrics = s
		}
	}
}

// WithSessionLog sets the store finished cycles are recorded to.
func WithSessionLog(s sessionlog.Store) Option {
	return func(a *Appliance) {
		if s != nil {
			a.sessions = s
		}
	}
}

// WithBus publishes monitor events on a shared bus.
func WithBus(b *eventbus.Bus[monitor.Event]) Option {
	return func(a *Appliance) { a.bus = b }
}

// New creates an appliance.
func New(cfg Config, deps Deps, opts ...Option) (*Appliance, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("appliance id is required")
	}
	a := &Appliance{
		id:        cfg.ID,
		schedules: cfg.Schedules,
		horizon:   cfg.Horizon,
		metrics:   metrics.NopSink{},
		sessions:  sessionlog.Nop{},
		log:       logger.Nop{},
	}
	if a.horizon <= 0 {
		a.horizon = scheduler.DefaultHorizon
	}
	for _, o := range opts {
		o(a)
	}
	copts := []charger.Option{
		charger.WithLogger(a.log),
		charger.WithTransitionHandler(func(t charger.Transition) { a.pending = append(a.pending, t) }),
	}
	if deps.SoC != nil {
		copts = append(copts, charger.WithSoCSource(deps.SoC))
	}
	c, err := charger.New(cfg.ID, cfg.Params, deps.Vehicle, deps.Meter, copts...)
	if err != nil {
		return nil, err
	}
	a.charger = c
	a.monitor = monitor.New(cfg.ID, func(now time.Time) []model.RuntimeInterval {
		return a.RuntimeIntervals(now, false)
	}, a.bus, a.log)
	return a, nil
}

// ID returns the appliance id.
func (a *Appliance) ID() string { return a.id }

// Params returns the charger parameters.
func (a *Appliance) Params() charger.Params { return a.charger.Params() }

// Monitor returns the running-time monitor.
func (a *Appliance) Monitor() *monitor.Monitor { return a.monitor }

// Tick updates the charger state and the monitor and returns the new plan.
func (a *Appliance) Tick(ctx context.Context, now time.Time) []model.RuntimeInterval {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.updateState(ctx, now)
	intervals := a.monitor.UpdateActiveTimeframeInterval(now)
	_, active := a.monitor.ActiveInterval(now)
	_, remaining := s.Active().Remaining(s.ConsumedWh)
	if err := a.metrics.RecordPlan(metrics.PlanEvent{
		ApplianceID:    a.id,
		State:          s.State,
		Intervals:      intervals,
		Active:         active,
		ConsumedWh:     s.ConsumedWh,
		RemainingMaxWh: remaining,
		Time:           now,
	}); err != nil {
		a.log.Warnf("appliance %s: record plan: %v", a.id, err)
	}
	return intervals
}

// UpdateState advances the charger state machine without touching the
// monitor.
func (a *Appliance) UpdateState(ctx context.Context, now time.Time) charger.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updateState(ctx, now)
}

func (a *Appliance) updateState(ctx context.Context, now time.Time) charger.Session {
	vehicleID := a.charger.Session().VehicleID
	if vehicleID == "" {
		if v, ok := a.charger.Params().Vehicle(""); ok {
			vehicleID = v.ID
		}
	}
	s := a.charger.Update(ctx, now, scheduler.ActiveWindows(a.schedules, vehicleID, now))
	a.flush(ctx)
	return s
}

// RuntimeIntervals computes the plan for now. With includePast intervals
// already in progress keep their real start.
func (a *Appliance) RuntimeIntervals(now time.Time, includePast bool) []model.RuntimeInterval {
	s := a.charger.Session()
	return scheduler.Plan(scheduler.Input{
		Now:         now,
		Horizon:     a.horizon,
		State:       s.State,
		Schedules:   a.schedules,
		Request:     a.charger.Params().RequestContext(s),
		Demand:      s.Active(),
		ConsumedWh:  s.ConsumedWh,
		Baselines:   s.Baselines,
		IncludePast: includePast,
	})
}

// ActiveInterval returns the interval the appliance may run in now.
func (a *Appliance) ActiveInterval(now time.Time) (model.RuntimeInterval, bool) {
	return a.monitor.ActiveInterval(now)
}

// SetApplianceState records that the charger was switched.
func (a *Appliance) SetApplianceState(ctx context.Context, now time.Time, on bool, powerW *int, timerControlled bool, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.charger.SetApplianceState(ctx, now, on, powerW, timerControlled, reason)
	a.flush(ctx)
}

// Switch drives the charger's switch through actuate and records the switch.
// Switching off is recorded before actuate runs and is kept when actuate
// fails. Switching on is recorded only after actuate succeeded.
func (a *Appliance) Switch(ctx context.Context, now time.Time, on bool, powerW *int, timerControlled bool, reason string, actuate func(context.Context) error) error {
	if !on {
		a.SetApplianceState(ctx, now, false, powerW, timerControlled, reason)
		if err := actuate(ctx); err != nil {
			return fmt.Errorf("switch off: %w", err)
		}
		return nil
	}
	if err := actuate(ctx); err != nil {
		return fmt.Errorf("switch on: %w", err)
	}
	a.SetApplianceState(ctx, now, true, powerW, timerControlled, reason)
	return nil
}

// SetEnergyDemand installs an explicit demand for the connected vehicle.
func (a *Appliance) SetEnergyDemand(ctx context.Context, now time.Time, req charger.DemandRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.charger.SetEnergyDemand(ctx, now, req)
	a.flush(ctx)
	return err
}

// IsChargingCompleted reports whether the current cycle is complete.
func (a *Appliance) IsChargingCompleted() bool { return a.charger.IsChargingCompleted() }

// Session returns a copy of the charger session.
func (a *Appliance) Session() charger.Session { return a.charger.Session() }

// flush reports the transitions collected while the charger was busy.
func (a *Appliance) flush(ctx context.Context) {
	pending := a.pending
	a.pending = nil
	for _, t := range pending {
		if err := a.metrics.RecordChargerState(metrics.ChargerStateEvent{
			ApplianceID: t.ApplianceID,
			VehicleID:   t.VehicleID,
			From:        t.From,
			To:          t.To,
			ConsumedWh:  t.ConsumedWh,
			Time:        t.At,
		}); err != nil {
			a.log.Warnf("appliance %s: record state: %v", a.id, err)
		}
		if rec, ok := cycleRecord(t); ok {
			if err := a.sessions.Append(ctx, rec); err != nil {
				a.log.Warnf("appliance %s: session log: %v", a.id, err)
			}
		}
	}
}

// cycleRecord returns the history record of the cycle t ended, if any.
func cycleRecord(t charger.Transition) (sessionlog.Record, bool) {
	if !t.EndsCycle() {
		return sessionlog.Record{}, false
	}
	return sessionlog.Record{
		ApplianceID: t.ApplianceID,
		VehicleID:   t.VehicleID,
		ConnectedAt: t.ConnectedAt,
		EndedAt:     t.At,
		EnergyWh:    t.ConsumedWh,
		FinalState:  t.From.String(),
	}, true
}
