package app

import (
	"context"
	"math"

	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/clock"
	"github.com/kilianp07/chargeplan/core/logger"
	"github.com/kilianp07/chargeplan/core/monitor"
	"github.com/kilianp07/chargeplan/core/reporting"
	"github.com/kilianp07/chargeplan/internal/eventbus"
)

// Switcher turns chargers on and off when their monitor reports that an
// interval started or stopped, and reports the switch back to the
// appliance. Appliances without a switch are only monitored.
type Switcher struct {
	registry *appliance.Registry
	switches map[string]charger.Switch
	clock    clock.Clock
	log      logger.Logger
	events   <-chan monitor.Event
	bus      *eventbus.Bus[monitor.Event]
	reporter reporting.Reporter
}

// NewSwitcher subscribes to bus. Events are handled by Run or Drain.
func NewSwitcher(bus *eventbus.Bus[monitor.Event], registry *appliance.Registry, switches map[string]charger.Switch, clk clock.Clock, log logger.Logger) *Switcher {
	if log == nil {
		log = logger.Nop{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	size := 8 + 2*len(registry.All())
	return &Switcher{
		registry: registry,
		switches: switches,
		clock:    clk,
		log:      log,
		events:   bus.SubscribeBuffer(size),
		bus:      bus,
		reporter: reporting.Nop{},
	}
}

// SetReporter sets where failed switches are reported.
func (s *Switcher) SetReporter(r reporting.Reporter) {
	if r != nil {
		s.reporter = r
	}
}

// Run handles events until ctx is done or the bus is closed.
func (s *Switcher) Run(ctx context.Context) error {
	defer s.reporter.Recover()
	defer s.bus.Unsubscribe(s.events)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.events:
			if !ok {
				return nil
			}
			s.Handle(ctx, ev)
		}
	}
}

// Drain handles the events already queued and returns.
func (s *Switcher) Drain(ctx context.Context) {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.Handle(ctx, ev)
		default:
			return
		}
	}
}

// Handle switches the charger of ev's appliance.
func (s *Switcher) Handle(ctx context.Context, ev monitor.Event) {
	if n := s.bus.Dropped(s.events); n > 0 {
		s.log.Warnf("switch: %d interval events dropped", n)
	}
	sw, ok := s.switches[ev.ApplianceID]
	if !ok {
		s.log.Debugf("appliance %s: interval %s, no switch configured", ev.ApplianceID, ev.Kind)
		return
	}
	a, err := s.registry.Get(ev.ApplianceID)
	if err != nil {
		s.log.Warnf("switch: %v", err)
		return
	}
	on := ev.Kind == monitor.Started
	power := int(math.Round(a.Params().ChargePowerW))
	reason := "interval " + ev.Kind.String() + " " + ev.Interval.String()
	if err := s.actuate(ctx, a, sw, on, power, true, reason); err != nil {
		s.log.Errorf("appliance %s: switch %s failed: %v", ev.ApplianceID, ev.Kind, err)
		s.reporter.CaptureError(err, map[string]string{"appliance_id": ev.ApplianceID, "interval": ev.Kind.String()})
	}
}

// Override switches an appliance by hand. powerW defaults to the configured
// charge power. Appliances without a switch only record the override and
// report actuated false.
func (s *Switcher) Override(ctx context.Context, id string, on bool, powerW *int, reason string) (bool, error) {
	a, err := s.registry.Get(id)
	if err != nil {
		return false, err
	}
	power := int(math.Round(a.Params().ChargePowerW))
	if powerW != nil {
		power = *powerW
	}
	sw, ok := s.switches[id]
	if !ok {
		a.SetApplianceState(ctx, s.clock.Now(), on, powerW, false, reason)
		return false, nil
	}
	if err := s.actuate(ctx, a, sw, on, power, false, reason); err != nil {
		s.log.Errorf("appliance %s: manual switch %s failed: %v", id, onOff(on), err)
		s.reporter.CaptureError(err, map[string]string{"appliance_id": id, "override": onOff(on)})
		return false, err
	}
	return true, nil
}

func (s *Switcher) actuate(ctx context.Context, a *appliance.Appliance, sw charger.Switch, on bool, power int, timerControlled bool, reason string) error {
	var hint *int
	if power > 0 {
		hint = &power
	}
	return a.Switch(ctx, s.clock.Now(), on, hint, timerControlled, reason, func(ctx context.Context) error {
		return sw.SetSwitch(ctx, on, power)
	})
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
