// Package monitor tracks the runtime intervals of an appliance and tells the
// switching side when an interval in which it may run starts or stops.
package monitor

import (
	"sync"
	"time"

	"github.com/kilianp07/chargeplan/core/logger"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/internal/eventbus"
)

// EventKind tells whether running became allowed or ended.
type EventKind int

const (
	Started EventKind = iota
	Stopped
)

func (k EventKind) String() string {
	if k == Started {
		return "started"
	}
	return "stopped"
}

// Event is published when the active interval appears or disappears.
type Event struct {
	ApplianceID string
	Kind        EventKind
	At          time.Time
	// Interval is the interval that started, or the last active one when
	// stopping. Offsets are relative to At.
	Interval model.RuntimeInterval
}

// PlanFunc computes the intervals for now.
type PlanFunc func(now time.Time) []model.RuntimeInterval

// Monitor holds the latest interval plan of one appliance.
type Monitor struct {
	id   string
	plan PlanFunc
	bus  *eventbus.Bus[Event]
	log  logger.Logger

	mu         sync.Mutex
	intervals  []model.RuntimeInterval
	computedAt time.Time
	active     *model.RuntimeInterval
}

// New creates a monitor. bus may be shared between appliances.
func New(id string, plan PlanFunc, bus *eventbus.Bus[Event], log logger.Logger) *Monitor {
	if log == nil {
		log = logger.Nop{}
	}
	if bus == nil {
		bus = eventbus.New[Event]()
	}
	return &Monitor{id: id, plan: plan, bus: bus, log: log}
}

// Bus returns the bus events are published on.
func (m *Monitor) Bus() *eventbus.Bus[Event] { return m.bus }

// UpdateActiveTimeframeInterval recomputes the plan and publishes an event
// when the active interval starts or stops.
func (m *Monitor) UpdateActiveTimeframeInterval(now time.Time) []model.RuntimeInterval {
	intervals := m.plan(now)

	m.mu.Lock()
	m.intervals = intervals
	m.computedAt = now
	prev := m.active
	cur, ok := find(intervals, 0)
	if ok {
		m.active = &cur
	} else {
		m.active = nil
	}
	m.mu.Unlock()

	switch {
	case prev == nil && ok:
		m.log.Infof("appliance %s: interval started %s", m.id, cur)
		m.bus.Publish(Event{ApplianceID: m.id, Kind: Started, At: now, Interval: cur})
	case prev != nil && !ok:
		m.log.Infof("appliance %s: interval stopped", m.id)
		m.bus.Publish(Event{ApplianceID: m.id, Kind: Stopped, At: now, Interval: *prev})
	}
	return intervals
}

// ActiveInterval returns the interval containing now in which the appliance
// may run, based on the last computed plan.
func (m *Monitor) ActiveInterval(now time.Time) (model.RuntimeInterval, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.computedAt.IsZero() {
		return model.RuntimeInterval{}, false
	}
	shift := int(now.Sub(m.computedAt) / time.Second)
	r, ok := find(m.intervals, shift)
	if !ok {
		return r, false
	}
	r.Start -= shift
	r.End -= shift
	return r, true
}

// Intervals returns the last computed plan and the instant it was computed
// for.
func (m *Monitor) Intervals() ([]model.RuntimeInterval, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RuntimeInterval, len(m.intervals))
	copy(out, m.intervals)
	return out, m.computedAt
}

func find(intervals []model.RuntimeInterval, offset int) (model.RuntimeInterval, bool) {
	for _, r := range intervals {
		if r.Sufficient && r.Contains(offset) {
			return r, true
		}
	}
	return model.RuntimeInterval{}, false
}
