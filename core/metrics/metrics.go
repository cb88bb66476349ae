package metrics

import (
	"time"

	"github.com/kilianp07/chargeplan/core/model"
)

// ChargerStateEvent is recorded on every charger state transition.
type ChargerStateEvent struct {
	ApplianceID string
	VehicleID   string
	From        model.ChargerState
	To          model.ChargerState
	ConsumedWh  float64
	Time        time.Time
}

// PlanEvent is a snapshot of an appliance after a tick.
type PlanEvent struct {
	ApplianceID    string
	State          model.ChargerState
	Intervals      []model.RuntimeInterval
	Active         bool
	ConsumedWh     float64
	RemainingMaxWh float64
	Time           time.Time
}

// Sink records charger activity for observability purposes.
type Sink interface {
	RecordChargerState(ev ChargerStateEvent) error
	RecordPlan(ev PlanEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordChargerState(ChargerStateEvent) error { return nil }
func (NopSink) RecordPlan(PlanEvent) error                 { return nil }

// MultiSink fans out events to several sinks. The first error is returned
// after every sink has been called.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordChargerState(ev ChargerStateEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordChargerState(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordPlan(ev PlanEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordPlan(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes the sinks that hold connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
