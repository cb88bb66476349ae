package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/chargeplan/core/metrics"
)

// PromSink records charger activity in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
	consumed    *prometheus.GaugeVec
	remaining   *prometheus.GaugeVec
	intervals   *prometheus.GaugeVec
	active      *prometheus.GaugeVec
}

// NewPromSink registers charger metrics on the default Prometheus registerer.
// The Prometheus server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chargeplan_state_transitions_total",
			Help: "Total number of charger state transitions",
		}, []string{"appliance_id", "from", "to"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chargeplan_charger_state",
			Help: "Current charger state (0 not connected, 1 connected, 2 charging, 3 interrupted, 4 completed)",
		}, []string{"appliance_id"}),
		consumed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chargeplan_consumed_wh",
			Help: "Energy consumed in the current charge cycle",
		}, []string{"appliance_id"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chargeplan_remaining_max_wh",
			Help: "Maximum energy still wanted in the current charge cycle",
		}, []string{"appliance_id"}),
		intervals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chargeplan_planned_intervals",
			Help: "Number of planned runtime intervals",
		}, []string{"appliance_id"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chargeplan_interval_active",
			Help: "1 while the appliance may run",
		}, []string{"appliance_id"}),
	}
	var err error
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	for _, g := range []**prometheus.GaugeVec{&s.state, &s.consumed, &s.remaining, &s.intervals, &s.active} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register returns the already registered collector when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordChargerState counts the transition and updates the state gauge.
func (s *PromSink) RecordChargerState(ev coremetrics.ChargerStateEvent) error {
	s.transitions.WithLabelValues(ev.ApplianceID, ev.From.String(), ev.To.String()).Inc()
	s.state.WithLabelValues(ev.ApplianceID).Set(float64(ev.To))
	return nil
}

// RecordPlan updates the per appliance gauges.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.state.WithLabelValues(ev.ApplianceID).Set(float64(ev.State))
	s.consumed.WithLabelValues(ev.ApplianceID).Set(ev.ConsumedWh)
	s.remaining.WithLabelValues(ev.ApplianceID).Set(ev.RemainingMaxWh)
	s.intervals.WithLabelValues(ev.ApplianceID).Set(float64(len(ev.Intervals)))
	active := 0.0
	if ev.Active {
		active = 1
	}
	s.active.WithLabelValues(ev.ApplianceID).Set(active)
	return nil
}
