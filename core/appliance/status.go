package appliance

import (
	"time"

	"github.com/kilianp07/chargeplan/core/model"
)

// Status is a snapshot of an appliance for API consumers.
type Status struct {
	ID             string                  `json:"id"`
	State          model.ChargerState      `json:"state"`
	VehicleID      string                  `json:"vehicle_id,omitempty"`
	ConnectedAt    *time.Time              `json:"connected_at,omitempty"`
	SoC            *int                    `json:"soc,omitempty"`
	SwitchedOn     bool                    `json:"switched_on"`
	PowerW         int                     `json:"power_w,omitempty"`
	ConsumedWh     float64                 `json:"consumed_wh"`
	Demand         string                  `json:"demand,omitempty"`
	RemainingMinWh float64                 `json:"remaining_min_wh"`
	RemainingMaxWh float64                 `json:"remaining_max_wh"`
	Completed      bool                    `json:"charging_completed"`
	Active         *model.RuntimeInterval  `json:"active_interval,omitempty"`
	Intervals      []model.RuntimeInterval `json:"intervals"`
	Time           time.Time               `json:"time"`
}

// Status returns the state of the appliance at now.
func (a *Appliance) Status(now time.Time) Status {
	s := a.charger.Session()
	st := Status{
		ID:         a.id,
		State:      s.State,
		SwitchedOn: s.SwitchedOn,
		PowerW:     s.PowerW,
		Completed:  s.State == model.StateCompleted,
		Intervals:  a.RuntimeIntervals(now, false),
		Time:       now,
	}
	if st.Intervals == nil {
		st.Intervals = []model.RuntimeInterval{}
	}
	if s.Connected() {
		st.VehicleID = s.VehicleID
		connected := s.ConnectedAt
		st.ConnectedAt = &connected
		st.ConsumedWh = s.ConsumedWh
		d := s.Active()
		st.Demand = d.Kind.String()
		st.RemainingMinWh, st.RemainingMaxWh = d.Remaining(s.ConsumedWh)
		if s.SoCKnown {
			soc := s.SoC
			st.SoC = &soc
		}
	}
	if r, ok := a.monitor.ActiveInterval(now); ok {
		st.Active = &r
	}
	return st
}
