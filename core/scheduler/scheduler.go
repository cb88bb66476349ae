package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/kilianp07/chargeplan/core/model"
)

// DefaultHorizon is the sliding planning horizon.
const DefaultHorizon = 48 * time.Hour

// Input is everything a plan depends on.
type Input struct {
	Now     time.Time
	Horizon time.Duration
	State   model.ChargerState
	// Schedules are indexed by their position for window baselines.
	Schedules []model.Schedule
	Request   model.RequestContext
	// Demand is the connection level demand in effect.
	Demand     model.Demand
	ConsumedWh float64
	// Baselines holds the consumed energy at the start of active windows.
	Baselines map[model.WindowKey]float64
	// IncludePast keeps the real start of intervals already in progress.
	IncludePast bool
}

func (in Input) horizon() time.Duration {
	if in.Horizon <= 0 {
		return DefaultHorizon
	}
	return in.Horizon
}

// Plan returns the runtime intervals for the input ordered by start offset.
func Plan(in Input) []model.RuntimeInterval {
	if in.State == model.StateNotConnected || in.State == model.StateCompleted {
		return nil
	}
	horizonEnd := in.Now.Add(in.horizon())

	var res []model.RuntimeInterval
	activeWindow := false
	firstUpcoming := -1
	for _, w := range windows(in, horizonEnd) {
		minWh, maxWh := w.minWh, w.maxWh
		if w.active {
			used := 0.0
			if base, ok := in.Baselines[w.key]; ok {
				used = math.Max(0, in.ConsumedWh-base)
			}
			minWh = math.Max(0, minWh-used)
			maxWh = math.Max(0, maxWh-used)
		}
		if round(maxWh) <= 0 {
			continue
		}
		start := offset(in.Now, w.occ.Start)
		if w.active {
			activeWindow = true
			if !in.IncludePast {
				start = 0
			}
		} else if firstUpcoming < 0 || start < firstUpcoming {
			firstUpcoming = start
		}
		res = append(res, model.RuntimeInterval{
			Start:     start,
			End:       offset(in.Now, w.occ.End),
			MinEnergy: round(minWh),
			MaxEnergy: round(maxWh),
		})
	}

	minWh, maxWh := in.Demand.Remaining(in.ConsumedWh)
	if round(maxWh) > 0 {
		end := offset(in.Now, horizonEnd)
		switch {
		case in.Demand.Kind == model.DemandExplicit:
			if !in.Demand.Deadline.IsZero() {
				end = offset(in.Now, in.Demand.Deadline)
			}
			res = append(res, demandInterval(end, minWh, maxWh))
		case activeWindow:
		default:
			if firstUpcoming >= 0 {
				end = firstUpcoming - 1
			}
			res = append(res, demandInterval(end, minWh, maxWh))
		}
	}

	out := res[:0]
	for _, r := range res {
		if r.End > r.Start {
			r.Sufficient = sufficient(r, in.Request.ChargePowerW)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	if len(out) == 0 {
		return nil
	}
	return out
}

// ActiveWindows returns the windows of the enabled schedules applying to the
// vehicle that contain now.
func ActiveWindows(schedules []model.Schedule, vehicleID string, now time.Time) []model.WindowKey {
	var keys []model.WindowKey
	for i, s := range schedules {
		if !applies(s, vehicleID) {
			continue
		}
		for _, occ := range s.Timeframe.Occurrences(now, now.Add(time.Second)) {
			if occ.Contains(now) {
				keys = append(keys, model.WindowKey{Schedule: i, Start: occ.Start.Unix()})
			}
		}
	}
	return keys
}

type window struct {
	key    model.WindowKey
	occ    model.Window
	active bool
	minWh  float64
	maxWh  float64
}

// windows lists the occurrences inside the horizon: the active one and at
// most one upcoming occurrence per day of horizon for each schedule.
func windows(in Input, horizonEnd time.Time) []window {
	perSchedule := int(in.horizon() / (24 * time.Hour))
	if perSchedule < 1 {
		perSchedule = 1
	}
	var res []window
	for i, s := range in.Schedules {
		if !applies(s, in.Request.Vehicle.ID) {
			continue
		}
		minWh, maxWh := s.Request.Energy(in.Request)
		upcoming := 0
		for _, occ := range s.Timeframe.Occurrences(in.Now, horizonEnd) {
			active := occ.Contains(in.Now)
			if !active {
				if upcoming == perSchedule {
					continue
				}
				upcoming++
			}
			res = append(res, window{
				key:    model.WindowKey{Schedule: i, Start: occ.Start.Unix()},
				occ:    occ,
				active: active,
				minWh:  minWh,
				maxWh:  maxWh,
			})
		}
	}
	return res
}

func applies(s model.Schedule, vehicleID string) bool {
	return s.Enabled && s.Timeframe != nil && s.Request != nil && s.Request.AppliesTo(vehicleID)
}

func demandInterval(end int, minWh, maxWh float64) model.RuntimeInterval {
	return model.RuntimeInterval{Start: 0, End: end, MinEnergy: round(minWh), MaxEnergy: round(maxWh)}
}

// sufficient reports whether the interval can still deliver its minimum
// energy. Intervals already running are always considered sufficient.
func sufficient(r model.RuntimeInterval, powerW float64) bool {
	if r.Start <= 0 || powerW <= 0 {
		return true
	}
	return float64(r.Duration())*powerW/3600 >= float64(r.MinEnergy)
}

func offset(now, t time.Time) int {
	return int(t.Sub(now) / time.Second)
}

func round(wh float64) int {
	return model.WholeWh(wh)
}
