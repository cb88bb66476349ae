package model

import (
	"math"
	"time"
)

// DemandKind identifies how a demand was created.
type DemandKind int

const (
	// DemandOptional charges up to the vehicle limit without a deadline.
	DemandOptional DemandKind = iota
	// DemandSoC is an optional demand bounded by a known state of charge.
	DemandSoC
	// DemandExplicit was requested by the user for the current connection.
	DemandExplicit
)

func (k DemandKind) String() string {
	switch k {
	case DemandOptional:
		return "optional"
	case DemandSoC:
		return "soc"
	case DemandExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Demand is the energy a charge cycle has to deliver.
type Demand struct {
	Kind  DemandKind `json:"kind"`
	MinWh float64    `json:"min_wh"`
	MaxWh float64    `json:"max_wh"`
	// BaselineWh is the session energy already consumed when the demand was
	// installed. Only energy consumed afterwards counts against it.
	BaselineWh float64   `json:"baseline_wh"`
	Installed  time.Time `json:"installed"`
	// Deadline is zero for demands using the sliding default horizon.
	Deadline time.Time `json:"deadline,omitempty"`
}

// Remaining returns the energy still to be delivered given the session
// energy consumed so far.
func (d Demand) Remaining(consumedWh float64) (minWh, maxWh float64) {
	used := consumedWh - d.BaselineWh
	if used < 0 {
		used = 0
	}
	minWh = d.MinWh - used
	if minWh < 0 {
		minWh = 0
	}
	maxWh = d.MaxWh - used
	if maxWh < 0 {
		maxWh = 0
	}
	return minWh, maxWh
}

// Expired reports whether the deadline has passed at t.
func (d Demand) Expired(t time.Time) bool {
	return !d.Deadline.IsZero() && !t.Before(d.Deadline)
}

// WholeWh rounds energy to the whole watt-hours plans are expressed in.
// Anything below half a watt-hour counts as nothing left to deliver.
func WholeWh(wh float64) int {
	return int(math.Round(wh))
}
