// Package sessionlog records finished charge cycles.
package sessionlog

import (
	"context"
	"time"
)

// Record captures one charge cycle of an appliance.
type Record struct {
	ApplianceID string    `json:"appliance_id"`
	VehicleID   string    `json:"vehicle_id"`
	ConnectedAt time.Time `json:"connected_at"`
	EndedAt     time.Time `json:"ended_at"`
	EnergyWh    float64   `json:"energy_wh"`
	// FinalState is the charger state the cycle ended in.
	FinalState string `json:"final_state"`
}

// Query defines filters for retrieving records. Zero fields match all.
type Query struct {
	Start       time.Time
	End         time.Time
	ApplianceID string
	VehicleID   string
}

// Matches reports whether r passes the filter. Start and End bound EndedAt.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.EndedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.EndedAt.After(q.End) {
		return false
	}
	if q.ApplianceID != "" && r.ApplianceID != q.ApplianceID {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Append(context.Context, Record) error           { return nil }
func (Nop) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                   { return nil }
