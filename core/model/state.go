package model

import "fmt"

// ChargerState is the lifecycle state of a charger and the vehicle plugged
// into it.
type ChargerState int

const (
	StateNotConnected ChargerState = iota
	StateConnected
	StateCharging
	StateInterrupted
	StateCompleted
)

// String returns a human-readable representation of the state.
func (s ChargerState) String() string {
	switch s {
	case StateNotConnected:
		return "not_connected"
	case StateConnected:
		return "connected"
	case StateCharging:
		return "charging"
	case StateInterrupted:
		return "interrupted"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s ChargerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *ChargerState) UnmarshalText(b []byte) error {
	for c := StateNotConnected; c <= StateCompleted; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown charger state %q", b)
}
