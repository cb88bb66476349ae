package charger

import (
	"context"
	"fmt"
	"sync"
)

// CounterReader reads a cumulative energy counter in kWh, such as the total
// energy register of a wallbox or a dedicated meter.
type CounterReader interface {
	ReadCounter(ctx context.Context) (float64, error)
}

// PollingEnergyMeter turns a cumulative counter into an EnergyMeter. Only
// energy counted between Start and Stop accumulates.
type PollingEnergyMeter struct {
	reader CounterReader

	mu          sync.Mutex
	running     bool
	basePending bool
	base        float64
	segment     float64
	accumulated float64
}

// NewPollingEnergyMeter returns a stopped meter reading from r.
func NewPollingEnergyMeter(r CounterReader) *PollingEnergyMeter {
	return &PollingEnergyMeter{reader: r}
}

// Start opens a metering segment. When the counter cannot be read the segment
// starts at the next successful read.
func (m *PollingEnergyMeter) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.segment = 0
	v, err := m.reader.ReadCounter(ctx)
	if err != nil {
		m.basePending = true
		return
	}
	m.base = v
	m.basePending = false
}

// Stop closes the current segment and keeps its energy.
func (m *PollingEnergyMeter) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if v, err := m.reader.ReadCounter(ctx); err == nil && !m.basePending {
		m.segment = positive(v - m.base)
	}
	m.accumulated += m.segment
	m.segment = 0
	m.running = false
}

// Reset discards the accumulated energy.
func (m *PollingEnergyMeter) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accumulated = 0
	m.segment = 0
	if m.running {
		if v, err := m.reader.ReadCounter(ctx); err == nil {
			m.base = v
			m.basePending = false
		} else {
			m.basePending = true
		}
	}
}

// Energy implements EnergyMeter.
func (m *PollingEnergyMeter) Energy(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return m.accumulated, nil
	}
	v, err := m.reader.ReadCounter(ctx)
	if err != nil {
		return m.accumulated + m.segment, fmt.Errorf("read counter: %w", err)
	}
	if m.basePending {
		m.base = v
		m.basePending = false
	}
	m.segment = positive(v - m.base)
	return m.accumulated + m.segment, nil
}

// Running reports whether a segment is open.
func (m *PollingEnergyMeter) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// a counter that went backwards was replaced or wrapped
func positive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
