package charger

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeVehicle struct {
	mu        sync.Mutex
	connected bool
	charging  bool
}

func (f *fakeVehicle) set(connected, charging bool) {
	f.mu.Lock()
	f.connected, f.charging = connected, charging
	f.mu.Unlock()
}

func (f *fakeVehicle) IsVehicleConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeVehicle) IsCharging() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charging
}

type fakeCounter struct {
	mu    sync.Mutex
	value float64
	err   error
}

func (f *fakeCounter) set(v float64) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

func (f *fakeCounter) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeCounter) ReadCounter(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// spyMeter counts the calls made on the wrapped meter.
type spyMeter struct {
	*PollingEnergyMeter
	starts, stops, resets int
}

func (s *spyMeter) Start(ctx context.Context) { s.starts++; s.PollingEnergyMeter.Start(ctx) }
func (s *spyMeter) Stop(ctx context.Context)  { s.stops++; s.PollingEnergyMeter.Stop(ctx) }
func (s *spyMeter) Reset(ctx context.Context) { s.resets++; s.PollingEnergyMeter.Reset(ctx) }

type fakeSoC struct {
	value float64
	err   error
}

func (f *fakeSoC) StateOfCharge(context.Context) (float64, error) { return f.value, f.err }

var errOffline = errors.New("offline")

// today returns the given wall clock time on a fixed Wednesday.
func today(h, m int) time.Time {
	return time.Date(2025, 3, 5, h, m, 0, 0, time.UTC)
}
