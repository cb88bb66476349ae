package charger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargeplan/core/model"
)

type rig struct {
	c       *Charger
	vehicle *fakeVehicle
	counter *fakeCounter
	meter   *spyMeter
	trans   []Transition
}

func newRig(t *testing.T, p Params, opts ...Option) *rig {
	t.Helper()
	r := &rig{vehicle: &fakeVehicle{}, counter: &fakeCounter{}}
	r.meter = &spyMeter{PollingEnergyMeter: NewPollingEnergyMeter(r.counter)}
	opts = append(opts, WithTransitionHandler(func(tr Transition) { r.trans = append(r.trans, tr) }))
	c, err := New("F-001", p, r.vehicle, r.meter, opts...)
	require.NoError(t, err)
	r.c = c
	return r
}

func intPtr(v int) *int { return &v }

func TestChargerOptionalDemandCycle(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, testParams())

	r.c.Update(ctx, today(9, 50), nil)
	assert.Equal(t, model.StateNotConnected, r.c.Session().State)

	r.counter.set(10)
	r.vehicle.set(true, false)
	s := r.c.Update(ctx, today(9, 55), nil)
	assert.Equal(t, model.StateConnected, s.State)
	assert.InDelta(t, 44000, s.Default.MaxWh, 0.01)

	r.c.SetApplianceState(ctx, today(10, 0), true, intPtr(4000), false, "Switch on")
	r.vehicle.set(true, true)
	s = r.c.Update(ctx, today(10, 0), nil)
	assert.Equal(t, model.StateCharging, s.State)
	assert.Equal(t, 1, r.meter.starts)
	assert.Equal(t, 4000, s.PowerW)

	r.counter.set(14)
	s = r.c.Update(ctx, today(11, 0), nil)
	_, remaining := s.Active().Remaining(s.ConsumedWh)
	assert.InDelta(t, 40000, remaining, 0.01)

	r.counter.set(18)
	r.c.SetApplianceState(ctx, today(12, 0), false, nil, false, "Switch off")
	r.vehicle.set(true, false)
	s = r.c.Update(ctx, today(12, 0), nil)
	assert.Equal(t, model.StateInterrupted, s.State)
	assert.Equal(t, 1, r.meter.stops)
	assert.Equal(t, 0, r.meter.resets)
	e, err := r.meter.Energy(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 8, e, 0.01)

	r.c.SetApplianceState(ctx, today(13, 0), true, intPtr(6000), false, "Switch on")
	r.vehicle.set(true, true)
	s = r.c.Update(ctx, today(13, 0), nil)
	assert.Equal(t, model.StateCharging, s.State)
	e, _ = r.meter.Energy(ctx)
	assert.InDelta(t, 8, e, 0.01)

	r.counter.set(24)
	s = r.c.Update(ctx, today(14, 0), nil)
	_, remaining = s.Active().Remaining(s.ConsumedWh)
	assert.InDelta(t, 30000, remaining, 0.01)

	r.counter.set(30)
	r.vehicle.set(true, false)
	s = r.c.Update(ctx, today(15, 0), nil)
	assert.True(t, r.c.IsChargingCompleted())
	assert.InDelta(t, 20000, s.ConsumedWh, 0.01)
	e, _ = r.meter.Energy(ctx)
	assert.InDelta(t, 20, e, 0.01)
	assert.Equal(t, 0, r.meter.resets)

	r.vehicle.set(false, false)
	r.c.Update(ctx, today(16, 0), nil)
	last := r.trans[len(r.trans)-1]
	assert.Equal(t, model.StateCompleted, last.From)
	assert.Equal(t, model.StateNotConnected, last.To)
	assert.InDelta(t, 20000, last.ConsumedWh, 0.01)
	assert.Equal(t, today(9, 55), last.ConnectedAt)

	r.vehicle.set(true, false)
	s = r.c.Update(ctx, today(17, 0), nil)
	assert.Equal(t, model.StateConnected, s.State)
	assert.Equal(t, 1, r.meter.resets)
	assert.Zero(t, s.ConsumedWh)
}

func TestChargerUnreadableSoCFallsBackToOptional(t *testing.T) {
	ctx := context.Background()
	p := testParams()
	p.Vehicles[0].MaxSoC = 80
	r := newRig(t, p, WithSoCSource(&fakeSoC{err: errOffline}))
	r.vehicle.set(true, false)
	s := r.c.Update(ctx, today(9, 55), nil)
	assert.False(t, s.SoCKnown)
	assert.Equal(t, model.DemandOptional, s.Default.Kind)
	assert.InDelta(t, 35200, s.Default.MaxWh, 0.01)
}

func TestChargerSoCAboveLimitNeedsNothing(t *testing.T) {
	ctx := context.Background()
	p := testParams()
	p.Vehicles[0].MaxSoC = 80
	r := newRig(t, p, WithSoCSource(&fakeSoC{value: 84.5}))
	r.vehicle.set(true, false)
	s := r.c.Update(ctx, today(9, 55), nil)
	assert.Equal(t, 84, s.SoC)
	assert.Zero(t, s.Default.MaxWh)
}

func TestChargerMeterFailureKeepsConsumedEnergy(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, testParams())
	r.vehicle.set(true, true)
	r.c.Update(ctx, today(10, 0), nil)
	r.counter.set(3)
	s := r.c.Update(ctx, today(10, 30), nil)
	assert.InDelta(t, 3000, s.ConsumedWh, 0.01)

	r.counter.fail(errOffline)
	s = r.c.Update(ctx, today(11, 0), nil)
	assert.Equal(t, model.StateCharging, s.State)
	assert.InDelta(t, 3000, s.ConsumedWh, 0.01)
}

func TestChargerSetEnergyDemand(t *testing.T) {
	ctx := context.Background()
	p := testParams()
	p.ChargePowerW = 1000
	r := newRig(t, p)

	err := r.c.SetEnergyDemand(ctx, today(11, 0), DemandRequest{CurrentSoC: 40, TargetSoC: 50})
	assert.ErrorIs(t, err, ErrNotConnected)

	r.vehicle.set(true, false)
	r.c.Update(ctx, today(10, 0), nil)

	err = r.c.SetEnergyDemand(ctx, today(11, 0), DemandRequest{VehicleID: "other", TargetSoC: 50})
	assert.ErrorIs(t, err, ErrUnknownVehicle)

	require.NoError(t, r.c.SetEnergyDemand(ctx, today(11, 0), DemandRequest{VehicleID: "ev1", CurrentSoC: 40, TargetSoC: 50}))
	s := r.c.Session()
	require.NotNil(t, s.Explicit)
	assert.True(t, s.SwitchedOn)
	assert.InDelta(t, 4400, s.Explicit.MaxWh, 0.01)
	assert.Equal(t, today(11, 0).Add(15840e9), s.Explicit.Deadline)

	r.vehicle.set(true, true)
	r.c.Update(ctx, today(11, 0), nil)
	r.vehicle.set(true, false)
	s = r.c.Update(ctx, today(13, 0), nil)
	assert.Equal(t, model.StateCompleted, s.State)
}

func TestChargerInvalidEnergyDemand(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, testParams())
	r.vehicle.set(true, false)
	r.c.Update(ctx, today(10, 0), nil)
	assert.Error(t, r.c.SetEnergyDemand(ctx, today(10, 0), DemandRequest{MinWh: 5000, MaxWh: 1000}))
	assert.Error(t, r.c.SetEnergyDemand(ctx, today(10, 0), DemandRequest{CurrentSoC: 20, TargetSoC: 120}))
}

func TestChargerManualRestartAfterCompletion(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, testParams())
	r.c.SetApplianceState(ctx, today(10, 0), true, nil, false, "on")
	r.vehicle.set(true, true)
	r.c.Update(ctx, today(10, 0), nil)
	r.counter.set(5)
	r.vehicle.set(true, false)
	r.c.Update(ctx, today(11, 0), nil)
	require.True(t, r.c.IsChargingCompleted())

	r.c.SetApplianceState(ctx, today(12, 0), true, nil, true, "timer")
	assert.True(t, r.c.IsChargingCompleted(), "timer switch must not restart a completed cycle")

	r.c.SetApplianceState(ctx, today(12, 0), true, nil, false, "manual")
	s := r.c.Session()
	assert.Equal(t, model.StateConnected, s.State)
	assert.Equal(t, 1, r.meter.resets)
	assert.Zero(t, s.ConsumedWh)
}

func TestNewValidatesCollaborators(t *testing.T) {
	_, err := New("x", testParams(), nil, &spyMeter{})
	assert.Error(t, err)
	_, err = New("x", Params{}, &fakeVehicle{}, &spyMeter{})
	assert.Error(t, err)
}

// blockingSoC holds StateOfCharge until release is closed.
type blockingSoC struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSoC) StateOfCharge(context.Context) (float64, error) {
	close(b.entered)
	<-b.release
	return 70, nil
}

func TestUpdateReadsSoCWithoutLockingSession(t *testing.T) {
	src := &blockingSoC{entered: make(chan struct{}), release: make(chan struct{})}
	r := newRig(t, testParams(), WithSoCSource(src))
	r.vehicle.set(true, false)

	done := make(chan Session, 1)
	go func() { done <- r.c.Update(context.Background(), today(9, 55), nil) }()
	<-src.entered

	state := make(chan model.ChargerState, 1)
	go func() { state <- r.c.Session().State }()
	select {
	case st := <-state:
		assert.Equal(t, model.StateNotConnected, st)
	case <-time.After(time.Second):
		t.Fatal("session stayed locked while the state of charge was read")
	}

	close(src.release)
	s := <-done
	assert.Equal(t, model.StateConnected, s.State)
	assert.True(t, s.SoCKnown)
	assert.Equal(t, 70, s.SoC)
}

func TestChargerCompletesBelowHalfWattHour(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, testParams())
	r.vehicle.set(true, false)
	r.c.Update(ctx, today(9, 55), nil)
	r.vehicle.set(true, true)
	s := r.c.Update(ctx, today(10, 0), nil)
	require.Equal(t, model.StateCharging, s.State)

	r.counter.set(43.9997)
	s = r.c.Update(ctx, today(15, 0), nil)
	_, remaining := s.Active().Remaining(s.ConsumedWh)
	assert.Greater(t, remaining, 0.0)
	assert.Equal(t, 0, model.WholeWh(remaining))
	assert.True(t, r.c.IsChargingCompleted())
	assert.Equal(t, 1, r.meter.stops)
}
