package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/clock"
	coremetrics "github.com/kilianp07/chargeplan/core/metrics"
	"github.com/kilianp07/chargeplan/core/model"
)

type brokenSwitch struct{ calls int }

func (b *brokenSwitch) SetSwitch(context.Context, bool, int) error {
	b.calls++
	return errors.New("wallbox unreachable")
}

type capturedError struct {
	err  error
	tags map[string]string
}

type recordingReporter struct{ captured []capturedError }

func (r *recordingReporter) CaptureError(err error, tags map[string]string) {
	r.captured = append(r.captured, capturedError{err: err, tags: tags})
}
func (r *recordingReporter) Recover()            {}
func (r *recordingReporter) Flush(time.Duration) {}

func TestSwitcherReportsFailedSwitch(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 5, 9, 55, 0, 0, time.UTC))
	rep := &recordingReporter{}
	svc, err := New(newConfig(t, simAppliance("F-001")),
		WithClock(clk), WithMetrics(coremetrics.NopSink{}), WithSessionLog(&recordingStore{}),
		WithLoggerFactory(nopLogs), WithReporter(rep))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	sw := &brokenSwitch{}
	svc.Switcher().switches["F-001"] = sw

	svc.TickAll(ctx)
	svc.Switcher().Drain(ctx)

	assert.Equal(t, 1, sw.calls)
	require.Len(t, rep.captured, 1)
	assert.ErrorContains(t, rep.captured[0].err, "wallbox unreachable")
	assert.Equal(t, "F-001", rep.captured[0].tags["appliance_id"])

	a, err := svc.Registry().Get("F-001")
	require.NoError(t, err)
	s := a.Session()
	assert.Equal(t, model.StateConnected, s.State)
	assert.False(t, s.SwitchedOn, "a failed switch is not reported to the charger")
}

func TestSwitcherIgnoresAppliancesWithoutSwitch(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 5, 9, 55, 0, 0, time.UTC))
	svc, err := New(newConfig(t, simAppliance("F-001")),
		WithClock(clk), WithMetrics(coremetrics.NopSink{}), WithSessionLog(&recordingStore{}), WithLoggerFactory(nopLogs))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	delete(svc.Switcher().switches, "F-001")
	svc.TickAll(ctx)
	svc.Switcher().Drain(ctx)

	a, err := svc.Registry().Get("F-001")
	require.NoError(t, err)
	assert.False(t, a.Session().SwitchedOn)
}

// observingSwitch records whether the charger was already marked switched on
// when the hardware call was made.
type observingSwitch struct {
	next charger.Switch
	a    *appliance.Appliance
	seen []bool
}

func (o *observingSwitch) SetSwitch(ctx context.Context, on bool, powerW int) error {
	o.seen = append(o.seen, o.a.Session().SwitchedOn)
	return o.next.SetSwitch(ctx, on, powerW)
}

func TestSwitcherRecordsSwitchOffBeforeActuating(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 5, 9, 55, 0, 0, time.UTC))
	svc, err := New(newConfig(t, simAppliance("F-001")),
		WithClock(clk), WithMetrics(coremetrics.NopSink{}), WithSessionLog(&recordingStore{}), WithLoggerFactory(nopLogs))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	a, err := svc.Registry().Get("F-001")
	require.NoError(t, err)
	sw := &observingSwitch{next: svc.Switcher().switches["F-001"], a: a}
	svc.Switcher().switches["F-001"] = sw

	svc.TickAll(ctx)
	svc.Switcher().Drain(ctx)
	require.True(t, a.Session().SwitchedOn)

	clk.Set(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	svc.TickAll(ctx)
	clk.Set(time.Date(2025, 3, 5, 12, 30, 0, 0, time.UTC))
	svc.TickAll(ctx)
	svc.Switcher().Drain(ctx)

	assert.Equal(t, []bool{false, false}, sw.seen)
	assert.False(t, a.Session().SwitchedOn)
}

func TestSwitcherOverride(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 5, 9, 55, 0, 0, time.UTC))
	svc, err := New(newConfig(t, simAppliance("F-001"), simAppliance("F-002")),
		WithClock(clk), WithMetrics(coremetrics.NopSink{}), WithSessionLog(&recordingStore{}), WithLoggerFactory(nopLogs))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()
	svc.TickAll(ctx)

	actuated, err := svc.Switcher().Override(ctx, "F-001", true, nil, "by hand")
	require.NoError(t, err)
	assert.True(t, actuated)
	a, err := svc.Registry().Get("F-001")
	require.NoError(t, err)
	assert.True(t, a.Session().SwitchedOn)
	assert.Equal(t, 11000, a.Session().PowerW)

	delete(svc.Switcher().switches, "F-002")
	actuated, err = svc.Switcher().Override(ctx, "F-002", true, nil, "by hand")
	require.NoError(t, err)
	assert.False(t, actuated)
	b, err := svc.Registry().Get("F-002")
	require.NoError(t, err)
	assert.True(t, b.Session().SwitchedOn)

	_, err = svc.Switcher().Override(ctx, "nope", true, nil, "")
	assert.ErrorIs(t, err, appliance.ErrUnknownAppliance)

	svc.Switcher().switches["F-001"] = &brokenSwitch{}
	actuated, err = svc.Switcher().Override(ctx, "F-001", false, nil, "by hand")
	assert.Error(t, err)
	assert.False(t, actuated)
	assert.False(t, a.Session().SwitchedOn, "a failed switch off stays recorded")
}
