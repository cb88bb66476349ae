package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargeplan/app/plugins"
	"github.com/kilianp07/chargeplan/config"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/clock"
	"github.com/kilianp07/chargeplan/core/factory"
	"github.com/kilianp07/chargeplan/core/logger"
	coremetrics "github.com/kilianp07/chargeplan/core/metrics"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/core/sessionlog"
)

func nopLogs(string) logger.Logger { return logger.Nop{} }

func simAppliance(id string) config.ApplianceConfig {
	return config.ApplianceConfig{
		ID:           id,
		ChargePowerW: 11000,
		Vehicles:     []model.Vehicle{{ID: "ev1", BatteryCapacityWh: 40000}},
		Schedules: []model.ScheduleConfig{{
			Timeframe: model.TimeframeConfig{Type: "day", Start: "10:00", End: "12:00"},
			Request:   model.RequestConfig{Type: "energy", Min: 5000, Max: 5000},
		}},
		Device: factory.ModuleConfig{Type: "sim", Conf: map[string]any{"initial_soc": 50}},
	}
}

func newConfig(t *testing.T, appliances ...config.ApplianceConfig) *config.Config {
	t.Helper()
	cfg := &config.Config{Timezone: "UTC", Appliances: appliances}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

type recordingStore struct{ recs []sessionlog.Record }

func (s *recordingStore) Append(_ context.Context, r sessionlog.Record) error {
	s.recs = append(s.recs, r)
	return nil
}
func (s *recordingStore) Query(context.Context, sessionlog.Query) ([]sessionlog.Record, error) {
	return s.recs, nil
}
func (s *recordingStore) Close() error { return nil }

func TestServiceSwitchesSimulatedCharger(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 5, 9, 55, 0, 0, time.UTC))
	svc, err := New(newConfig(t, simAppliance("F-001")),
		WithClock(clk), WithMetrics(coremetrics.NopSink{}), WithSessionLog(&recordingStore{}), WithLoggerFactory(nopLogs))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	a, err := svc.Registry().Get("F-001")
	require.NoError(t, err)

	svc.TickAll(ctx)
	s := a.Session()
	assert.Equal(t, model.StateConnected, s.State)
	assert.Equal(t, 50, s.SoC)
	assert.False(t, s.SwitchedOn)

	// The optional interval runs now, so the charger is switched on.
	svc.Switcher().Drain(ctx)
	s = a.Session()
	assert.True(t, s.SwitchedOn)
	assert.Equal(t, 11000, s.PowerW)

	clk.Set(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	svc.TickAll(ctx)
	assert.Equal(t, model.StateCharging, a.Session().State)

	clk.Set(time.Date(2025, 3, 5, 11, 0, 0, 0, time.UTC))
	svc.TickAll(ctx)
	s = a.Session()
	assert.InDelta(t, 11000, s.ConsumedWh, 1)
	iv := a.RuntimeIntervals(clk.Now(), false)
	require.NotEmpty(t, iv)
	assert.Equal(t, 0, iv[0].Start, "the satisfied window leaves the optional interval running")

	// The battery is full before 12:30 and the cycle completes.
	clk.Set(time.Date(2025, 3, 5, 12, 30, 0, 0, time.UTC))
	svc.TickAll(ctx)
	require.True(t, a.IsChargingCompleted())
	svc.Switcher().Drain(ctx)
	s = a.Session()
	assert.False(t, s.SwitchedOn)
	assert.Equal(t, model.StateCompleted, s.State)
}

func TestServiceRecordsFinishedSessions(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 3, 5, 17, 0, 0, 0, time.UTC))
	ac := simAppliance("F-001")
	ac.Device.Conf["arrive_at"] = "18:00"
	ac.Device.Conf["depart_at"] = "07:00"
	store := &recordingStore{}
	svc, err := New(newConfig(t, ac), WithClock(clk), WithSessionLog(store), WithLoggerFactory(nopLogs))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	for _, h := range []int{17, 18, 19, 23, 31} {
		clk.Set(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour))
		svc.TickAll(ctx)
		svc.Switcher().Drain(ctx)
	}
	require.Len(t, store.recs, 1)
	rec := store.recs[0]
	assert.Equal(t, "F-001", rec.ApplianceID)
	assert.Equal(t, time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC), rec.ConnectedAt)
	assert.Equal(t, time.Date(2025, 3, 6, 7, 0, 0, 0, time.UTC), rec.EndedAt)
	assert.Equal(t, "completed", rec.FinalState)
	assert.InDelta(t, 11000, rec.EnergyWh, 1)
}

func TestServiceRunStopsWithContext(t *testing.T) {
	cfg := newConfig(t, simAppliance("F-001"))
	cfg.TickIntervalSeconds = 1
	svc, err := New(cfg, WithLoggerFactory(nopLogs), WithSessionLog(&recordingStore{}))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	require.Eventually(t, func() bool {
		a, _ := svc.Registry().Get("F-001")
		return a.Session().State != model.StateNotConnected
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestServiceRequiresMQTTSection(t *testing.T) {
	ac := simAppliance("F-001")
	ac.Device = factory.ModuleConfig{Type: "mqtt"}
	_, err := New(newConfig(t, ac), WithLoggerFactory(nopLogs), WithSessionLog(&recordingStore{}))
	assert.ErrorContains(t, err, "mqtt section")
}

func TestBindDevicesOverrides(t *testing.T) {
	ac := simAppliance("F-001")
	ac.Meter = &factory.ModuleConfig{Type: "modbus", Conf: map[string]any{"host": "meter:502"}}
	ac.SoC = &factory.ModuleConfig{Type: "script", Conf: map[string]any{"command": []any{"echo", "42"}}}
	env := plugins.Env{Clock: clock.NewFake(time.Now())}

	b, err := bindDevices(ac, env)
	require.NoError(t, err)
	assert.IsType(t, &charger.PollingEnergyMeter{}, b.deps.Meter)
	assert.NotNil(t, b.deps.SoC)
	assert.NotNil(t, b.sw, "the sim device switches the charger")
	assert.Len(t, b.closers, 1, "the modbus reader holds a connection")

	ac.Device = factory.ModuleConfig{Type: "modbus", Conf: map[string]any{"host": "meter:502"}}
	_, err = bindDevices(ac, env)
	assert.ErrorContains(t, err, "vehicle state")

	ac = simAppliance("F-001")
	ac.Switch = &factory.ModuleConfig{Type: "script", Conf: map[string]any{"command": []any{"true"}}}
	_, err = bindDevices(ac, env)
	assert.ErrorContains(t, err, "cannot switch")
}
