package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/factory"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/test/util"
)

func TestServiceServesMetricsAndAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("starts HTTP servers")
	}
	cfg := newConfig(t, simAppliance("F-001"))
	cfg.Metrics.PrometheusAddr = util.FreeAddr(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.API.Listen = util.FreeAddr(t)
	svc, err := New(cfg, WithLoggerFactory(nopLogs), WithSessionLog(&recordingStore{}))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	wctx, wcancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer wcancel()
	url := fmt.Sprintf("http://%s/metrics", cfg.Metrics.PrometheusAddr)
	require.NoError(t, util.WaitForMetric(wctx, url, `chargeplan_charger_state{appliance_id="F-001"}`))

	var st appliance.Status
	statusURL := fmt.Sprintf("http://%s/api/appliances/F-001/status", cfg.API.Listen)
	require.NoError(t, util.WaitForJSON(wctx, statusURL, &st))
	assert.NotEqual(t, model.StateNotConnected, st.State)
}
