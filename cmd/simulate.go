package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chargeplan/app"
	"github.com/kilianp07/chargeplan/config"
	"github.com/kilianp07/chargeplan/core/clock"
	"github.com/kilianp07/chargeplan/core/factory"
	"github.com/kilianp07/chargeplan/core/logger"
	coremetrics "github.com/kilianp07/chargeplan/core/metrics"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/core/reporting"
	"github.com/kilianp07/chargeplan/core/sessionlog"
)

var simOpts struct {
	start      string
	hours      int
	step       time.Duration
	initialSoC float64
	arriveAt   string
	departAt   string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the configured appliances against simulated vehicles",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.start, "start", "", "simulation start, RFC3339 (default now)")
	f.IntVar(&simOpts.hours, "hours", 24, "simulated hours")
	f.DurationVar(&simOpts.step, "step", time.Minute, "tick interval")
	f.Float64Var(&simOpts.initialSoC, "initial-soc", 30, "battery level on arrival for appliances without a sim device")
	f.StringVar(&simOpts.arriveAt, "arrive-at", "", "daily arrival time HH:MM")
	f.StringVar(&simOpts.departAt, "depart-at", "", "daily departure time HH:MM")
	rootCmd.AddCommand(simulateCmd)
}

// printedLog writes finished cycles to the command output.
type printedLog struct{ out io.Writer }

func (p printedLog) Append(_ context.Context, r sessionlog.Record) error {
	_, err := fmt.Fprintf(p.out, "%s  %s session %s: %s -> %s %.0f Wh\n",
		r.EndedAt.Format(time.RFC3339), r.ApplianceID, r.FinalState,
		r.ConnectedAt.Format("15:04"), r.EndedAt.Format("15:04"), r.EnergyWh)
	return err
}
func (printedLog) Query(context.Context, sessionlog.Query) ([]sessionlog.Record, error) {
	return nil, nil
}
func (printedLog) Close() error { return nil }

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if simOpts.step <= 0 || simOpts.hours <= 0 {
		return fmt.Errorf("--hours and --step must be positive")
	}
	start := time.Now().Truncate(time.Minute)
	if simOpts.start != "" {
		if start, err = time.Parse(time.RFC3339, simOpts.start); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	simulated(cfg)
	out := cmd.OutOrStdout()
	clk := clock.NewFake(start)
	svc, err := app.New(cfg,
		app.WithClock(clk),
		app.WithMetrics(coremetrics.NopSink{}),
		app.WithSessionLog(printedLog{out: out}),
		app.WithReporter(reporting.Nop{}),
		app.WithLoggerFactory(func(string) logger.Logger { return logger.Nop{} }),
	)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	last := map[string]model.ChargerState{}
	end := start.Add(time.Duration(simOpts.hours) * time.Hour)
	for now := start; !now.After(end); now = clk.Advance(simOpts.step) {
		svc.TickAll(ctx)
		svc.Switcher().Drain(ctx)
		for _, a := range svc.Registry().All() {
			st := a.Status(now)
			if prev, ok := last[st.ID]; ok && prev == st.State {
				continue
			}
			last[st.ID] = st.State
			fmt.Fprintf(out, "%s  %s %-13s switched_on=%-5t consumed=%.0fWh remaining=%.0fWh intervals=%d\n",
				now.Format(time.RFC3339), st.ID, st.State, st.SwitchedOn, st.ConsumedWh, st.RemainingMaxWh, len(st.Intervals))
		}
	}
	return nil
}

// simulated replaces the devices of every appliance with a simulated
// wallbox. Appliances already using one keep its settings.
func simulated(cfg *config.Config) {
	cfg.MQTT = nil
	for i := range cfg.Appliances {
		a := &cfg.Appliances[i]
		a.Meter, a.SoC, a.Switch = nil, nil, nil
		if a.Device.Type == "sim" {
			continue
		}
		conf := map[string]any{"initial_soc": simOpts.initialSoC}
		if simOpts.arriveAt != "" && simOpts.departAt != "" {
			conf["arrive_at"], conf["depart_at"] = simOpts.arriveAt, simOpts.departAt
		}
		if a.ChargePowerW > 0 {
			conf["max_power_kw"] = a.ChargePowerW / 1000
		}
		a.Device = factory.ModuleConfig{Type: "sim", Conf: conf}
	}
}
