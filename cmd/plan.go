package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chargeplan/config"
	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/pkg/export"
)

var planOpts struct {
	at        string
	soc       float64
	appliance string
	format    string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the runtime intervals for a vehicle plugged in now",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planOpts.at, "at", "", "connection time, RFC3339 (default now)")
	f.Float64Var(&planOpts.soc, "soc", -1, "state of charge in percent, negative when unknown")
	f.StringVar(&planOpts.appliance, "appliance", "", "only plan this appliance")
	f.StringVar(&planOpts.format, "format", "table", "output format: table, json or csv")
	rootCmd.AddCommand(planCmd)
}

// pluggedVehicle reports a connected, idle vehicle with a fixed battery
// level.
type pluggedVehicle struct{ soc float64 }

func (pluggedVehicle) IsVehicleConnected() bool                     { return true }
func (pluggedVehicle) IsCharging() bool                             { return false }
func (pluggedVehicle) ReadCounter(context.Context) (float64, error) { return 0, nil }
func (v pluggedVehicle) StateOfCharge(context.Context) (float64, error) {
	if v.soc < 0 {
		return 0, fmt.Errorf("state of charge unknown")
	}
	return v.soc, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	at := time.Now().In(loc)
	if planOpts.at != "" {
		if at, err = time.ParseInLocation(time.RFC3339, planOpts.at, loc); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}
	var results []export.Plan
	for _, ac := range cfg.Appliances {
		if planOpts.appliance != "" && ac.ID != planOpts.appliance {
			continue
		}
		r, err := planAppliance(cmd.Context(), ac, loc, at, planOpts.soc)
		if err != nil {
			return err
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return fmt.Errorf("no appliance %q", planOpts.appliance)
	}
	switch planOpts.format {
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), results)
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), results)
	case "table", "":
		return printPlans(cmd.OutOrStdout(), results)
	default:
		return fmt.Errorf("unknown format %q", planOpts.format)
	}
}

func planAppliance(ctx context.Context, ac config.ApplianceConfig, loc *time.Location, at time.Time, soc float64) (export.Plan, error) {
	schedules, err := ac.BuildSchedules(loc)
	if err != nil {
		return export.Plan{}, err
	}
	v := pluggedVehicle{soc: soc}
	a, err := appliance.New(appliance.Config{
		ID:        ac.ID,
		Params:    ac.Params(),
		Schedules: schedules,
		Horizon:   ac.Horizon(),
	}, appliance.Deps{Vehicle: v, Meter: charger.NewPollingEnergyMeter(v), SoC: v})
	if err != nil {
		return export.Plan{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	intervals := a.Tick(ctx, at)
	if intervals == nil {
		intervals = []model.RuntimeInterval{}
	}
	return export.Plan{ApplianceID: ac.ID, At: at, Intervals: intervals}, nil
}

func printPlans(out io.Writer, results []export.Plan) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APPLIANCE\tFROM\tTO\tMIN WH\tMAX WH\tSUFFICIENT")
	for _, r := range results {
		if len(r.Intervals) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t0\t0\t-\n", r.ApplianceID)
		}
		for _, iv := range r.Intervals {
			from := r.At.Add(time.Duration(iv.Start) * time.Second)
			to := r.At.Add(time.Duration(iv.End) * time.Second)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%t\n", r.ApplianceID,
				from.Format("Mon 15:04:05"), to.Format("Mon 15:04:05"), iv.MinEnergy, iv.MaxEnergy, iv.Sufficient)
		}
	}
	return w.Flush()
}
