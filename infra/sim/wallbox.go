// Package sim provides a simulated wallbox with a plugged vehicle. It stands
// in for the live charger sources in the simulate command and in tests.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/chargeplan/core/clock"
	"github.com/kilianp07/chargeplan/core/model"
)

// Config describes the simulated vehicle and its plug times.
type Config struct {
	CapacityKWh float64 `json:"capacity_kwh"`
	// InitialSoC is the battery level in percent on every arrival.
	InitialSoC float64 `json:"initial_soc"`
	MaxPowerKW float64 `json:"max_power_kw"`
	// LossFactor is the ratio of metered to stored energy.
	LossFactor float64 `json:"loss_factor"`
	// ArriveAt and DepartAt are "HH:MM" times of day. Without them the
	// vehicle is always plugged in.
	ArriveAt string `json:"arrive_at"`
	DepartAt string `json:"depart_at"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CapacityKWh == 0 {
		c.CapacityKWh = 40
	}
	if c.MaxPowerKW == 0 {
		c.MaxPowerKW = 11
	}
	if c.LossFactor == 0 {
		c.LossFactor = 1.1
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.CapacityKWh < 0 || c.MaxPowerKW < 0 || c.LossFactor < 1 {
		return fmt.Errorf("sim: capacity, power and loss factor must be positive")
	}
	if c.InitialSoC < 0 || c.InitialSoC > 100 {
		return fmt.Errorf("sim: initial_soc %.1f out of range", c.InitialSoC)
	}
	if (c.ArriveAt == "") != (c.DepartAt == "") {
		return fmt.Errorf("sim: arrive_at and depart_at go together")
	}
	return nil
}

// Wallbox simulates a charger and the vehicle plugged into it. Its state is
// advanced lazily to the clock's time on every call.
type Wallbox struct {
	cfg     Config
	clock   clock.Clock
	parking model.Timeframe

	mu         sync.Mutex
	battery    Battery
	last       time.Time
	plugged    bool
	on         bool
	powerW     int
	counterKWh float64
}

// New creates a wallbox.
func New(cfg Config, clk clock.Clock) (*Wallbox, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Wallbox{
		cfg:   cfg,
		clock: clk,
		battery: Battery{
			CapacityKWh:  cfg.CapacityKWh,
			Soc:          cfg.InitialSoC / 100,
			ChargeRateKW: cfg.MaxPowerKW,
		},
	}
	if cfg.ArriveAt != "" {
		arrive, err := model.ParseTimeOfDay(cfg.ArriveAt)
		if err != nil {
			return nil, fmt.Errorf("sim: arrive_at: %w", err)
		}
		depart, err := model.ParseTimeOfDay(cfg.DepartAt)
		if err != nil {
			return nil, fmt.Errorf("sim: depart_at: %w", err)
		}
		w.parking = model.DayTimeframe{Start: arrive, End: depart}
	}
	now := clk.Now()
	w.last = now
	w.plugged = w.parkedAt(now)
	return w, nil
}

func (w *Wallbox) parkedAt(t time.Time) bool {
	if w.parking == nil {
		return true
	}
	for _, occ := range w.parking.Occurrences(t, t.Add(time.Second)) {
		if occ.Contains(t) {
			return true
		}
	}
	return false
}

func (w *Wallbox) charging() bool {
	return w.plugged && w.on && !w.battery.Full()
}

func (w *Wallbox) advance() {
	now := w.clock.Now()
	if !now.After(w.last) {
		return
	}
	if w.charging() {
		powerKW := w.cfg.MaxPowerKW
		if w.powerW > 0 {
			powerKW = float64(w.powerW) / 1000
		}
		stored := w.battery.Charge(powerKW/w.cfg.LossFactor, now.Sub(w.last))
		w.counterKWh += stored * w.cfg.LossFactor
	}
	w.last = now
	plugged := w.parkedAt(now)
	if plugged && !w.plugged {
		w.battery.Soc = w.cfg.InitialSoC / 100
	}
	w.plugged = plugged
}

func (w *Wallbox) IsVehicleConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	return w.plugged
}

func (w *Wallbox) IsCharging() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	return w.charging()
}

// ReadCounter returns the metered energy in kWh since the wallbox started.
func (w *Wallbox) ReadCounter(context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	return w.counterKWh, nil
}

// StateOfCharge returns the battery level in percent.
func (w *Wallbox) StateOfCharge(context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	if !w.plugged {
		return 0, fmt.Errorf("sim: no vehicle plugged in")
	}
	return w.battery.Soc * 100, nil
}

// SetSwitch turns the wallbox on or off.
func (w *Wallbox) SetSwitch(_ context.Context, on bool, powerW int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	w.on = on
	if powerW > 0 {
		w.powerW = powerW
	}
	return nil
}
