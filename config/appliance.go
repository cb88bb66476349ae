package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/chargeplan/app/plugins"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/factory"
	"github.com/kilianp07/chargeplan/core/model"
	"github.com/kilianp07/chargeplan/core/scheduler"
)

// ApplianceConfig describes one charger. Device provides the vehicle state
// and, unless overridden by Meter, SoC or Switch, the other collaborators it
// implements.
type ApplianceConfig struct {
	ID               string                 `json:"id"`
	Vehicles         []model.Vehicle        `json:"vehicles"`
	ChargePowerW     float64                `json:"charge_power_w"`
	ChargeLossFactor float64                `json:"charge_loss_factor"`
	HorizonHours     int                    `json:"horizon_hours"`
	Schedules        []model.ScheduleConfig `json:"schedules"`
	// SchedulesFile is a YAML or JSON file with more schedules, relative to
	// the configuration file.
	SchedulesFile string                `json:"schedules_file"`
	Device        factory.ModuleConfig  `json:"device"`
	Meter         *factory.ModuleConfig `json:"meter"`
	SoC           *factory.ModuleConfig `json:"soc"`
	Switch        *factory.ModuleConfig `json:"switch"`
}

// SetDefaults applies vehicle and charger defaults.
func (c *ApplianceConfig) SetDefaults() {
	if c.ChargeLossFactor == 0 {
		c.ChargeLossFactor = charger.DefaultLossFactor
	}
	for i := range c.Vehicles {
		c.Vehicles[i].SetDefaults()
	}
}

// Validate checks the appliance and resolves its device types.
func (c ApplianceConfig) Validate(loc *time.Location) error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(c.Vehicles) == 0 {
		return fmt.Errorf("appliance %s: at least one vehicle is required", c.ID)
	}
	for _, v := range c.Vehicles {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("appliance %s: %w", c.ID, err)
		}
	}
	if c.ChargePowerW < 0 {
		return fmt.Errorf("appliance %s: charge_power_w must not be negative", c.ID)
	}
	if c.ChargeLossFactor < 1 {
		return fmt.Errorf("appliance %s: charge_loss_factor %.2f is below 1", c.ID, c.ChargeLossFactor)
	}
	if c.HorizonHours < 0 {
		return fmt.Errorf("appliance %s: horizon_hours must not be negative", c.ID)
	}
	if _, err := c.BuildSchedules(loc); err != nil {
		return fmt.Errorf("appliance %s: %w", c.ID, err)
	}
	if c.Device.Type == "" {
		return fmt.Errorf("appliance %s: device type is required", c.ID)
	}
	for name, m := range map[string]*factory.ModuleConfig{"device": &c.Device, "meter": c.Meter, "soc": c.SoC, "switch": c.Switch} {
		if m == nil {
			continue
		}
		if _, err := plugins.Devices.Create(*m); err != nil {
			return fmt.Errorf("appliance %s: %s: %w", c.ID, name, err)
		}
	}
	return nil
}

// Params returns the charger parameters.
func (c ApplianceConfig) Params() charger.Params {
	return charger.Params{
		Vehicles:     c.Vehicles,
		LossFactor:   c.ChargeLossFactor,
		ChargePowerW: c.ChargePowerW,
	}
}

// Horizon returns the planning horizon, zero meaning the default.
func (c ApplianceConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonHours) * time.Hour
}

// BuildSchedules returns the inline schedules followed by those of
// SchedulesFile.
func (c ApplianceConfig) BuildSchedules(loc *time.Location) ([]model.Schedule, error) {
	cfgs := append([]model.ScheduleConfig(nil), c.Schedules...)
	if c.SchedulesFile != "" {
		more, err := scheduler.LoadSchedules(c.SchedulesFile)
		if err != nil {
			return nil, fmt.Errorf("schedules file: %w", err)
		}
		cfgs = append(cfgs, more...)
	}
	return scheduler.BuildSchedules(cfgs, loc)
}
