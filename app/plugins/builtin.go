package plugins

import (
	"fmt"

	"github.com/kilianp07/chargeplan/core/factory"
	"github.com/kilianp07/chargeplan/infra/modbus"
	"github.com/kilianp07/chargeplan/infra/sim"
	"github.com/kilianp07/chargeplan/infra/socapi"
	"github.com/kilianp07/chargeplan/infra/socscript"
)

func init() {
	_ = RegisterDevice("mqtt", func(conf map[string]any) (Binder, error) {
		var c struct {
			ChargerID string `json:"charger_id"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(env Env) (any, error) {
			if env.MQTT == nil {
				return nil, fmt.Errorf("mqtt device needs an mqtt section")
			}
			cli, err := env.MQTT()
			if err != nil {
				return nil, err
			}
			id := c.ChargerID
			if id == "" {
				id = env.ApplianceID
			}
			return cli.Charger(id)
		}, nil
	})

	_ = RegisterDevice("modbus", func(conf map[string]any) (Binder, error) {
		var c modbus.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(env Env) (any, error) {
			return modbus.NewCounterReader(c, env.logger("modbus"))
		}, nil
	})

	_ = RegisterDevice("modbus-switch", func(conf map[string]any) (Binder, error) {
		var c modbus.SwitchConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(env Env) (any, error) {
			return modbus.NewSwitch(c, env.logger("modbus"))
		}, nil
	})

	_ = RegisterDevice("script", func(conf map[string]any) (Binder, error) {
		var c socscript.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(Env) (any, error) { return socscript.New(c) }, nil
	})

	_ = RegisterDevice("http", func(conf map[string]any) (Binder, error) {
		var c socapi.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(Env) (any, error) { return socapi.New(c) }, nil
	})

	_ = RegisterDevice("http-switch", func(conf map[string]any) (Binder, error) {
		var c socapi.SwitchConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(Env) (any, error) { return socapi.NewSwitch(c) }, nil
	})

	_ = RegisterDevice("http-meter", func(conf map[string]any) (Binder, error) {
		var c socapi.CounterConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(Env) (any, error) { return socapi.NewCounterReader(c) }, nil
	})

	_ = RegisterDevice("sim", func(conf map[string]any) (Binder, error) {
		var c sim.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return func(env Env) (any, error) {
			if env.Clock == nil {
				return nil, fmt.Errorf("sim device needs a clock")
			}
			return sim.New(c, env.Clock)
		}, nil
	})
}
