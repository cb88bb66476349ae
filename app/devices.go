package app

import (
	"fmt"

	"github.com/kilianp07/chargeplan/app/plugins"
	"github.com/kilianp07/chargeplan/config"
	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/factory"
)

// bound holds the live collaborators of one appliance.
type bound struct {
	deps    appliance.Deps
	sw      charger.Switch
	closers []func() error
}

type closer interface{ Close() error }

// bindDevices creates the device of a and its overrides and picks the
// collaborator interfaces each one implements.
func bindDevices(a config.ApplianceConfig, env plugins.Env) (bound, error) {
	var b bound
	created := map[*factory.ModuleConfig]any{}
	create := func(m *factory.ModuleConfig) (any, error) {
		if dev, ok := created[m]; ok {
			return dev, nil
		}
		bind, err := plugins.Devices.Create(*m)
		if err != nil {
			return nil, err
		}
		dev, err := bind(env)
		if err != nil {
			return nil, fmt.Errorf("%s device: %w", m.Type, err)
		}
		if c, ok := dev.(closer); ok {
			b.closers = append(b.closers, c.Close)
		}
		created[m] = dev
		return dev, nil
	}
	// pick returns the override when set, otherwise the main device.
	pick := func(override *factory.ModuleConfig) (any, error) {
		if override != nil {
			return create(override)
		}
		return create(&a.Device)
	}

	dev, err := create(&a.Device)
	if err != nil {
		return b, err
	}
	vehicle, ok := dev.(charger.VehicleStateSource)
	if !ok {
		return b, fmt.Errorf("appliance %s: %s device does not report the vehicle state", a.ID, a.Device.Type)
	}
	b.deps.Vehicle = vehicle

	m, err := pick(a.Meter)
	if err != nil {
		return b, err
	}
	switch meter := m.(type) {
	case charger.EnergyMeter:
		b.deps.Meter = meter
	case charger.CounterReader:
		b.deps.Meter = charger.NewPollingEnergyMeter(meter)
	default:
		return b, fmt.Errorf("appliance %s: no energy meter configured", a.ID)
	}

	s, err := pick(a.SoC)
	if err != nil {
		return b, err
	}
	if soc, ok := s.(charger.StateOfChargeSource); ok {
		b.deps.SoC = soc
	} else if a.SoC != nil {
		return b, fmt.Errorf("appliance %s: %s device does not report a state of charge", a.ID, a.SoC.Type)
	}

	w, err := pick(a.Switch)
	if err != nil {
		return b, err
	}
	if sw, ok := w.(charger.Switch); ok {
		b.sw = sw
	} else if a.Switch != nil {
		return b, fmt.Errorf("appliance %s: %s device cannot switch the charger", a.ID, a.Switch.Type)
	}
	return b, nil
}
