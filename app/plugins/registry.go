package plugins

import (
	"github.com/kilianp07/chargeplan/core/clock"
	"github.com/kilianp07/chargeplan/core/factory"
	"github.com/kilianp07/chargeplan/core/logger"
	"github.com/kilianp07/chargeplan/infra/mqtt"
)

// Env carries what a device needs besides its own settings.
type Env struct {
	ApplianceID string
	Clock       clock.Clock
	// MQTT returns the shared broker connection, connecting on first use.
	MQTT   func() (*mqtt.PahoClient, error)
	Logger func(component string) logger.Logger
}

// Binder creates a device once the environment is known. The returned value
// implements one or more of the charger collaborator interfaces.
type Binder func(env Env) (any, error)

// Devices holds the device factories keyed by module type. Factories decode
// and validate their settings when the configuration is loaded and bind to
// the environment when the service is built.
var Devices = factory.NewRegistry[Binder]()

// RegisterDevice adds a device factory.
func RegisterDevice(name string, f factory.Factory[Binder]) error {
	return Devices.Register(name, f)
}

func (e Env) logger(component string) logger.Logger {
	if e.Logger == nil {
		return logger.Nop{}
	}
	return e.Logger(component)
}
