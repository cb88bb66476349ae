// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[charger.CounterReader]()
//	reg.Register("modbus", func(conf map[string]any) (charger.CounterReader, error) {
//	    var c modbus.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return modbus.NewCounterReader(c, log)
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "modbus", Conf: map[string]any{"url": "tcp://meter:502"}})
package factory
