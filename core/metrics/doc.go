// Package metrics defines the sinks charger activity is reported to.
// Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves by name; NewSink combines several configured sinks into a
// MultiSink.
package metrics
