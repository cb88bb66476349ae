// Package infra holds the adapters behind the core interfaces: brokers,
// field buses, metric backends, session stores and simulated devices.
package infra
