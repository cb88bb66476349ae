package socapi

import (
	"context"
	"fmt"

	"github.com/kilianp07/chargeplan/auth"
)

// CounterConfig describes a meter exposing its energy counter as JSON.
type CounterConfig struct {
	URL string `json:"url"`
	// Field is the dot separated path of the counter in the response.
	Field string `json:"field"`
	// Scale converts the value to kWh, e.g. 0.001 for a Wh counter.
	Scale     float64    `json:"scale"`
	TimeoutMS int        `json:"timeout_ms"`
	Auth      *auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *CounterConfig) SetDefaults() {
	if c.Field == "" {
		c.Field = "energy"
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 10000
	}
}

// Validate checks mandatory fields.
func (c CounterConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("socapi: url is required")
	}
	if c.Scale < 0 {
		return fmt.Errorf("socapi: scale must be positive")
	}
	if c.Auth != nil {
		return c.Auth.Validate()
	}
	return nil
}

// CounterReader polls the meter on every ReadCounter call.
type CounterReader struct {
	cfg CounterConfig
	ep  endpoint
}

// NewCounterReader creates a reader.
func NewCounterReader(cfg CounterConfig) (*CounterReader, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CounterReader{cfg: cfg, ep: newEndpoint(cfg.TimeoutMS, cfg.Auth)}, nil
}

// ReadCounter returns the counter value in kWh.
func (r *CounterReader) ReadCounter(ctx context.Context) (float64, error) {
	doc, err := r.ep.getJSON(ctx, r.cfg.URL)
	if err != nil {
		return 0, err
	}
	v, err := lookup(doc, r.cfg.Field)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("socapi: counter %.3f is negative", v)
	}
	return v * r.cfg.Scale, nil
}
