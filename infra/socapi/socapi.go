// Package socapi talks to vehicle and wallbox HTTP APIs. It reads the state
// of charge or an energy counter from JSON documents and switches wallboxes
// with plain requests.
package socapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kilianp07/chargeplan/auth"
)

// Config describes the endpoint.
type Config struct {
	URL string `json:"url"`
	// Field is the dot separated path of the percentage in the response.
	Field     string     `json:"field"`
	TimeoutMS int        `json:"timeout_ms"`
	Auth      *auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Field == "" {
		c.Field = "soc"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 10000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("socapi: url is required")
	}
	if c.Auth != nil {
		return c.Auth.Validate()
	}
	return nil
}

// Source polls the endpoint on every StateOfCharge call.
type Source struct {
	cfg Config
	ep  endpoint
}

// New creates a source.
func New(cfg Config) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, ep: newEndpoint(cfg.TimeoutMS, cfg.Auth)}, nil
}

// StateOfCharge fetches the battery level in percent.
func (s *Source) StateOfCharge(ctx context.Context) (float64, error) {
	doc, err := s.ep.getJSON(ctx, s.cfg.URL)
	if err != nil {
		return 0, err
	}
	v, err := lookup(doc, s.cfg.Field)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("socapi: soc %.1f out of range", v)
	}
	return v, nil
}

func lookup(doc any, path string) (float64, error) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("socapi: field %s not found", path)
		}
		if cur, ok = m[key]; !ok {
			return 0, fmt.Errorf("socapi: field %s not found", path)
		}
	}
	switch v := cur.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
	default:
		return 0, fmt.Errorf("socapi: field %s is not a number", path)
	}
}
