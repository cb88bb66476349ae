package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/chargeplan/core/metrics"
	"github.com/kilianp07/chargeplan/infra/mqtt"
	"github.com/kilianp07/chargeplan/infra/sentry"
	"github.com/kilianp07/chargeplan/infra/sessionlog"
)

// DefaultTickInterval is the period of the service loop.
const DefaultTickInterval = 60 * time.Second

type Config struct {
	// Timezone names the location schedule wall clock times are read in.
	Timezone            string            `json:"timezone"`
	TickIntervalSeconds int               `json:"tick_interval_seconds"`
	Logging             LoggingConfig     `json:"logging"`
	MQTT                *mqtt.Config      `json:"mqtt"`
	Appliances          []ApplianceConfig `json:"appliances"`
	Metrics             MetricsConfig     `json:"metrics"`
	SessionLog          sessionlog.Config `json:"session_log"`
	API                 APIConfig         `json:"api"`
	Sentry              sentry.Config     `json:"sentry"`
}

// MetricsConfig lists the sinks and where Prometheus is served.
type MetricsConfig struct {
	metrics.Config `json:",squash"`
	// PrometheusAddr enables the /metrics endpoint when set.
	PrometheusAddr string `json:"prometheus_addr"`
}

// APIConfig configures the HTTP API. An empty Listen disables it.
type APIConfig struct {
	Listen string `json:"listen"`
	// Token, when set, is required as bearer token.
	Token string `json:"token"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.TickIntervalSeconds <= 0 {
		c.TickIntervalSeconds = int(DefaultTickInterval / time.Second)
	}
	c.Logging.SetDefaults()
	if c.MQTT != nil {
		c.MQTT.SetDefaults()
	}
	for i := range c.Appliances {
		c.Appliances[i].SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	loc, err := c.Location()
	if err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.MQTT != nil {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if len(c.Appliances) == 0 {
		return fmt.Errorf("at least one appliance is required")
	}
	seen := map[string]bool{}
	for i, a := range c.Appliances {
		if err := a.Validate(loc); err != nil {
			return fmt.Errorf("appliances[%d]: %w", i, err)
		}
		if seen[a.ID] {
			return fmt.Errorf("appliances[%d]: duplicate id %s", i, a.ID)
		}
		seen[a.ID] = true
	}
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: type is required", i)
		}
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	return c.SessionLog.Validate()
}

// Location returns the configured time zone.
func (c Config) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// TickInterval returns the service loop period.
func (c Config) TickInterval() time.Duration {
	if c.TickIntervalSeconds <= 0 {
		return DefaultTickInterval
	}
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// resolvePaths makes file references relative to the config file.
func (c *Config) resolvePaths(dir string) {
	if p := c.Logging.File; p != "" && !filepath.IsAbs(p) {
		c.Logging.File = filepath.Join(dir, p)
	}
	for i := range c.Appliances {
		p := c.Appliances[i].SchedulesFile
		if p != "" && !filepath.IsAbs(p) {
			c.Appliances[i].SchedulesFile = filepath.Join(dir, p)
		}
	}
}
