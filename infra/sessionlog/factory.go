// Package sessionlog provides file and SQLite backends for the charge
// session history.
package sessionlog

import (
	"fmt"

	core "github.com/kilianp07/chargeplan/core/sessionlog"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "", "none", "jsonl", "rotating_jsonl" or "sqlite".
	Backend    string `json:"backend" yaml:"backend"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults applies rotation defaults.
func (c *Config) SetDefaults() {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 90
	}
}

// Validate checks that a path is set for file based backends.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "none":
		return nil
	case "jsonl", "rotating_jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("session_log: path required for backend %s", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("session_log: unknown backend %s", c.Backend)
	}
}

// New opens the configured store.
func New(c Config) (core.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case "jsonl":
		return NewJSONLStore(c.Path)
	case "rotating_jsonl":
		c.SetDefaults()
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	default:
		return core.Nop{}, nil
	}
}
