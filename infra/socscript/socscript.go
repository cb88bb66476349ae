// Package socscript reads the state of charge of a vehicle by running an
// external command that prints the level in percent on stdout.
package socscript

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Config describes the command to run.
type Config struct {
	// Command is the program followed by its arguments.
	Command []string `json:"command"`
	// Line is a shell style command line used when Command is empty.
	Line      string `json:"line"`
	TimeoutMS int    `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 30000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if len(c.Command) == 0 && c.Line != "" {
		if _, err := shellquote.Split(c.Line); err != nil {
			return fmt.Errorf("socscript: line: %w", err)
		}
		return nil
	}
	if len(c.Command) == 0 || c.Command[0] == "" {
		return fmt.Errorf("socscript: command is required")
	}
	return nil
}

// Source runs the command on every read.
type Source struct {
	cfg Config
}

// New returns a Source for cfg.
func New(cfg Config) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Command) == 0 {
		args, _ := shellquote.Split(cfg.Line)
		if len(args) == 0 {
			return nil, fmt.Errorf("socscript: command is required")
		}
		cfg.Command = args
	}
	return &Source{cfg: cfg}, nil
}

// StateOfCharge runs the command and parses the first token of its output.
func (s *Source) StateOfCharge(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("soc command %s: %w: %s", s.cfg.Command[0], err, strings.TrimSpace(stderr.String()))
	}
	fields := strings.Fields(stdout.String())
	if len(fields) == 0 {
		return 0, fmt.Errorf("soc command %s: empty output", s.cfg.Command[0])
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("soc command %s: %w", s.cfg.Command[0], err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("soc command %s: %.1f%% out of range", s.cfg.Command[0], v)
	}
	return v, nil
}
