// Package sentry reports errors to Sentry.
package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/chargeplan/core/reporting"
)

// Config defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("sentry: traces_sample_rate must be within 0 and 1")
	}
	return nil
}

// New initializes Sentry and returns a Reporter.
func New(cfg Config) (reporting.Reporter, error) {
	if cfg.DSN == "" {
		return reporting.Nop{}, nil
	}
	return newReporter(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
}

func newReporter(opts sentry.ClientOptions) (*Reporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Reporter sends events through its own hub.
type Reporter struct {
	hub *sentry.Hub
}

func (r *Reporter) CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		r.hub.CaptureException(err)
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		r.hub.CaptureException(err)
	})
}

func (r *Reporter) Recover() {
	if v := recover(); v != nil {
		r.hub.Recover(v)
		r.hub.Flush(2 * time.Second)
		panic(v)
	}
}

func (r *Reporter) Flush(timeout time.Duration) { r.hub.Flush(timeout) }
