// Package app wires the configured appliances to their devices, sinks and
// hosts and runs the tick loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/chargeplan/api/appliances"
	"github.com/kilianp07/chargeplan/app/plugins"
	"github.com/kilianp07/chargeplan/config"
	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/clock"
	corelogger "github.com/kilianp07/chargeplan/core/logger"
	coremetrics "github.com/kilianp07/chargeplan/core/metrics"
	"github.com/kilianp07/chargeplan/core/monitor"
	"github.com/kilianp07/chargeplan/core/reporting"
	coresessionlog "github.com/kilianp07/chargeplan/core/sessionlog"
	"github.com/kilianp07/chargeplan/infra/logger"
	"github.com/kilianp07/chargeplan/infra/metrics"
	"github.com/kilianp07/chargeplan/infra/mqtt"
	"github.com/kilianp07/chargeplan/infra/sentry"
	"github.com/kilianp07/chargeplan/infra/sessionlog"
	"github.com/kilianp07/chargeplan/internal/eventbus"
)

// Service orchestrates the appliances and their hosts.
type Service struct {
	cfg      *config.Config
	clock    clock.Clock
	registry *appliance.Registry
	bus      *eventbus.Bus[monitor.Event]
	switcher *Switcher
	sink     coremetrics.Sink
	sessions coresessionlog.Store
	reporter reporting.Reporter
	log      corelogger.Logger
	newLog   func(component string) corelogger.Logger

	mqttOnce sync.Once
	mqtt     *mqtt.PahoClient
	mqttErr  error
	closers  []func() error
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, for simulations.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics replaces the sinks of the configuration.
func WithMetrics(sink coremetrics.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithSessionLog replaces the session log of the configuration.
func WithSessionLog(store coresessionlog.Store) Option {
	return func(s *Service) { s.sessions = store }
}

// WithReporter replaces the Sentry reporter of the configuration.
func WithReporter(r reporting.Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithLoggerFactory replaces the zerolog loggers.
func WithLoggerFactory(f func(component string) corelogger.Logger) Option {
	return func(s *Service) { s.newLog = f }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		clock:  clock.System{},
		bus:    eventbus.New[monitor.Event](),
		newLog: logger.New,
	}
	for _, o := range opts {
		o(s)
	}
	if err := logger.Configure(cfg.Logging.Options()); err != nil {
		return nil, err
	}
	s.log = s.newLog("service")
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if s.reporter == nil {
		r, err := sentry.New(cfg.Sentry)
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		s.reporter = r
	}
	if s.sink == nil {
		sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		s.sink = sink
	}
	if s.sessions == nil {
		store, err := sessionlog.New(cfg.SessionLog)
		if err != nil {
			return nil, fmt.Errorf("session log: %w", err)
		}
		s.sessions = store
	}

	s.registry = appliance.NewRegistry()
	switches := map[string]charger.Switch{}
	for _, ac := range cfg.Appliances {
		a, sw, err := s.build(ac, loc)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := s.registry.Add(a); err != nil {
			_ = s.Close()
			return nil, err
		}
		if sw != nil {
			switches[ac.ID] = sw
		}
	}
	s.switcher = NewSwitcher(s.bus, s.registry, switches, s.clock, s.newLog("switcher"))
	s.switcher.SetReporter(s.reporter)
	return s, nil
}

func (s *Service) build(ac config.ApplianceConfig, loc *time.Location) (*appliance.Appliance, charger.Switch, error) {
	schedules, err := ac.BuildSchedules(loc)
	if err != nil {
		return nil, nil, fmt.Errorf("appliance %s: %w", ac.ID, err)
	}
	b, err := bindDevices(ac, plugins.Env{
		ApplianceID: ac.ID,
		Clock:       s.clock,
		MQTT:        s.mqttClient,
		Logger:      s.newLog,
	})
	s.closers = append(s.closers, b.closers...)
	if err != nil {
		return nil, nil, err
	}
	a, err := appliance.New(appliance.Config{
		ID:        ac.ID,
		Params:    ac.Params(),
		Schedules: schedules,
		Horizon:   ac.Horizon(),
	}, b.deps,
		appliance.WithLogger(s.newLog("appliance")),
		appliance.WithMetrics(s.sink),
		appliance.WithSessionLog(s.sessions),
		appliance.WithBus(s.bus),
	)
	if err != nil {
		return nil, nil, err
	}
	return a, b.sw, nil
}

// mqttClient connects to the broker the first time a device needs it.
func (s *Service) mqttClient() (*mqtt.PahoClient, error) {
	s.mqttOnce.Do(func() {
		if s.cfg.MQTT == nil {
			s.mqttErr = fmt.Errorf("mqtt section is required by mqtt devices")
			return
		}
		s.mqtt, s.mqttErr = mqtt.NewPahoClient(*s.cfg.MQTT, s.newLog("mqtt"))
	})
	return s.mqtt, s.mqttErr
}

// Registry returns the appliances.
func (s *Service) Registry() *appliance.Registry { return s.registry }

// Switcher returns the switching collaborator.
func (s *Service) Switcher() *Switcher { return s.switcher }

// Bus returns the bus monitor events are published on.
func (s *Service) Bus() *eventbus.Bus[monitor.Event] { return s.bus }

// TickAll ticks every appliance concurrently at the current time.
func (s *Service) TickAll(ctx context.Context) {
	now := s.clock.Now()
	var g errgroup.Group
	for _, a := range s.registry.All() {
		g.Go(func() error {
			defer s.reporter.Recover()
			a.Tick(ctx, now)
			return nil
		})
	}
	_ = g.Wait()
}

// Run ticks the appliances and serves the configured endpoints until ctx
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.switcher.Run(ctx) })
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr, s.newLog("prometheus")) })
	}
	if addr := s.cfg.API.Listen; addr != "" {
		h := appliances.Routes(appliances.NewHandler(s.registry, s.clock, s.newLog("api"), appliances.WithActuator(s.switcher)), s.sessions, s.cfg.API.Token)
		g.Go(func() error { return appliances.Serve(ctx, addr, h, s.newLog("api")) })
	}
	g.Go(func() error {
		interval := s.cfg.TickInterval()
		s.log.Infof("ticking %d appliances every %s", len(s.registry.All()), interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		s.TickAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.TickAll(ctx)
			}
		}
	})
	if err := g.Wait(); err != nil {
		s.reporter.CaptureError(err, nil)
		return err
	}
	return nil
}

// Close releases devices, the broker connection and the sinks.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.sessions != nil {
		errs = append(errs, s.sessions.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.bus.Close()
	if s.reporter != nil {
		s.reporter.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
