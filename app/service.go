// Package app wires the configuration, the MQTT adapters, persistence,
// metrics and the orchestrator into a runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Tiimber/ev-smart-charger/config"
	"github.com/Tiimber/ev-smart-charger/core/charger"
	coremetrics "github.com/Tiimber/ev-smart-charger/core/metrics"
	"github.com/Tiimber/ev-smart-charger/infra/logger"
	"github.com/Tiimber/ev-smart-charger/infra/metrics"
	"github.com/Tiimber/ev-smart-charger/infra/mqtt"
	"github.com/Tiimber/ev-smart-charger/infra/store"
	"github.com/Tiimber/ev-smart-charger/internal/eventbus"
)

// Service runs the control loop: a periodic cycle plus debounced
// recomputation on sensor changes and user mutations.
type Service struct {
	Orchestrator *charger.Orchestrator

	bridge    *mqtt.SensorBridge
	publisher *mqtt.PlanPublisher
	persist   interface{ Close() error }
	bus       *eventbus.Bus
	log       logger.Logger

	cyclePeriod time.Duration
	recompute   chan struct{}
	debouncer   *charger.Debouncer

	promEnabled bool
	promPort    string
}

// sensorDebounce coalesces bursts of sensor updates into one recomputation.
const sensorDebounce = 2 * time.Second

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	opts, err := cfg.Control.Options()
	if err != nil {
		return nil, fmt.Errorf("control options: %w", err)
	}
	defaults, err := cfg.Defaults.UserSettings()
	if err != nil {
		return nil, fmt.Errorf("user defaults: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	var st interface {
		charger.StateStore
		Load() (charger.PersistedState, bool, error)
		Close() error
	}
	if cfg.Store.Path != "" {
		st, err = store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	} else {
		st = store.NewMemoryStore()
	}

	bus := eventbus.New()
	orch := charger.New(cfg.Charger, defaults, opts, charger.Deps{
		Store:   st,
		Bus:     bus,
		Metrics: sink,
		Logger:  logger.New("orchestrator"),
	})
	if state, ok, err := st.Load(); err != nil {
		logg.Errorf("load persisted state: %v", err)
	} else if ok {
		orch.Restore(state)
	}

	svc := &Service{
		Orchestrator: orch,
		persist:      st,
		bus:          bus,
		log:          logg,
		cyclePeriod:  opts.CyclePeriod,
		recompute:    make(chan struct{}, 1),
		promEnabled:  cfg.Metrics.PrometheusEnabled,
		promPort:     cfg.Metrics.PrometheusPort,
	}
	svc.debouncer = charger.NewDebouncer(sensorDebounce, svc.requestCycle)
	orch.OnMutation(svc.requestCycle)

	bridge, err := mqtt.NewSensorBridge(cfg.MQTT, orch, svc.debouncer.Trigger)
	if err != nil {
		return nil, fmt.Errorf("mqtt bridge: %w", err)
	}
	svc.bridge = bridge
	svc.publisher = mqtt.NewPlanPublisher(bridge)
	orch.SetController(mqtt.NewController(bridge))
	return svc, nil
}

// requestCycle schedules one out-of-band cycle, collapsing duplicates.
func (s *Service) requestCycle() {
	select {
	case s.recompute <- struct{}{}:
	default:
	}
}

// Run executes the control loop until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	ticker := time.NewTicker(s.cyclePeriod)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cycle(ctx)
		case <-s.recompute:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	now := time.Now()
	res, err := s.Orchestrator.RunCycle(ctx, now, s.bridge.Snapshot())
	if err != nil {
		s.log.Errorf("cycle: %v", err)
		return
	}
	if err := s.publisher.Publish(ctx, res); err != nil {
		s.log.Errorf("publish plan: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.debouncer.Stop()
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.bus.Close()
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}
