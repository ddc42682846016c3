// Package metrics provides the Prometheus and InfluxDB sinks recording
// control cycle samples.
package metrics

import (
	coremetrics "github.com/Tiimber/ev-smart-charger/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records control cycle samples in Prometheus metrics.
type PromSink struct {
	cycles    *prometheus.CounterVec
	duration  prometheus.Histogram
	available prometheus.Gauge
	soc       prometheus.Gauge
	target    prometheus.Gauge
	amps      prometheus.Gauge
	overload  prometheus.Gauge
}

// NewPromSink registers cycle metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charge_cycles_total",
		Help: "Total number of control cycles",
	}, []string{"charging", "price_status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "charge_cycle_duration_seconds",
		Help:    "Duration of one control cycle",
		Buckets: prometheus.DefBuckets,
	})
	available := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_available_amps",
		Help: "Per-phase current available to the charger",
	})
	soc := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_virtual_soc_percent",
		Help: "Virtual state of charge estimate",
	})
	target := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_target_soc_percent",
		Help: "Planned target state of charge",
	})
	amps := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_commanded_amps",
		Help: "Current limit commanded to the charger",
	})
	overload := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_overload_minutes",
		Help: "Minutes of charging deferred by the safety cutoff this session",
	})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	gauges := []*prometheus.Gauge{&available, &soc, &target, &amps, &overload}
	for _, g := range gauges {
		if err := reg.Register(*g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				*g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return nil, err
			}
		}
	}

	return &PromSink{
		cycles:    cycles,
		duration:  duration,
		available: available,
		soc:       soc,
		target:    target,
		amps:      amps,
		overload:  overload,
	}, nil
}

// RecordCycle updates all metrics from one cycle sample.
func (s *PromSink) RecordCycle(c coremetrics.CycleSample) error {
	s.cycles.WithLabelValues(boolLabel(c.Charging), c.PriceStatus).Inc()
	s.duration.Observe(c.Duration.Seconds())
	s.available.Set(c.AvailableAmps)
	s.soc.Set(c.VirtualSoC)
	s.target.Set(c.TargetSoC)
	s.amps.Set(c.CommandedAmps)
	s.overload.Set(c.OverloadMinutes)
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
