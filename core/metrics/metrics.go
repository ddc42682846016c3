// Package metrics defines the observability contract for the control loop.
// Sinks live under infra/metrics.
package metrics

import (
	"fmt"
	"time"
)

// CycleSample captures one control cycle for observability purposes.
type CycleSample struct {
	Time            time.Time
	Duration        time.Duration
	AvailableAmps   float64
	VirtualSoC      float64
	TargetSoC       float64
	CommandedAmps   float64
	Charging        bool
	ShouldCharge    bool
	OverloadMinutes float64
	PriceStatus     string
}

// Sink records control cycle samples.
type Sink interface {
	RecordCycle(s CycleSample) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleSample) error { return nil }

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "2112"
	}
}

// Validate checks mandatory fields for enabled sinks.
func (c Config) Validate() error {
	if c.InfluxEnabled {
		if c.InfluxURL == "" || c.InfluxOrg == "" || c.InfluxBucket == "" {
			return fmt.Errorf("influx sink requires url, org and bucket")
		}
	}
	return nil
}
