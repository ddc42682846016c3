package config

import (
	"fmt"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/charger"
)

// ControlConfig carries the control loop timings as duration strings so they
// can be written as "30s" or "15m" in the config file.
type ControlConfig struct {
	CyclePeriod  string `json:"cycle_period"`
	StartupGrace string `json:"startup_grace"`
	BufferWindow string `json:"buffer_window"`
	CarRefresh   string `json:"car_refresh"`
}

// Validate checks all fields parse.
func (c ControlConfig) Validate() error {
	_, err := c.Options()
	return err
}

// Options converts the section into orchestrator options.
func (c ControlConfig) Options() (charger.Options, error) {
	var opts charger.Options
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"cycle_period", c.CyclePeriod, &opts.CyclePeriod},
		{"startup_grace", c.StartupGrace, &opts.StartupGrace},
		{"buffer_window", c.BufferWindow, &opts.BufferWindow},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return opts, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = d
	}
	opts.CarRefresh = charger.RefreshMode(c.CarRefresh)
	if err := opts.CarRefresh.Validate(); err != nil {
		return opts, err
	}
	opts.SetDefaults()
	return opts, nil
}
