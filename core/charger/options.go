package charger

import (
	"fmt"
	"time"
)

// RefreshMode selects how often a vehicle telemetry refresh is forced while
// the car is plugged in.
type RefreshMode string

const (
	RefreshNever    RefreshMode = "never"
	Refresh30Min    RefreshMode = "30m"
	Refresh1Hour    RefreshMode = "1h"
	Refresh2Hours   RefreshMode = "2h"
	Refresh3Hours   RefreshMode = "3h"
	Refresh4Hours   RefreshMode = "4h"
	RefreshAtTarget RefreshMode = "at_target"
)

// interval returns the minimum time between forced refreshes. atTarget
// additionally requires the virtual SoC to have reached the planned target.
func (m RefreshMode) interval() (d time.Duration, atTarget, ok bool) {
	switch m {
	case Refresh30Min:
		return 30 * time.Minute, false, true
	case Refresh1Hour:
		return time.Hour, false, true
	case Refresh2Hours:
		return 2 * time.Hour, false, true
	case Refresh3Hours:
		return 3 * time.Hour, false, true
	case Refresh4Hours:
		return 4 * time.Hour, false, true
	case RefreshAtTarget:
		return 12 * time.Hour, true, true
	default:
		return 0, false, false
	}
}

// Validate checks the mode is a known value.
func (m RefreshMode) Validate() error {
	switch m {
	case "", RefreshNever, Refresh30Min, Refresh1Hour, Refresh2Hours, Refresh3Hours, Refresh4Hours, RefreshAtTarget:
		return nil
	}
	return fmt.Errorf("unknown refresh mode %q", m)
}

// Options tune the orchestrator's control behaviour.
type Options struct {
	// CyclePeriod is the control loop interval, also the unit of overload
	// prevention accounting.
	CyclePeriod time.Duration `json:"cycle_period"`
	// StartupGrace suppresses actuation right after start so stale state
	// cannot toggle the charger.
	StartupGrace time.Duration `json:"startup_grace"`
	// BufferWindow keeps the charger on for this long after the planned
	// session end, absorbing rounding between plan and reality.
	BufferWindow time.Duration `json:"buffer_window"`
	// CarRefresh selects the forced telemetry refresh policy.
	CarRefresh RefreshMode `json:"car_refresh"`
}

// SetDefaults applies the standard 30-second loop parameters.
func (o *Options) SetDefaults() {
	if o.CyclePeriod <= 0 {
		o.CyclePeriod = 30 * time.Second
	}
	if o.StartupGrace <= 0 {
		o.StartupGrace = 2 * time.Minute
	}
	if o.BufferWindow <= 0 {
		o.BufferWindow = 15 * time.Minute
	}
	if o.CarRefresh == "" {
		o.CarRefresh = RefreshNever
	}
}
