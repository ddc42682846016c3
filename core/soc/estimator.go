// Package soc maintains the virtual state of charge: a fusion of the slow,
// sometimes stale vehicle telemetry with a physics-based integration of the
// energy delivered by the charger. Telemetry may refresh only every few
// minutes while the control loop runs every 30 seconds; relying on either
// source alone would make decisions lag or drift.
package soc

import (
	"time"

	"github.com/Tiimber/ev-smart-charger/core/logger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

const (
	// refreshTrustWindow is how long after a forced vehicle refresh a
	// changed telemetry reading is trusted even if lower than the estimate.
	refreshTrustWindow = 5 * time.Minute
	// measuredAmpsFloor below which the charger-side measurement is treated
	// as noise and the last commanded current is used instead.
	measuredAmpsFloor = 0.5
	phaseVoltage      = 230.0
	phases            = 3
)

// Estimator owns the virtual SoC state. It must be updated exactly once per
// cycle, after load balancing and before target resolution.
type Estimator struct {
	virtualSoC  float64
	initialized bool
	lastUpdate  time.Time

	appliedState    model.ApplyState
	appliedAmps     float64
	appliedCarLimit float64

	refreshTriggered time.Time
	socBeforeRefresh float64

	log logger.Logger
}

// New creates an estimator. The applied car limit starts unknown (-1).
func New(log logger.Logger) *Estimator {
	return &Estimator{appliedCarLimit: -1, appliedAmps: -1, log: log}
}

// SoC returns the current virtual state of charge.
func (e *Estimator) SoC() float64 { return e.virtualSoC }

// AppliedState returns the last commanded charger state.
func (e *Estimator) AppliedState() model.ApplyState { return e.appliedState }

// AppliedAmps returns the last commanded current limit, -1 if none yet.
func (e *Estimator) AppliedAmps() float64 { return e.appliedAmps }

// AppliedCarLimit returns the last commanded car-side charge limit, -1 if
// none yet.
func (e *Estimator) AppliedCarLimit() float64 { return e.appliedCarLimit }

// NoteApplied records the state and current limit just commanded to the
// charger. The next Update integrates energy based on these.
func (e *Estimator) NoteApplied(state model.ApplyState, amps float64) {
	e.appliedState = state
	e.appliedAmps = amps
}

// NoteCarLimit records the car-side charge limit just commanded. The virtual
// SoC never integrates past this limit.
func (e *Estimator) NoteCarLimit(percent float64) {
	e.appliedCarLimit = percent
}

// NoteRefreshTriggered records that a forced vehicle telemetry refresh was
// issued, snapshotting the telemetry value seen right before. Within the
// trust window any changed reading is adopted, including regressions.
func (e *Estimator) NoteRefreshTriggered(now time.Time, socBefore float64) {
	e.refreshTriggered = now
	e.socBeforeRefresh = socBefore
}

// Update runs the sync and integration steps for one cycle. sensorSoC is the
// raw vehicle telemetry (nil when unavailable), measuredAmps the highest
// charger-side phase current. It returns the new virtual SoC.
func (e *Estimator) Update(now time.Time, sensorSoC *float64, measuredAmps float64, cfg model.ConfigSettings) float64 {
	e.sync(now, sensorSoC)
	e.integrate(now, measuredAmps, cfg)
	e.lastUpdate = now
	return e.virtualSoC
}

func (e *Estimator) sync(now time.Time, sensorSoC *float64) {
	if sensorSoC == nil {
		return
	}
	trusted := false
	if !e.refreshTriggered.IsZero() && now.Sub(e.refreshTriggered) < refreshTrustWindow {
		if *sensorSoC != e.socBeforeRefresh {
			trusted = true
		}
	}
	// Outside the trust window a lower reading is ignored: telemetry often
	// lags the energy we already delivered this session.
	if !e.initialized || *sensorSoC > e.virtualSoC || trusted {
		if trusted && *sensorSoC < e.virtualSoC {
			e.log.Debugf("adopting lower telemetry SoC %.1f%% after forced refresh (was %.1f%%)", *sensorSoC, e.virtualSoC)
		}
		e.virtualSoC = *sensorSoC
		e.initialized = true
	}
}

func (e *Estimator) integrate(now time.Time, measuredAmps float64, cfg model.ConfigSettings) {
	if e.appliedState != model.StateCharging {
		return
	}
	amps := measuredAmps
	if amps <= measuredAmpsFloor {
		amps = e.appliedAmps
	}
	if amps <= 0 || e.lastUpdate.IsZero() || cfg.CarCapacity <= 0 {
		return
	}

	hours := now.Sub(e.lastUpdate).Seconds() / 3600
	powerKW := phases * phaseVoltage * amps / 1000
	efficiency := 1 - cfg.ChargerLoss/100
	addedKWh := powerKW * hours * efficiency
	e.virtualSoC += addedKWh / cfg.CarCapacity * 100

	if e.appliedCarLimit > 0 && e.virtualSoC > e.appliedCarLimit {
		e.virtualSoC = e.appliedCarLimit
	}
	if e.virtualSoC > 100 {
		e.virtualSoC = 100
	}
}
