package charger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
)

// applyControl turns the plan and the available current into charger
// commands. Commands are deduplicated against the last applied state so the
// charger API is not spammed every 30 seconds. Failed commands are logged
// and retried naturally on the next cycle because the applied state is only
// advanced on success.
func (o *Orchestrator) applyControl(ctx context.Context, now time.Time, in model.SensorData, plan model.Plan, available, virtualSoC float64) (commandedAmps float64, state model.ApplyState) {
	state = o.estimator.AppliedState()
	commanded := o.estimator.AppliedAmps()
	if commanded < 0 {
		commanded = 0
	}

	if now.Sub(o.startedAt) < o.opts.StartupGrace {
		return commanded, state
	}
	if !in.Plugged {
		return commanded, state
	}

	shouldCharge := plan.ShouldChargeNow
	safeAmps := math.Floor(available)

	// Maintenance mode runs at 0A, so the 6A floor neither blocks it nor
	// counts it as overload prevention. The post-session buffer window keeps
	// charging at full rate even when the target was just reached.
	maintenanceNow := shouldCharge && !o.bufferActive && virtualSoC >= plan.PlannedTargetSoC

	var targetAmps float64
	var desired model.ApplyState
	if maintenanceNow {
		targetAmps = 0
		desired = model.StateMaintenance
	} else {
		if safeAmps < safetyFloorAmps {
			if shouldCharge {
				o.addLog(now, fmt.Sprintf("Safety Cutoff: Available %dA is below minimum %dA. Pausing.", int(safeAmps), safetyFloorAmps))
				o.sessions.AddOverloadMinutes(o.opts.CyclePeriod.Minutes())
			}
			shouldCharge = false
		}
		if shouldCharge {
			targetAmps = safeAmps
			desired = model.StateCharging
		} else {
			targetAmps = 0
			desired = model.StatePaused
		}
	}

	o.applyCarLimit(ctx, now, plan, desired)

	if shouldCharge {
		if targetAmps > 0 {
			o.sessions.MarkCharging()
		}
		if desired != o.estimator.AppliedState() {
			if err := o.controller.SetEnabled(ctx, true); err != nil {
				o.log.Errorf("enable charger: %v", err)
				return commanded, o.estimator.AppliedState()
			}
			if desired == model.StateMaintenance {
				o.addLog(now, "Switched Charging state to: MAINTENANCE (0A)")
			} else {
				o.addLog(now, "Switched Charging state to: CHARGING")
			}
		}
		if targetAmps != o.estimator.AppliedAmps() {
			if err := o.controller.SetCurrentLimit(ctx, int(targetAmps)); err != nil {
				o.log.Errorf("set current limit: %v", err)
				return commanded, o.estimator.AppliedState()
			}
			if targetAmps > 0 {
				o.addLog(now, fmt.Sprintf("Load Balancing: Set charger limit to %dA", int(targetAmps)))
			}
		}
		o.estimator.NoteApplied(desired, targetAmps)
		return targetAmps, desired
	}

	stopping := o.estimator.AppliedState() == model.StateCharging || o.estimator.AppliedState() == model.StateMaintenance
	if stopping {
		// Outside planned windows the limiter is left alone to avoid
		// unnecessary toggling; only an active stop pulls it to zero.
		if err := o.controller.SetCurrentLimit(ctx, 0); err != nil {
			o.log.Errorf("set current limit to 0: %v", err)
			return commanded, o.estimator.AppliedState()
		}
		o.addLog(now, "Pausing: Set charger limit to 0A")
	}
	if desired != o.estimator.AppliedState() {
		// Keep the charger enabled while plugged so the pilot signal stays
		// present; some vehicle integrations report "unplugged" when the
		// EVSE is fully disabled.
		o.addLog(now, "Paused (plugged): Keeping charger enabled")
		o.estimator.NoteApplied(desired, 0)
	} else if stopping {
		o.estimator.NoteApplied(desired, 0)
	}
	return 0, desired
}

// applyCarLimit pushes the planned target SoC as the car-side charge limit
// when it changed or a charge session is starting.
func (o *Orchestrator) applyCarLimit(ctx context.Context, now time.Time, plan model.Plan, desired model.ApplyState) {
	targetSoC := int(plan.PlannedTargetSoC)
	starting := desired == model.StateCharging && o.estimator.AppliedState() != model.StateCharging
	if float64(targetSoC) == o.estimator.AppliedCarLimit() && !starting {
		return
	}
	if err := o.controller.SetCarChargeLimit(ctx, targetSoC); err != nil {
		o.log.Errorf("set car charge limit: %v", err)
		return
	}
	o.estimator.NoteCarLimit(float64(targetSoC))
	o.addLog(now, fmt.Sprintf("Set Car Limit: %d%%", targetSoC))
}

// manageCarRefresh forces a vehicle telemetry refresh according to the
// configured policy, feeding the estimator's trust window.
func (o *Orchestrator) manageCarRefresh(ctx context.Context, now time.Time, in model.SensorData, plan model.Plan) {
	if !in.Plugged {
		return
	}
	interval, atTarget, ok := o.opts.CarRefresh.interval()
	if !ok {
		return
	}
	if !o.lastCarRefresh.IsZero() && now.Sub(o.lastCarRefresh) <= interval {
		return
	}
	if atTarget && o.estimator.SoC() < plan.PlannedTargetSoC {
		return
	}

	snapshot := 0.0
	if in.CarSoC != nil {
		snapshot = *in.CarSoC
	}
	o.addLog(now, fmt.Sprintf("Forcing Car Refresh (Current: %.0f%%)", snapshot))
	if err := o.controller.RequestCarRefresh(ctx); err != nil {
		o.log.Errorf("car refresh: %v", err)
		return
	}
	o.lastCarRefresh = now
	o.refreshedCycle = true
	o.estimator.NoteRefreshTriggered(now, snapshot)
}
