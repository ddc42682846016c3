// Package planner builds the per-cycle charging plan: it resolves the target
// SoC and deadline, selects the cheapest price slots needed to reach the
// target in time, and renders a cost summary. All stages are pure functions
// of their input; the plan orchestrator owns every piece of mutable state.
package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/logger"
	"github.com/Tiimber/ev-smart-charger/core/model"
	"github.com/Tiimber/ev-smart-charger/core/pricing"
)

// maxChargePowerKW caps the power estimate at a typical 16A three-phase
// home charger regardless of the fuse rating.
const maxChargePowerKW = 11.0

// Input is the full snapshot a planning cycle works from.
type Input struct {
	Now     time.Time
	Sensors model.SensorData
	// CurrentSoC is the virtual SoC, not the raw telemetry.
	CurrentSoC      float64
	Settings        model.UserSettings
	Config          model.ConfigSettings
	ManualOverride  bool
	OverloadMinutes float64
}

// Generate produces the plan for one cycle. It never returns an error: every
// degraded input (no prices, empty window, passed departure) maps to a
// permissive or inactive plan as described in the summary text.
func Generate(in Input, log logger.Logger) model.Plan {
	plan := model.Plan{
		PlannedTargetSoC: in.Settings.TargetSoC,
		Summary:          "Not calculated",
		OverloadMinutes:  in.OverloadMinutes,
	}

	if !in.Settings.SmartEnabled {
		plan.Summary = "Smart charging disabled. Charging immediately."
		plan.ShouldChargeNow = in.Sensors.Plugged
		return plan
	}

	if len(in.Sensors.Prices.Today) == 0 {
		if in.Config.HasPriceSensor {
			plan.Summary = "Error: Price sensor configured but no data received."
			log.Warnf("price sensor configured but no data received")
		} else {
			plan.Summary = "No Price Sensor. Load Balancing Mode."
		}
		plan.ShouldChargeNow = in.Sensors.Plugged
		return plan
	}

	window := pricing.BuildWindow(in.Sensors.Prices, in.Now)
	if len(window) == 0 {
		plan.Summary = "No future price data found."
		plan.ShouldChargeNow = in.Sensors.Plugged
		return plan
	}

	deadline, timeSource := Deadline(in.Settings, in.Sensors.Calendar, in.Now)
	plan.DepartureTime = deadline

	calcWindow := windowBefore(window, deadline)
	if len(calcWindow) == 0 {
		plan.Summary = "Departure passed. Charging."
		plan.ShouldChargeNow = in.Sensors.Plugged
		return plan
	}

	lastPriceEnd := window[0].End
	for _, s := range window[1:] {
		if s.End.After(lastPriceEnd) {
			lastPriceEnd = s.End
		}
	}
	horizonCovers := !lastPriceEnd.Before(deadline)

	_, calendarSoC, _ := nextCalendarEvent(in.Sensors.Calendar, in.Now)
	target, note := resolveTarget(in.Settings, in.ManualOverride, calendarSoC, calcWindow, horizonCovers)
	plan.PlannedTargetSoC = target

	slotDur := calcWindow[0].Duration()
	if slotDur <= 0 {
		slotDur = time.Hour
	}
	extraSlots := 0
	if in.OverloadMinutes > 0 {
		extraSlots = int(math.Ceil(in.OverloadMinutes / slotDur.Minutes()))
	}

	var selected []model.PriceSlot
	if in.CurrentSoC >= target {
		selected = maintenanceSlots(calcWindow, in.Settings.PriceLimit2)
		plan.Summary = fmt.Sprintf("Target reached (%d%%). Maintenance mode active.", int(in.CurrentSoC))
		log.Debugf("maintenance mode: %d slots at or below %.2f", len(selected), in.Settings.PriceLimit2)
	} else {
		socNeeded := target - in.CurrentSoC
		kwhNeeded := socNeeded / 100 * in.Config.CarCapacity
		efficiency := 1 - in.Config.ChargerLoss/100
		kwhToPull := kwhNeeded / efficiency
		estPowerKW := math.Min(3*230*in.Config.MaxFuse/1000, maxChargePowerKW)
		hoursNeeded := kwhToPull / estPowerKW

		// The price horizon may end before the deadline, typically in the
		// afternoon before tomorrow's prices are published. Committing to the
		// known, possibly expensive slots would be premature as long as a
		// late start can still reach the target.
		if !horizonCovers {
			latestStart := deadline.Add(-time.Duration((hoursNeeded + in.OverloadMinutes/60) * float64(time.Hour)))
			if in.Now.Before(latestStart) {
				plan.Summary = fmt.Sprintf(
					"Waiting for additional price data before planning. Known prices until %s; departure at %s %s. Latest start to reach target is ~%s.",
					lastPriceEnd.Format("15:04"), deadline.Format("15:04"), timeSource, latestStart.Format("15:04"),
				)
				plan.Schedule = buildSchedule(window, nil)
				log.Debugf("waiting for more price data, latest start %s", latestStart.Format("15:04"))
				return plan
			}
		}

		slotsNeeded := int(math.Ceil(hoursNeeded/slotDur.Hours())) + extraSlots
		selected = cheapestSlots(calcWindow, slotsNeeded)

		if len(selected) > 0 {
			end := selected[0].End
			for _, s := range selected[1:] {
				if s.End.After(end) {
					end = s.End
				}
			}
			plan.SessionEnd = &end
		}

		plan.Summary = composeSummary(summaryInput{
			Selected:     selected,
			Deadline:     deadline,
			TimeSource:   timeSource,
			Target:       target,
			Note:         note,
			CurrentSoC:   in.CurrentSoC,
			KWhToPull:    kwhToPull,
			Efficiency:   efficiency,
			EstPowerKW:   estPowerKW,
			SlotHours:    slotDur.Hours(),
			Capacity:     in.Config.CarCapacity,
			Currency:     in.Config.Currency,
			ExtraFee:     in.Settings.PriceExtraFee,
			VATPct:       in.Settings.PriceVAT,
		})
	}

	for _, s := range selected {
		if s.Contains(in.Now) {
			plan.ShouldChargeNow = true
			break
		}
	}

	plan.Schedule = buildSchedule(window, selected)

	var firstFuture *time.Time
	for _, s := range selected {
		if s.Start.After(in.Now) && (firstFuture == nil || s.Start.Before(*firstFuture)) {
			start := s.Start
			firstFuture = &start
		}
	}
	plan.ScheduledStart = firstFuture

	if !in.Sensors.Plugged {
		plan.ShouldChargeNow = false
	}
	return plan
}

func windowBefore(window []model.PriceSlot, deadline time.Time) []model.PriceSlot {
	out := make([]model.PriceSlot, 0, len(window))
	for _, s := range window {
		if s.Start.Before(deadline) {
			out = append(out, s)
		}
	}
	return out
}

// maintenanceSlots selects every slot cheap enough to top up charging
// losses once the target is already reached.
func maintenanceSlots(window []model.PriceSlot, priceLimit float64) []model.PriceSlot {
	var out []model.PriceSlot
	for _, s := range window {
		if s.Price <= priceLimit {
			out = append(out, s)
		}
	}
	return out
}

// cheapestSlots picks the n cheapest slots. The sort is stable so equally
// priced slots keep their chronological order and the earliest wins.
func cheapestSlots(window []model.PriceSlot, n int) []model.PriceSlot {
	if n <= 0 {
		return nil
	}
	sorted := make([]model.PriceSlot, len(window))
	copy(sorted, window)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// buildSchedule marks the selected slots inside the full price window and
// appends a synthetic zero-duration entry at the end so chart consumers can
// close the final step.
func buildSchedule(window, selected []model.PriceSlot) []model.ScheduleEntry {
	active := make(map[time.Time]bool, len(selected))
	for _, s := range selected {
		active[s.Start] = true
	}
	entries := make([]model.ScheduleEntry, 0, len(window)+1)
	for _, s := range window {
		entries = append(entries, model.ScheduleEntry{PriceSlot: s, Active: active[s.Start]})
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		entries = append(entries, model.ScheduleEntry{
			PriceSlot: model.PriceSlot{Start: last.End, End: last.End, Price: last.Price},
		})
	}
	return entries
}
