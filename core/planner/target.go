package planner

import (
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
)

// Target resolution source notes, rendered into the plan summary.
const (
	noteManualOverride = "(Manual Override)"
	noteCalendarEvent  = "(Calendar Event)"
	noteSmart          = "(Smart)"
	noteSmartWaiting   = "(Smart - Waiting for prices)"

	timeSourceCalendar = "(Calendar)"
	timeSourceManual   = "(Manual)"
)

// Deadline resolves the charging deadline: a calendar event within the
// horizon wins, then the departure override, then the standard departure
// time. A time of day already passed rolls to the next day.
func Deadline(settings model.UserSettings, events []model.CalendarEvent, now time.Time) (deadline time.Time, source string) {
	if calStart, _, ok := nextCalendarEvent(events, now); ok {
		return calStart, timeSourceCalendar
	}
	depart := settings.DepartureTime
	if settings.DepartureOverride != nil {
		depart = *settings.DepartureOverride
	}
	return depart.Next(now), timeSourceManual
}

// resolveTarget decides the planned end-of-session SoC. Priority: manual
// override, calendar event percentage, opportunistic pricing (only when the
// price horizon covers the deadline), configured base target. The result is
// clamped to the guaranteed minimum.
func resolveTarget(
	settings model.UserSettings,
	manualOverride bool,
	calendarSoC *float64,
	window []model.PriceSlot,
	horizonCoversDeadline bool,
) (target float64, note string) {
	switch {
	case manualOverride:
		target = settings.TargetSoCOverride
		note = noteManualOverride
	case calendarSoC != nil:
		target = *calendarSoC
		note = noteCalendarEvent
	case horizonCoversDeadline:
		target = settings.TargetSoC
		note = noteSmart
		if minPrice, ok := minSlotPrice(window); ok {
			if minPrice <= settings.PriceLimit1 {
				target = maxFloat(target, settings.TargetSoC1)
			} else if minPrice <= settings.PriceLimit2 {
				target = maxFloat(target, settings.TargetSoC2)
			}
		}
	default:
		// The known prices end before the deadline; raising the target on a
		// partial window would commit to a possibly-suboptimal plan.
		target = settings.TargetSoC
		note = noteSmartWaiting
	}
	// Restored or externally injected settings may carry values a bounded
	// input would have refused; the plan target never exceeds a full battery.
	target = maxFloat(target, settings.MinGuaranteedSoC)
	if target > 100 {
		target = 100
	}
	return target, note
}

func minSlotPrice(window []model.PriceSlot) (float64, bool) {
	if len(window) == 0 {
		return 0, false
	}
	m := window[0].Price
	for _, s := range window[1:] {
		if s.Price < m {
			m = s.Price
		}
	}
	return m, true
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
