// Package session records per-cycle telemetry into charge sessions and
// produces energy/cost reports when the car is unplugged. It also tracks the
// minutes of charging lost to overload safety cutoffs, which the planner
// compensates with extra slots.
package session

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Tiimber/ev-smart-charger/core/logger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

const (
	actionLogRetention = 24 * time.Hour
	logTimeFormat      = "2006-01-02 15:04:05"
)

// Accountant owns the active session, the rolling action log and the
// overload prevention counter. It is driven sequentially by the plan
// orchestrator and needs no locking.
type Accountant struct {
	log logger.Logger

	// actionLog holds timestamped entries, newest first, pruned at 24h.
	actionLog []string

	current           *model.Session
	lastReport        *model.SessionReport
	overloadMinutes   float64
	chargedInInterval bool
}

// NewAccountant creates an accountant with an empty log and no session.
func NewAccountant(log logger.Logger) *Accountant {
	return &Accountant{log: log}
}

// Active reports whether a session is in progress.
func (a *Accountant) Active() bool { return a.current != nil }

// OverloadMinutes returns the charging time lost to safety cutoffs since the
// last plug-in. It is intentionally not persisted: a restart starts at zero.
func (a *Accountant) OverloadMinutes() float64 { return a.overloadMinutes }

// LastReport returns the most recent finalised session report, nil if none.
func (a *Accountant) LastReport() *model.SessionReport { return a.lastReport }

// RestoreLastReport reinstates a report loaded from the external store.
func (a *Accountant) RestoreLastReport(r *model.SessionReport) { a.lastReport = r }

// ActionLog returns the rolling log, newest first.
func (a *Accountant) ActionLog() []string { return a.actionLog }

// RestoreActionLog reinstates log entries loaded from the external store.
func (a *Accountant) RestoreActionLog(entries []string) { a.actionLog = entries }

// AddLog prepends a timestamped entry, prunes entries older than 24h, and
// mirrors the entry into the active session log.
func (a *Accountant) AddLog(now time.Time, message string) {
	entry := fmt.Sprintf("[%s] %s", now.Format(logTimeFormat), message)
	a.actionLog = append([]string{entry}, a.actionLog...)

	cutoff := now.Add(-actionLogRetention)
	for len(a.actionLog) > 0 {
		last := a.actionLog[len(a.actionLog)-1]
		ts, err := parseLogTime(last)
		if err != nil {
			a.actionLog = a.actionLog[:len(a.actionLog)-1]
			continue
		}
		if ts.Before(cutoff) {
			a.actionLog = a.actionLog[:len(a.actionLog)-1]
			continue
		}
		break
	}

	if a.current != nil {
		a.current.Log = append(a.current.Log, entry)
	}
}

func parseLogTime(entry string) (time.Time, error) {
	if len(entry) < len(logTimeFormat)+2 || entry[0] != '[' {
		return time.Time{}, fmt.Errorf("malformed log entry")
	}
	return time.ParseInLocation(logTimeFormat, entry[1:1+len(logTimeFormat)], time.Local)
}

// Start opens a new session at plug-in and resets the overload counter.
func (a *Accountant) Start(now time.Time, initialSoC float64) {
	a.AddLog(now, "Car plugged in. Session started.")
	a.current = &model.Session{
		ID:        uuid.NewString(),
		StartTime: now,
	}
	a.overloadMinutes = 0
	a.chargedInInterval = false
	a.log.Infof("session %s started at %.1f%% SoC", a.current.ID, initialSoC)
}

// MarkCharging notes that current actually flowed during this cycle, so the
// next recorded point carries the charging flag even if the charger paused
// again before record time.
func (a *Accountant) MarkCharging() { a.chargedInInterval = true }

// AddOverloadMinutes accumulates time lost to a safety cutoff.
func (a *Accountant) AddOverloadMinutes(minutes float64) {
	a.overloadMinutes += minutes
	if a.current != nil {
		a.current.OverloadMinutes += minutes
	}
}

// Record appends a data point to the active session. price must already be
// fee/VAT adjusted. No-op without an active session.
func (a *Accountant) Record(now time.Time, soc, amps, price float64, state model.ApplyState, sensorRefresh bool) {
	if a.current == nil {
		return
	}
	a.current.History = append(a.current.History, model.DataPoint{
		Time:          now,
		SoC:           soc,
		Amps:          amps,
		Charging:      state == model.StateCharging || a.chargedInInterval,
		Price:         price,
		SensorRefresh: sensorRefresh,
	})
	a.chargedInInterval = false
}

// Stop finalises the session at unplug and returns the report. finalSoC
// overrides the last recorded SoC when the unplug telemetry is fresher.
// Returns nil if no session was active.
func (a *Accountant) Stop(now time.Time, currency string, finalSoC *float64) *model.SessionReport {
	a.AddLog(now, "Unplugged. Session ended.")
	if a.current == nil {
		return nil
	}
	report := a.totals(now, currency, finalSoC)
	a.lastReport = &report
	a.log.Infof("session %s ended: %.2f kWh, %.2f %s", report.ID, report.AddedKWh, report.TotalCost, currency)
	a.current = nil
	return &report
}

// Totals computes the running totals of the active session without ending
// it, for on-demand reporting.
func (a *Accountant) Totals(now time.Time, currency string) (model.SessionReport, bool) {
	if a.current == nil {
		return model.SessionReport{}, false
	}
	return a.totals(now, currency, nil), true
}

// totals stepwise-integrates energy and cost across consecutive points. A
// session with fewer than two points yields a zero-energy report rather than
// failing.
func (a *Accountant) totals(now time.Time, currency string, finalSoC *float64) model.SessionReport {
	history := a.current.History

	report := model.SessionReport{
		ID:              a.current.ID,
		StartTime:       a.current.StartTime,
		EndTime:         now,
		Currency:        currency,
		GraphData:       history,
		Log:             a.current.Log,
		OverloadMinutes: a.current.OverloadMinutes,
	}
	if len(history) == 0 {
		return report
	}

	report.StartSoC = history[0].SoC
	report.EndSoC = history[len(history)-1].SoC
	if finalSoC != nil {
		report.EndSoC = *finalSoC
	}
	if len(history) < 2 {
		return report
	}

	totalKWh, totalCost := 0.0, 0.0
	prev := history[0]
	for _, point := range history[1:] {
		deltaHours := point.Time.Sub(prev.Time).Seconds() / 3600
		if prev.Charging && prev.Amps > 0 {
			// Three-phase draw assumed, matching the planner's estimate.
			powerKW := 3 * 230 * prev.Amps / 1000
			kwh := powerKW * deltaHours
			totalKWh += kwh
			totalCost += kwh * prev.Price
		}
		prev = point
	}
	report.AddedKWh = round2(totalKWh)
	report.TotalCost = round2(totalCost)
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
