package session

import (
	"strings"
	"testing"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/logger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

func TestSinglePointSessionReportsZeroEnergy(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	now := time.Now()

	a.Start(now, 40)
	a.Record(now, 40, 0, 1.0, model.StatePaused, false)

	report := a.Stop(now.Add(time.Minute), "SEK", nil)
	if report == nil {
		t.Fatalf("expected a report")
	}
	if report.AddedKWh != 0 || report.TotalCost != 0 {
		t.Fatalf("single point must report zero energy, got %v kWh / %v", report.AddedKWh, report.TotalCost)
	}
	if report.StartSoC != 40 || report.EndSoC != 40 {
		t.Fatalf("unexpected SoC range %v-%v", report.StartSoC, report.EndSoC)
	}
}

func TestStopWithoutSessionReturnsNil(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	if report := a.Stop(time.Now(), "SEK", nil); report != nil {
		t.Fatalf("expected nil without an active session")
	}
}

func TestSessionEnergyAndCostIntegration(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	start := time.Date(2025, 3, 10, 1, 0, 0, 0, time.Local)

	a.Start(start, 40)
	// Two 30-minute intervals at 16A, one paused interval.
	a.Record(start, 40, 16, 1.0, model.StateCharging, false)
	a.Record(start.Add(30*time.Minute), 44, 16, 2.0, model.StateCharging, false)
	a.Record(start.Add(60*time.Minute), 48, 0, 2.0, model.StatePaused, false)
	a.Record(start.Add(90*time.Minute), 48, 0, 2.0, model.StatePaused, false)

	report := a.Stop(start.Add(2*time.Hour), "SEK", nil)
	// 11.04 kW for two half hours.
	if report.AddedKWh != 11.04 {
		t.Fatalf("expected 11.04 kWh, got %v", report.AddedKWh)
	}
	// First interval at 1.0, second at 2.0 per kWh.
	if report.TotalCost != 16.56 {
		t.Fatalf("expected 16.56, got %v", report.TotalCost)
	}
	if report.StartSoC != 40 || report.EndSoC != 48 {
		t.Fatalf("unexpected SoC range %v-%v", report.StartSoC, report.EndSoC)
	}
	if len(report.GraphData) != 4 {
		t.Fatalf("expected 4 graph points, got %d", len(report.GraphData))
	}
}

func TestFinalSoCOverridesLastPoint(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	now := time.Now()
	a.Start(now, 40)
	a.Record(now, 40, 0, 1.0, model.StatePaused, false)
	a.Record(now.Add(time.Minute), 41, 0, 1.0, model.StatePaused, false)

	fresh := 43.5
	report := a.Stop(now.Add(2*time.Minute), "SEK", &fresh)
	if report.EndSoC != 43.5 {
		t.Fatalf("unplug telemetry should win, got %v", report.EndSoC)
	}
}

func TestChargedInIntervalFlagCarriesToNextPoint(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	now := time.Now()
	a.Start(now, 40)

	// Current flowed mid-cycle but the charger paused again before the
	// record: the point still counts as charging.
	a.MarkCharging()
	a.Record(now, 40, 8, 1.0, model.StatePaused, false)
	a.Record(now.Add(time.Minute), 40, 0, 1.0, model.StatePaused, false)

	report := a.Stop(now.Add(2*time.Minute), "SEK", nil)
	if !report.GraphData[0].Charging {
		t.Fatalf("first point should carry the charging flag")
	}
	if report.GraphData[1].Charging {
		t.Fatalf("flag must reset after one point")
	}
	if report.AddedKWh == 0 {
		t.Fatalf("charged interval should contribute energy")
	}
}

func TestOverloadMinutesResetOnStart(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	now := time.Now()
	a.Start(now, 40)
	a.AddOverloadMinutes(0.5)
	a.AddOverloadMinutes(0.5)
	if a.OverloadMinutes() != 1 {
		t.Fatalf("expected 1 minute, got %v", a.OverloadMinutes())
	}
	report := a.Stop(now.Add(time.Hour), "SEK", nil)
	if report.OverloadMinutes != 1 {
		t.Fatalf("report should carry session overload minutes")
	}

	a.Start(now.Add(2*time.Hour), 40)
	if a.OverloadMinutes() != 0 {
		t.Fatalf("plug-in must reset the counter, got %v", a.OverloadMinutes())
	}
}

func TestActionLogNewestFirstAndPruned(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

	a.AddLog(base.Add(-30*time.Hour), "ancient")
	a.AddLog(base.Add(-2*time.Hour), "older")
	a.AddLog(base, "newest")

	log := a.ActionLog()
	if len(log) != 2 {
		t.Fatalf("expected ancient entry pruned, got %d entries", len(log))
	}
	if !strings.HasSuffix(log[0], "newest") || !strings.HasSuffix(log[1], "older") {
		t.Fatalf("expected newest first, got %v", log)
	}
	if !strings.HasPrefix(log[0], "["+base.Format("2006-01-02 15:04:05")+"]") {
		t.Fatalf("unexpected timestamp format: %s", log[0])
	}
}

func TestSessionLogMirrorsActionLog(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	now := time.Now()
	a.Start(now, 40)
	a.AddLog(now.Add(time.Minute), "Load Balancing: Set charger limit to 10A")
	a.Record(now, 40, 10, 1.0, model.StateCharging, false)
	a.Record(now.Add(time.Minute), 41, 10, 1.0, model.StateCharging, false)

	report := a.Stop(now.Add(2*time.Minute), "SEK", nil)
	found := false
	for _, entry := range report.Log {
		if strings.Contains(entry, "Set charger limit to 10A") {
			found = true
		}
	}
	if !found {
		t.Fatalf("session log should contain the action entry")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	a := NewAccountant(logger.Nop{})
	entries := []string{"[2025-03-10 11:00:00] restored"}
	a.RestoreActionLog(entries)
	if len(a.ActionLog()) != 1 {
		t.Fatalf("restore lost entries")
	}

	report := &model.SessionReport{ID: "abc", AddedKWh: 5}
	a.RestoreLastReport(report)
	if a.LastReport() == nil || a.LastReport().ID != "abc" {
		t.Fatalf("restore lost report")
	}
}
