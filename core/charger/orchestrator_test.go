package charger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/logger"
	"github.com/Tiimber/ev-smart-charger/core/model"
)

var testCfg = model.ConfigSettings{
	MaxFuse:     20,
	ChargerLoss: 10,
	CarCapacity: 69,
	Currency:    "SEK",
}

// fakeController records every actuation command.
type fakeController struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("charger unreachable")
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeController) SetEnabled(_ context.Context, on bool) error {
	return f.record(fmt.Sprintf("enable=%v", on))
}

func (f *fakeController) SetCurrentLimit(_ context.Context, amps int) error {
	return f.record(fmt.Sprintf("amps=%d", amps))
}

func (f *fakeController) SetCarChargeLimit(_ context.Context, percent int) error {
	return f.record(fmt.Sprintf("carlimit=%d", percent))
}

func (f *fakeController) RequestCarRefresh(context.Context) error {
	return f.record("refresh")
}

func (f *fakeController) has(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeController) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// fakeStore counts saves and collects reports.
type fakeStore struct {
	mu      sync.Mutex
	saves   []PersistedState
	reports []model.SessionReport
}

func (f *fakeStore) Save(state PersistedState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, state)
	return nil
}

func (f *fakeStore) AppendReport(report model.SessionReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func newTestOrchestrator(ctrl Controller, store StateStore) *Orchestrator {
	settings := model.DefaultUserSettings()
	settings.SmartEnabled = false
	opts := Options{
		CyclePeriod:  30 * time.Second,
		StartupGrace: time.Nanosecond,
	}
	return New(testCfg, settings, opts, Deps{
		Controller: ctrl,
		Store:      store,
		Logger:     logger.Nop{},
	})
}

func pluggedSensors(soc float64) model.SensorData {
	return model.SensorData{Plugged: true, CarSoC: &soc}
}

func TestPlugInStartsSessionAndResetsOverride(t *testing.T) {
	ctrl := &fakeController{}
	store := &fakeStore{}
	o := newTestOrchestrator(ctrl, store)
	now := time.Now()

	if err := o.SetUserInput(KeyTargetSoCOverride, 55.0); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if !o.ManualOverrideActive() {
		t.Fatalf("override should be active")
	}

	if _, err := o.RunCycle(context.Background(), now, pluggedSensors(40)); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if o.ManualOverrideActive() {
		t.Fatalf("plug-in must clear the manual override")
	}
	if got := o.Settings().TargetSoCOverride; got != o.Settings().TargetSoC {
		t.Fatalf("override target should reset to standard, got %v", got)
	}
	found := false
	for _, entry := range o.ActionLog() {
		if strings.Contains(entry, "Session started") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session start in the action log")
	}
}

func TestUnplugFinalizesSessionAndDisablesCharger(t *testing.T) {
	ctrl := &fakeController{}
	store := &fakeStore{}
	o := newTestOrchestrator(ctrl, store)
	now := time.Now()

	if _, err := o.RunCycle(context.Background(), now, pluggedSensors(40)); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if _, err := o.RunCycle(context.Background(), now.Add(time.Minute), model.SensorData{}); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected one persisted report, got %d", len(store.reports))
	}
	if !ctrl.has("enable=false") {
		t.Fatalf("unplug should disable the charger")
	}
	if o.LastReport() == nil {
		t.Fatalf("last report should be retained")
	}
}

func TestChargingCommandsDeduplicated(t *testing.T) {
	ctrl := &fakeController{}
	o := newTestOrchestrator(ctrl, &fakeStore{})
	now := time.Now()

	in := pluggedSensors(40)
	// Plenty of headroom: available 19A.
	for i := 0; i < 3; i++ {
		if _, err := o.RunCycle(context.Background(), now.Add(time.Duration(i+1)*time.Minute), in); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	if got := ctrl.count("enable=true"); got != 1 {
		t.Fatalf("enable should be sent once, got %d", got)
	}
	if got := ctrl.count("amps=19"); got != 1 {
		t.Fatalf("current limit should be sent once, got %d", got)
	}
}

func TestSafetyFloorPausesAndAccruesOverload(t *testing.T) {
	ctrl := &fakeController{}
	o := newTestOrchestrator(ctrl, &fakeStore{})
	now := time.Now()

	in := pluggedSensors(40)
	in.GridL1 = 19 // house load eats the headroom: available < 6A

	// First cycle falls inside the startup grace and must not accrue.
	res, err := o.RunCycle(context.Background(), now.Add(time.Minute), in)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.State == model.StateCharging {
		t.Fatalf("charging below the 6A floor")
	}
	if res.Plan.OverloadMinutes != 0 {
		t.Fatalf("no accrual during startup grace, got %v", res.Plan.OverloadMinutes)
	}

	if _, err = o.RunCycle(context.Background(), now.Add(2*time.Minute), in); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	res, err = o.RunCycle(context.Background(), now.Add(3*time.Minute), in)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	// The second cycle accrued half a minute; the plan reads the counter at
	// the start of the next cycle.
	if res.Plan.OverloadMinutes != 0.5 {
		t.Fatalf("expected 0.5 accrued minutes visible, got %v", res.Plan.OverloadMinutes)
	}
	found := false
	for _, entry := range o.ActionLog() {
		if strings.Contains(entry, "Safety Cutoff") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected safety cutoff log entry")
	}
}

func TestMaintenanceModeRunsAtZeroAmps(t *testing.T) {
	ctrl := &fakeController{}
	o := newTestOrchestrator(ctrl, &fakeStore{})
	now := time.Now()

	in := pluggedSensors(85) // above the 80% target
	in.GridL1 = 19           // would trip the floor, but maintenance is exempt

	if _, err := o.RunCycle(context.Background(), now.Add(time.Minute), in); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	res, err := o.RunCycle(context.Background(), now.Add(2*time.Minute), in)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.State != model.StateMaintenance {
		t.Fatalf("expected maintenance state, got %v", res.State)
	}
	if res.CommandedAmps != 0 {
		t.Fatalf("maintenance runs at 0A, got %v", res.CommandedAmps)
	}
	if res.Plan.OverloadMinutes != 0 {
		t.Fatalf("maintenance must not count as overload prevention")
	}
}

func TestStartupGraceSuppressesCommands(t *testing.T) {
	ctrl := &fakeController{}
	settings := model.DefaultUserSettings()
	settings.SmartEnabled = false
	o := New(testCfg, settings, Options{StartupGrace: time.Hour}, Deps{
		Controller: ctrl,
		Logger:     logger.Nop{},
	})

	if _, err := o.RunCycle(context.Background(), time.Now(), pluggedSensors(40)); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if ctrl.has("enable=true") || ctrl.has("amps=19") {
		t.Fatalf("no commands during the startup grace period")
	}
}

func TestFailedCommandRetriesNextCycle(t *testing.T) {
	ctrl := &fakeController{fail: true}
	o := newTestOrchestrator(ctrl, &fakeStore{})
	now := time.Now()

	// First cycle is grace, second hits the failing controller.
	if _, err := o.RunCycle(context.Background(), now.Add(time.Minute), pluggedSensors(40)); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	res, err := o.RunCycle(context.Background(), now.Add(2*time.Minute), pluggedSensors(40))
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.State == model.StateCharging {
		t.Fatalf("failed commands must not advance the applied state")
	}

	ctrl.mu.Lock()
	ctrl.fail = false
	ctrl.mu.Unlock()

	res, err = o.RunCycle(context.Background(), now.Add(3*time.Minute), pluggedSensors(40))
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.State != model.StateCharging {
		t.Fatalf("recovered controller should charge, got %v", res.State)
	}
	if !ctrl.has("amps=19") {
		t.Fatalf("current limit should be retried")
	}
}

func TestChargingBufferExtendsSession(t *testing.T) {
	o := newTestOrchestrator(&fakeController{}, &fakeStore{})
	now := time.Now()

	end := now.Add(-time.Minute)
	plan := model.Plan{SessionEnd: &end}
	o.applyChargingBuffer(now, &plan)
	if !plan.ShouldChargeNow {
		t.Fatalf("within the buffer window charging should continue")
	}
	if plan.Summary != "Charging Buffer Active." {
		t.Fatalf("unexpected summary %q", plan.Summary)
	}

	plan = model.Plan{SessionEnd: &end}
	o.applyChargingBuffer(now.Add(20*time.Minute), &plan)
	if plan.ShouldChargeNow {
		t.Fatalf("buffer expired, charging must stop")
	}
}

func TestChargingBufferChargesAtFullRate(t *testing.T) {
	ctrl := &fakeController{}
	o := newTestOrchestrator(ctrl, &fakeStore{})
	now := time.Now()

	end := now.Add(-time.Minute)
	o.lastScheduledEnd = &end
	plan := model.Plan{PlannedTargetSoC: 80}
	o.applyChargingBuffer(now, &plan)
	if !plan.ShouldChargeNow {
		t.Fatalf("within the buffer window charging should continue")
	}

	// The target was just reached; the buffer still runs at full rate
	// instead of dropping into 0A maintenance.
	amps, state := o.applyControl(context.Background(), now, pluggedSensors(85), plan, 14, 85)
	if state != model.StateCharging {
		t.Fatalf("expected charging during the buffer, got %v", state)
	}
	if amps != 14 {
		t.Fatalf("expected full rate 14A, got %v", amps)
	}
}

func TestSetUserInputValidation(t *testing.T) {
	o := newTestOrchestrator(&fakeController{}, &fakeStore{})

	if err := o.SetUserInput("bogus_key", 1); err == nil {
		t.Fatalf("unknown key must fail")
	}
	if err := o.SetUserInput(KeyDepartureTime, "25:99"); err == nil {
		t.Fatalf("invalid clock time must fail")
	}
	if err := o.SetUserInput(KeyDepartureTime, "06:30"); err != nil {
		t.Fatalf("valid clock time: %v", err)
	}
	if got := o.Settings().DepartureTime; got.Hour != 6 || got.Minute != 30 {
		t.Fatalf("departure not applied: %v", got)
	}
	if err := o.SetUserInput(KeyPriceLimit1, "0.75"); err != nil {
		t.Fatalf("string number: %v", err)
	}
	if o.Settings().PriceLimit1 != 0.75 {
		t.Fatalf("price limit not applied")
	}
}

func TestSetUserInputRejectsOutOfRangeSoC(t *testing.T) {
	o := newTestOrchestrator(&fakeController{}, &fakeStore{})

	// The settings topic carries raw user input with no bounded widget in
	// front of it, so percentages outside the battery range must be refused.
	for _, key := range []string{
		KeyTargetSoC, KeyTargetSoCOverride, KeyTargetSoC1, KeyTargetSoC2, KeyMinGuaranteedSoC,
	} {
		if err := o.SetUserInput(key, 150.0); err == nil {
			t.Fatalf("%s: 150%% must be rejected", key)
		}
		if err := o.SetUserInput(key, -5.0); err == nil {
			t.Fatalf("%s: negative percentage must be rejected", key)
		}
	}
	if got := o.Settings().TargetSoCOverride; got != o.Settings().TargetSoC {
		t.Fatalf("rejected input must not change the setting, got %v", got)
	}
	if o.ManualOverrideActive() {
		t.Fatalf("rejected override must not activate manual mode")
	}
	if err := o.SetUserInput(KeyTargetSoCOverride, 100.0); err != nil {
		t.Fatalf("full battery is a valid target: %v", err)
	}
}

func TestClearManualOverride(t *testing.T) {
	o := newTestOrchestrator(&fakeController{}, &fakeStore{})

	mutations := 0
	o.OnMutation(func() { mutations++ })

	if err := o.SetUserInput(KeyTargetSoCOverride, 55.0); err != nil {
		t.Fatalf("set override: %v", err)
	}
	o.ClearManualOverride()

	if o.ManualOverrideActive() {
		t.Fatalf("override should be cleared")
	}
	if got := o.Settings().TargetSoCOverride; got != o.Settings().TargetSoC {
		t.Fatalf("override target should reset, got %v", got)
	}
	if mutations != 2 {
		t.Fatalf("each mutation should schedule a recomputation, got %d", mutations)
	}
}

func TestRestoreReinstatesPersistedState(t *testing.T) {
	o := newTestOrchestrator(&fakeController{}, &fakeStore{})

	report := model.SessionReport{ID: "r1", AddedKWh: 3.2}
	o.Restore(PersistedState{
		UserSettings:   model.UserSettings{TargetSoC: 75, SmartEnabled: true},
		ManualOverride: true,
		ActionLog:      []string{"[2025-03-10 10:00:00] restored"},
		LastReport:     &report,
	})

	if o.Settings().TargetSoC != 75 {
		t.Fatalf("settings not restored")
	}
	if !o.ManualOverrideActive() {
		t.Fatalf("override flag not restored")
	}
	if len(o.ActionLog()) != 1 {
		t.Fatalf("action log not restored")
	}
	if o.LastReport() == nil || o.LastReport().ID != "r1" {
		t.Fatalf("report not restored")
	}
}
