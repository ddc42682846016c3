// Package charger contains the plan orchestrator: the single owner of all
// mutable charging state. Every control cycle it composes the load balancer,
// the virtual SoC estimator, the planner and the session accountant into one
// Plan, applies the result through the actuation collaborator, and records
// session telemetry. Cycles run strictly sequentially; the mutex only guards
// against user mutations arriving from other goroutines.
package charger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/events"
	"github.com/Tiimber/ev-smart-charger/core/loadbalance"
	"github.com/Tiimber/ev-smart-charger/core/logger"
	"github.com/Tiimber/ev-smart-charger/core/metrics"
	"github.com/Tiimber/ev-smart-charger/core/model"
	"github.com/Tiimber/ev-smart-charger/core/planner"
	"github.com/Tiimber/ev-smart-charger/core/pricing"
	"github.com/Tiimber/ev-smart-charger/core/session"
	"github.com/Tiimber/ev-smart-charger/core/soc"
	"github.com/Tiimber/ev-smart-charger/internal/eventbus"
)

// safetyFloorAmps is the minimum charging current. Below it charging is
// paused, except in maintenance mode which runs at 0A.
const safetyFloorAmps = 6

// PersistedState is the snapshot round-tripped through the external store.
// The overload counter is intentionally absent: it resets at each plug-in.
type PersistedState struct {
	UserSettings   model.UserSettings   `json:"user_settings"`
	ManualOverride bool                 `json:"manual_override_active"`
	ActionLog      []string             `json:"action_log"`
	LastReport     *model.SessionReport `json:"last_session_data"`
}

// StateStore persists orchestrator state between restarts. Implementations
// live under infra/store.
type StateStore interface {
	Save(state PersistedState) error
	AppendReport(report model.SessionReport) error
}

// CycleResult is the per-cycle output handed to external collaborators.
type CycleResult struct {
	Plan          model.Plan
	AvailableAmps float64
	VirtualSoC    float64
	PriceStatus   string
	CommandedAmps float64
	State         model.ApplyState
	Latency       time.Duration
}

// Deps are the orchestrator's collaborators. Nil fields get no-op defaults.
type Deps struct {
	Controller Controller
	Store      StateStore
	Bus        *eventbus.Bus
	Metrics    metrics.Sink
	Logger     logger.Logger
}

// Orchestrator is the single writer of all mutable charging state.
type Orchestrator struct {
	mu sync.Mutex

	cfg  model.ConfigSettings
	opts Options

	settings       model.UserSettings
	manualOverride bool

	estimator *soc.Estimator
	sessions  *session.Accountant

	controller Controller
	store      StateStore
	bus        *eventbus.Bus
	sink       metrics.Sink
	log        logger.Logger

	prevPlugged      bool
	lastScheduledEnd *time.Time
	bufferActive     bool
	lastCarRefresh   time.Time
	refreshedCycle   bool
	startedAt        time.Time
	lastPlan         model.Plan

	// onMutation schedules one recomputation cycle after a settings change.
	onMutation func()
}

// New creates an orchestrator with the given installation config and user
// setting defaults.
func New(cfg model.ConfigSettings, defaults model.UserSettings, opts Options, deps Deps) *Orchestrator {
	opts.SetDefaults()
	if deps.Logger == nil {
		deps.Logger = logger.Nop{}
	}
	if deps.Controller == nil {
		deps.Controller = NopController{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopSink{}
	}
	return &Orchestrator{
		cfg:        cfg,
		opts:       opts,
		settings:   defaults,
		estimator:  soc.New(deps.Logger),
		sessions:   session.NewAccountant(deps.Logger),
		controller: deps.Controller,
		store:      deps.Store,
		bus:        deps.Bus,
		sink:       deps.Metrics,
		log:        deps.Logger,
	}
}

// SetController replaces the actuation collaborator. The transport adapter
// is built after the orchestrator, so startup injects it here.
func (o *Orchestrator) SetController(c Controller) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c == nil {
		c = NopController{}
	}
	o.controller = c
}

// Restore reinstates persisted state. Call before the first cycle.
func (o *Orchestrator) Restore(state PersistedState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings = state.UserSettings
	o.manualOverride = state.ManualOverride
	o.sessions.RestoreActionLog(state.ActionLog)
	o.sessions.RestoreLastReport(state.LastReport)
}

// OnMutation registers the callback that schedules an out-of-cycle
// recomputation after a user settings change.
func (o *Orchestrator) OnMutation(fn func()) {
	o.mu.Lock()
	o.onMutation = fn
	o.mu.Unlock()
}

// Settings returns a copy of the current user settings.
func (o *Orchestrator) Settings() model.UserSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// ManualOverrideActive reports whether the user pinned the next session
// target.
func (o *Orchestrator) ManualOverrideActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.manualOverride
}

// LastPlan returns the plan from the most recent successful cycle.
func (o *Orchestrator) LastPlan() model.Plan {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastPlan
}

// ActionLog returns the rolling action log, newest first.
func (o *Orchestrator) ActionLog() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions.ActionLog()
}

// LastReport returns the report of the last finished session, nil if none.
func (o *Orchestrator) LastReport() *model.SessionReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions.LastReport()
}

// RunCycle executes one control cycle. Any failure leaves the previous plan
// in effect; no partial state is committed past the failing stage.
func (o *Orchestrator) RunCycle(ctx context.Context, now time.Time, in model.SensorData) (res CycleResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("cycle panic: %v", r)
			res = CycleResult{Plan: o.lastPlan}
			err = fmt.Errorf("update failed: %v", r)
		}
	}()

	started := time.Now()
	if o.startedAt.IsZero() {
		o.startedAt = now
	}
	o.refreshedCycle = false

	o.handlePlugEdge(ctx, now, in)

	virtualSoC := o.estimator.Update(now, in.CarSoC, in.MeasuredChargerAmps(), o.cfg)
	available := loadbalance.Available(in, o.cfg.MaxFuse)
	priceStatus := pricing.Analyze(in.Prices.Today, now)

	plan := planner.Generate(planner.Input{
		Now:             now,
		Sensors:         in,
		CurrentSoC:      virtualSoC,
		Settings:        o.settings,
		Config:          o.cfg,
		ManualOverride:  o.manualOverride,
		OverloadMinutes: o.sessions.OverloadMinutes(),
	}, o.log)

	o.applyChargingBuffer(now, &plan)
	o.manageCarRefresh(ctx, now, in, plan)

	commanded, state := o.applyControl(ctx, now, in, plan, available, virtualSoC)
	o.recordDataPoint(now, in, virtualSoC)

	o.lastPlan = plan
	res = CycleResult{
		Plan:          plan,
		AvailableAmps: available,
		VirtualSoC:    virtualSoC,
		PriceStatus:   priceStatus,
		CommandedAmps: commanded,
		State:         state,
		Latency:       time.Since(started),
	}
	o.publish(events.PlanEvent{Time: now, Plan: plan, AvailableAmps: available, VirtualSoC: virtualSoC})
	if serr := o.sink.RecordCycle(metrics.CycleSample{
		Time:            now,
		Duration:        res.Latency,
		AvailableAmps:   available,
		VirtualSoC:      virtualSoC,
		TargetSoC:       plan.PlannedTargetSoC,
		CommandedAmps:   commanded,
		Charging:        state == model.StateCharging,
		ShouldCharge:    plan.ShouldChargeNow,
		OverloadMinutes: o.sessions.OverloadMinutes(),
		PriceStatus:     priceStatus,
	}); serr != nil {
		o.log.Warnf("metrics sink: %v", serr)
	}
	return res, nil
}

// applyChargingBuffer keeps the charger on for a short window after the
// planned session end so rounding between plan and reality does not cut a
// session short.
func (o *Orchestrator) applyChargingBuffer(now time.Time, plan *model.Plan) {
	o.bufferActive = false
	if !plan.ShouldChargeNow && plan.SessionEnd != nil {
		o.lastScheduledEnd = plan.SessionEnd
	}
	if !plan.ShouldChargeNow && o.lastScheduledEnd != nil {
		end := *o.lastScheduledEnd
		if !now.Before(end) && now.Before(end.Add(o.opts.BufferWindow)) {
			plan.ShouldChargeNow = true
			plan.Summary = "Charging Buffer Active."
			o.bufferActive = true
		}
	}
}

// handlePlugEdge reacts to plug/unplug transitions: sessions open and close,
// overrides reset to the configured standards, and state is persisted.
func (o *Orchestrator) handlePlugEdge(ctx context.Context, now time.Time, in model.SensorData) {
	defer func() { o.prevPlugged = in.Plugged }()

	if in.Plugged && !o.prevPlugged {
		initial := 0.0
		if in.CarSoC != nil {
			initial = *in.CarSoC
		}
		o.sessions.Start(now, initial)
		o.manualOverride = false
		o.resetOverrides()
		o.saveState()
		o.publish(events.SessionEvent{Time: now, Started: true})
		return
	}

	if !in.Plugged && o.prevPlugged {
		report := o.sessions.Stop(now, o.cfg.Currency, in.CarSoC)
		if report != nil && o.store != nil {
			if err := o.store.AppendReport(*report); err != nil {
				o.log.Errorf("persist session report: %v", err)
			}
		}
		o.manualOverride = false
		o.resetOverrides()
		o.saveState()
		if err := o.controller.SetEnabled(ctx, false); err != nil {
			o.log.Errorf("disable charger at unplug: %v", err)
		}
		o.estimator.NoteApplied(model.StatePaused, 0)
		o.estimator.NoteCarLimit(-1)
		o.lastScheduledEnd = nil
		o.publish(events.SessionEvent{Time: now, Started: false, Report: report})
	}
}

// resetOverrides reverts the per-session overrides to the standard values.
func (o *Orchestrator) resetOverrides() {
	depart := o.settings.DepartureTime
	o.settings.DepartureOverride = &depart
	o.settings.TargetSoCOverride = o.settings.TargetSoC
}

func (o *Orchestrator) recordDataPoint(now time.Time, in model.SensorData, virtualSoC float64) {
	price := pricing.Adjusted(
		pricing.CurrentPrice(in.Prices.Today, now),
		o.settings.PriceExtraFee,
		o.settings.PriceVAT,
	)
	amps := o.estimator.AppliedAmps()
	if amps < 0 {
		amps = 0
	}
	o.sessions.Record(now, virtualSoC, amps, price, o.estimator.AppliedState(), o.refreshedCycle)
}

func (o *Orchestrator) addLog(now time.Time, message string) {
	o.sessions.AddLog(now, message)
	o.publish(events.LogEvent{Time: now, Message: message})
}

func (o *Orchestrator) publish(e eventbus.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func (o *Orchestrator) saveState() {
	if o.store == nil {
		return
	}
	state := PersistedState{
		UserSettings:   o.settings,
		ManualOverride: o.manualOverride,
		ActionLog:      o.sessions.ActionLog(),
		LastReport:     o.sessions.LastReport(),
	}
	if err := o.store.Save(state); err != nil {
		o.log.Errorf("persist state: %v", err)
	}
}
