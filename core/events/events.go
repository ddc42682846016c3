// Package events defines the orchestrator events emitted on the event bus.
//
// Available event types:
//   - LogEvent: a new action log entry
//   - PlanEvent: a fresh charging plan was computed
//   - SessionEvent: a charge session started or finished
package events

import (
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
)

// LogEvent is published for every action log entry.
type LogEvent struct {
	Time    time.Time
	Message string
}

// PlanEvent is published after each successful planning cycle.
type PlanEvent struct {
	Time          time.Time
	Plan          model.Plan
	AvailableAmps float64
	VirtualSoC    float64
}

// SessionEvent marks a session boundary. Report is nil on start.
type SessionEvent struct {
	Time    time.Time
	Started bool
	Report  *model.SessionReport
}
