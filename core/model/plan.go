package model

import "time"

// Plan is the output of one planning cycle. It is produced fresh every cycle
// and must not be mutated once returned.
type Plan struct {
	ShouldChargeNow  bool            `json:"should_charge_now"`
	ScheduledStart   *time.Time      `json:"scheduled_start,omitempty"`
	PlannedTargetSoC float64         `json:"planned_target_soc"`
	Schedule         []ScheduleEntry `json:"charging_schedule"`
	Summary          string          `json:"charging_summary"`
	DepartureTime    time.Time       `json:"departure_time,omitempty"`
	SessionEnd       *time.Time      `json:"session_end_time,omitempty"`
	// OverloadMinutes echoes the accumulated charging time lost to safety
	// cutoffs that the slot selection compensated for.
	OverloadMinutes float64 `json:"overload_prevention_minutes"`
}
