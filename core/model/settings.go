package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConfigSettings are the static per-installation parameters.
type ConfigSettings struct {
	// MaxFuse is the service fuse rating in amps.
	MaxFuse float64 `json:"max_fuse"`
	// ChargerLoss is the charging loss in percent.
	ChargerLoss float64 `json:"charger_loss"`
	// CarCapacity is the usable battery capacity in kWh.
	CarCapacity float64 `json:"car_capacity"`
	Currency    string  `json:"currency"`
	// HasPriceSensor distinguishes "no price feed configured" (plain load
	// balancing mode) from "feed configured but empty" (error condition).
	HasPriceSensor bool `json:"has_price_sensor"`
}

// Validate checks mandatory installation parameters.
func (c ConfigSettings) Validate() error {
	if c.MaxFuse <= 0 {
		return fmt.Errorf("max_fuse must be positive")
	}
	if c.CarCapacity <= 0 {
		return fmt.Errorf("car_capacity must be positive")
	}
	if c.ChargerLoss < 0 || c.ChargerLoss >= 100 {
		return fmt.Errorf("charger_loss must be in [0,100)")
	}
	return nil
}

// ClockTime is a wall-clock time of day (HH:MM) without a date. It is the
// unit users configure departure times in.
type ClockTime struct {
	Hour   int
	Minute int
}

// NewClockTime builds a ClockTime, normalising out-of-range values.
func NewClockTime(hour, minute int) ClockTime {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return ClockTime{Hour: hour, Minute: minute}
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// IsZero reports whether the value is midnight, the zero value. Fields where
// midnight and "not set" must be told apart use *ClockTime instead.
func (c ClockTime) IsZero() bool {
	return c.Hour == 0 && c.Minute == 0
}

// Next returns the first occurrence of the clock time at or after now's
// date; if that instant already passed it rolls to the next day.
func (c ClockTime) Next(now time.Time) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if t.Before(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// MarshalJSON encodes the time as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM".
func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*c = ClockTime{}
		return nil
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UserSettings are the mutable user inputs driving the planner.
type UserSettings struct {
	TargetSoC         float64   `json:"target_soc"`
	TargetSoCOverride float64   `json:"target_soc_override"`
	DepartureTime     ClockTime `json:"departure_time"`
	// DepartureOverride is a pointer so an explicit 00:00 override stays
	// distinguishable from "not set".
	DepartureOverride *ClockTime `json:"departure_override,omitempty"`
	SmartEnabled      bool      `json:"smart_switch_enabled"`
	PriceLimit1       float64   `json:"price_limit_1"`
	TargetSoC1        float64   `json:"target_soc_1"`
	PriceLimit2       float64   `json:"price_limit_2"`
	TargetSoC2        float64   `json:"target_soc_2"`
	MinGuaranteedSoC  float64   `json:"min_guaranteed_soc"`
	PriceExtraFee     float64   `json:"price_extra_fee"`
	PriceVAT          float64   `json:"price_vat"`
}

// DefaultUserSettings returns the factory values used before any user input
// was persisted.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		TargetSoC:         80,
		TargetSoCOverride: 80,
		DepartureTime:     ClockTime{Hour: 7},
		SmartEnabled:      true,
		PriceLimit1:       0.5,
		TargetSoC1:        100,
		PriceLimit2:       1.5,
		TargetSoC2:        80,
		MinGuaranteedSoC:  20,
	}
}
