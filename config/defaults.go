package config

import (
	"github.com/Tiimber/ev-smart-charger/core/model"
)

// DefaultsConfig seeds the user settings used before any input was persisted.
// Departure times are "HH:MM" strings.
type DefaultsConfig struct {
	TargetSoC        float64 `json:"target_soc"`
	DepartureTime    string  `json:"departure_time"`
	SmartEnabled     *bool   `json:"smart_switch_enabled"`
	PriceLimit1      float64 `json:"price_limit_1"`
	TargetSoC1       float64 `json:"target_soc_1"`
	PriceLimit2      float64 `json:"price_limit_2"`
	TargetSoC2       float64 `json:"target_soc_2"`
	MinGuaranteedSoC float64 `json:"min_guaranteed_soc"`
	PriceExtraFee    float64 `json:"price_extra_fee"`
	PriceVAT         float64 `json:"price_vat"`
}

// UserSettings merges the section over the factory defaults. Zero-valued
// fields keep their factory value.
func (d DefaultsConfig) UserSettings() (model.UserSettings, error) {
	s := model.DefaultUserSettings()
	if d.TargetSoC > 0 {
		s.TargetSoC = d.TargetSoC
		s.TargetSoCOverride = d.TargetSoC
	}
	if d.DepartureTime != "" {
		t, err := model.ParseClockTime(d.DepartureTime)
		if err != nil {
			return s, err
		}
		s.DepartureTime = t
	}
	if d.SmartEnabled != nil {
		s.SmartEnabled = *d.SmartEnabled
	}
	if d.PriceLimit1 > 0 {
		s.PriceLimit1 = d.PriceLimit1
	}
	if d.TargetSoC1 > 0 {
		s.TargetSoC1 = d.TargetSoC1
	}
	if d.PriceLimit2 > 0 {
		s.PriceLimit2 = d.PriceLimit2
	}
	if d.TargetSoC2 > 0 {
		s.TargetSoC2 = d.TargetSoC2
	}
	if d.MinGuaranteedSoC > 0 {
		s.MinGuaranteedSoC = d.MinGuaranteedSoC
	}
	if d.PriceExtraFee > 0 {
		s.PriceExtraFee = d.PriceExtraFee
	}
	if d.PriceVAT > 0 {
		s.PriceVAT = d.PriceVAT
	}
	return s, nil
}
