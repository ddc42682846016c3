package charger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
)

// User setting keys accepted by SetUserInput. They mirror the persisted
// field names.
const (
	KeyTargetSoC         = "target_soc"
	KeyTargetSoCOverride = "target_soc_override"
	KeyDepartureTime     = "departure_time"
	KeyDepartureOverride = "departure_override"
	KeySmartEnabled      = "smart_switch_enabled"
	KeyPriceLimit1       = "price_limit_1"
	KeyTargetSoC1        = "target_soc_1"
	KeyPriceLimit2       = "price_limit_2"
	KeyTargetSoC2        = "target_soc_2"
	KeyMinGuaranteedSoC  = "min_guaranteed_soc"
	KeyPriceExtraFee     = "price_extra_fee"
	KeyPriceVAT          = "price_vat"
)

// SetUserInput updates one user setting. Touching the target override key
// activates manual override mode. The change is persisted synchronously and
// a recomputation cycle is scheduled without blocking on it.
func (o *Orchestrator) SetUserInput(key string, value any) error {
	o.mu.Lock()
	now := time.Now()
	if err := o.applySetting(key, value); err != nil {
		o.mu.Unlock()
		return err
	}
	o.addLog(now, fmt.Sprintf("User setting changed: %s -> %v", key, value))
	if key == KeyTargetSoCOverride {
		o.manualOverride = true
		o.addLog(now, "Manual Override Mode Activated.")
	}
	o.saveState()
	fn := o.onMutation
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// ClearManualOverride reverts to smart planning, resetting the override
// target to the standard value.
func (o *Orchestrator) ClearManualOverride() {
	o.mu.Lock()
	now := time.Now()
	o.log.Infof("manual override cleared by user")
	o.addLog(now, "Manual override cleared. Reverting to Smart Logic.")
	o.manualOverride = false
	o.settings.TargetSoCOverride = o.settings.TargetSoC
	o.saveState()
	fn := o.onMutation
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (o *Orchestrator) applySetting(key string, value any) error {
	switch key {
	case KeyTargetSoC:
		return setPercent(&o.settings.TargetSoC, value)
	case KeyTargetSoCOverride:
		return setPercent(&o.settings.TargetSoCOverride, value)
	case KeyDepartureTime:
		return setClock(&o.settings.DepartureTime, value)
	case KeyDepartureOverride:
		return setClockPtr(&o.settings.DepartureOverride, value)
	case KeySmartEnabled:
		return setBool(&o.settings.SmartEnabled, value)
	case KeyPriceLimit1:
		return setFloat(&o.settings.PriceLimit1, value)
	case KeyTargetSoC1:
		return setPercent(&o.settings.TargetSoC1, value)
	case KeyPriceLimit2:
		return setFloat(&o.settings.PriceLimit2, value)
	case KeyTargetSoC2:
		return setPercent(&o.settings.TargetSoC2, value)
	case KeyMinGuaranteedSoC:
		return setPercent(&o.settings.MinGuaranteedSoC, value)
	case KeyPriceExtraFee:
		return setFloat(&o.settings.PriceExtraFee, value)
	case KeyPriceVAT:
		return setFloat(&o.settings.PriceVAT, value)
	default:
		return fmt.Errorf("unknown user setting %q", key)
	}
}

func setFloat(dst *float64, value any) error {
	switch v := value.(type) {
	case float64:
		*dst = v
	case float32:
		*dst = float64(v)
	case int:
		*dst = float64(v)
	case int64:
		*dst = float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", v, err)
		}
		*dst = f
	default:
		return fmt.Errorf("unsupported number value %T", value)
	}
	return nil
}

// setPercent accepts SoC percentages. The MQTT settings topic carries raw
// user input, so unlike a bounded UI entity the range check lives here.
func setPercent(dst *float64, value any) error {
	var v float64
	if err := setFloat(&v, value); err != nil {
		return err
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("percentage %v out of range [0,100]", v)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, value any) error {
	switch v := value.(type) {
	case bool:
		*dst = v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse bool %q: %w", v, err)
		}
		*dst = b
	default:
		return fmt.Errorf("unsupported bool value %T", value)
	}
	return nil
}

func setClock(dst *model.ClockTime, value any) error {
	switch v := value.(type) {
	case model.ClockTime:
		*dst = v
	case string:
		c, err := model.ParseClockTime(v)
		if err != nil {
			return err
		}
		*dst = c
	default:
		return fmt.Errorf("unsupported time value %T", value)
	}
	return nil
}

func setClockPtr(dst **model.ClockTime, value any) error {
	var c model.ClockTime
	if err := setClock(&c, value); err != nil {
		return err
	}
	*dst = &c
	return nil
}
