package model

import (
	"strconv"
	"strings"
)

// PriceData carries the raw per-interval price arrays from the upstream
// price feed. Today is anchored at midnight of the current day, Tomorrow at
// midnight of the next. Interval length is inferred from the array length.
type PriceData struct {
	Today         []float64 `json:"today"`
	Tomorrow      []float64 `json:"tomorrow"`
	TomorrowValid bool      `json:"tomorrow_valid"`
}

// CalendarEvent is an upcoming event from an external calendar. Start is the
// raw timestamp string as delivered by the source; entries with unparseable
// dates are skipped individually during planning.
type CalendarEvent struct {
	Start       string `json:"start"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// SensorData is the per-cycle snapshot supplied by the host polling layer.
// Missing current readings default to 0, a missing vehicle SoC is nil.
type SensorData struct {
	GridL1 float64 `json:"p1_l1"`
	GridL2 float64 `json:"p1_l2"`
	GridL3 float64 `json:"p1_l3"`

	ChargerL1 float64 `json:"ch_l1"`
	ChargerL2 float64 `json:"ch_l2"`
	ChargerL3 float64 `json:"ch_l3"`

	// LimiterValue is the last commanded charger current limit, used as a
	// fallback when the charger-side phase sensors are absent.
	LimiterValue float64 `json:"limiter_value"`

	CarSoC  *float64 `json:"car_soc"`
	Plugged bool     `json:"car_plugged"`

	Prices   PriceData       `json:"price_data"`
	Calendar []CalendarEvent `json:"calendar_events"`
}

// MeasuredChargerAmps returns the highest charger-side phase current.
func (s SensorData) MeasuredChargerAmps() float64 {
	m := s.ChargerL1
	if s.ChargerL2 > m {
		m = s.ChargerL2
	}
	if s.ChargerL3 > m {
		m = s.ChargerL3
	}
	return m
}

var (
	truthyPlugged = map[string]bool{
		"on": true, "true": true, "connected": true, "charging": true,
		"full": true, "plugged_in": true, "plugged": true, "yes": true,
		"y": true, "1": true,
	}
	falsyPlugged = map[string]bool{
		"off": true, "false": true, "disconnected": true, "unplugged": true,
		"no": true, "n": true, "0": true, "unknown": true, "unavailable": true,
	}
)

// ParsePlugged normalises the many string encodings sensors use for the plug
// state. The second return value reports whether the input was recognised;
// unrecognised states are treated as unplugged.
func ParsePlugged(raw string) (plugged, known bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if truthyPlugged[normalized] {
		return true, true
	}
	if falsyPlugged[normalized] {
		return false, true
	}
	if f, err := strconv.ParseFloat(normalized, 64); err == nil {
		return f > 0, true
	}
	return false, false
}
