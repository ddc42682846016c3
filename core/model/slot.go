package model

import "time"

// PriceSlot is a contiguous pricing interval, either 60 or 15 minutes
// depending on the resolution of the upstream price feed.
type PriceSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Price float64   `json:"price"`
}

// Contains reports whether t falls inside the slot. The start is inclusive
// and the end exclusive so adjacent slots never overlap.
func (s PriceSlot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Duration returns the slot length.
func (s PriceSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// ScheduleEntry is a price slot annotated with whether it was selected for
// charging. The full price window is always exposed so consumers can render
// the complete curve.
type ScheduleEntry struct {
	PriceSlot
	Active bool `json:"active"`
}
