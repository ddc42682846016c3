// Package pricing turns the raw per-interval price arrays from the upstream
// price feed into time-stamped slots and derives per-cycle price statistics.
package pricing

import (
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
)

// SlotDuration infers the interval length from the number of array entries.
// Hourly feeds deliver up to 25 entries (DST days included), quarter-hourly
// feeds 92 to 100.
func SlotDuration(entries int) time.Duration {
	if entries > 25 {
		return 15 * time.Minute
	}
	return time.Hour
}

// BuildWindow converts the price feed into chronological slots starting at
// midnight of the current day. Slots entirely in the past are dropped.
// Tomorrow's prices are appended only when the feed marks them valid or they
// are non-empty.
func BuildWindow(p model.PriceData, now time.Time) []model.PriceSlot {
	slots := buildDay(p.Today, midnight(now), now)
	if p.TomorrowValid || len(p.Tomorrow) > 0 {
		slots = append(slots, buildDay(p.Tomorrow, midnight(now).AddDate(0, 0, 1), now)...)
	}
	return slots
}

func buildDay(prices []float64, dayStart, now time.Time) []model.PriceSlot {
	if len(prices) == 0 {
		return nil
	}
	interval := SlotDuration(len(prices))
	slots := make([]model.PriceSlot, 0, len(prices))
	for i, price := range prices {
		start := dayStart.Add(time.Duration(i) * interval)
		end := start.Add(interval)
		if end.Before(now) {
			continue
		}
		slots = append(slots, model.PriceSlot{Start: start, End: end, Price: price})
	}
	return slots
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CurrentPrice returns the raw price of the interval covering now, or 0 if
// the feed is empty.
func CurrentPrice(today []float64, now time.Time) float64 {
	if len(today) == 0 {
		return 0
	}
	idx := now.Hour()
	if len(today) > 25 {
		idx = now.Hour()*4 + now.Minute()/15
	}
	if idx > len(today)-1 {
		idx = len(today) - 1
	}
	return today[idx]
}

// Adjusted applies the configured grid fee and VAT to a raw price.
func Adjusted(raw, extraFee, vatPct float64) float64 {
	return (raw + extraFee) * (1 + vatPct/100)
}
