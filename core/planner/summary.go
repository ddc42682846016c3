package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Tiimber/ev-smart-charger/core/model"
	"github.com/Tiimber/ev-smart-charger/core/pricing"
)

type summaryInput struct {
	Selected   []model.PriceSlot
	Deadline   time.Time
	TimeSource string
	Target     float64
	Note       string
	CurrentSoC float64
	KWhToPull  float64
	Efficiency float64
	EstPowerKW float64
	SlotHours  float64
	Capacity   float64
	Currency   string
	ExtraFee   float64
	VATPct     float64
}

// block is a run of chronologically adjacent selected slots, merged for the
// summary so the user sees contiguous charging periods.
type block struct {
	start, end  time.Time
	cost        float64
	socStart    float64
	socGain     float64
	avgPriceAcc float64
	count       int
}

// composeSummary walks the selected slots in chronological order, fills them
// with energy until the requirement is satisfied, and renders the multi-line
// cost narrative.
func composeSummary(in summaryInput) string {
	if len(in.Selected) == 0 {
		return "Not calculated"
	}

	chrono := make([]model.PriceSlot, len(in.Selected))
	copy(chrono, in.Selected)
	sort.SliceStable(chrono, func(i, j int) bool { return chrono[i].Start.Before(chrono[j].Start) })

	kwhPerSlotMax := in.EstPowerKW * in.SlotHours
	remainingKWh := in.KWhToPull
	runningSoC := in.CurrentSoC
	totalCost := 0.0

	var blocks []block
	var current *block

	for _, slot := range chrono {
		if remainingKWh <= 0.001 {
			break
		}
		adjusted := pricing.Adjusted(slot.Price, in.ExtraFee, in.VATPct)
		kwhThisSlot := kwhPerSlotMax
		if remainingKWh < kwhThisSlot {
			kwhThisSlot = remainingKWh
		}
		remainingKWh -= kwhThisSlot
		slotCost := adjusted * kwhThisSlot
		totalCost += slotCost
		socGain := kwhThisSlot * in.Efficiency / in.Capacity * 100

		if current != nil && slot.Start.Equal(current.end) {
			current.end = slot.End
			current.cost += slotCost
			current.socGain += socGain
			current.avgPriceAcc += adjusted
			current.count++
			continue
		}
		if current != nil {
			runningSoC += current.socGain
			blocks = append(blocks, *current)
		}
		current = &block{
			start:       slot.Start,
			end:         slot.End,
			cost:        slotCost,
			socStart:    runningSoC,
			socGain:     socGain,
			avgPriceAcc: adjusted,
			count:       1,
		}
	}
	if current != nil {
		blocks = append(blocks, *current)
	}

	costNote := ""
	if in.ExtraFee > 0 || in.VATPct > 0 {
		costNote = " (incl fees/VAT)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Departure:** %s %s\n\n", in.Deadline.Format("15:04"), in.TimeSource)
	fmt.Fprintf(&b, "**Target:** %d%% %s\n\n", int(in.Target), in.Note)
	fmt.Fprintf(&b, "**Total Estimated Cost:** %.2f %s%s\n\n", totalCost, in.Currency, costNote)
	for i, blk := range blocks {
		endSoC := blk.socStart + blk.socGain
		if endSoC > 100 {
			endSoC = 100
		}
		if endSoC > in.Target {
			endSoC = in.Target
		}
		avg := blk.avgPriceAcc / float64(blk.count)
		fmt.Fprintf(&b, "**%s - %s**\nSoC: %d%% → %d%%\nCost: %.2f %s (Avg: %.2f)",
			blk.start.Format("15:04"), blk.end.Format("15:04"),
			int(blk.socStart), int(endSoC), blk.cost, in.Currency, avg)
		if i < len(blocks)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
