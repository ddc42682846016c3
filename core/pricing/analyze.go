package pricing

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Price status labels exposed to the UI sensor.
const (
	StatusNoData    = "No Data"
	StatusVeryCheap = "Very Cheap"
	StatusCheap     = "Cheap"
	StatusExpensive = "Expensive"
)

// Analyze classifies the current price against the day's mean.
func Analyze(today []float64, now time.Time) string {
	if len(today) == 0 {
		return StatusNoData
	}
	current := CurrentPrice(today, now)
	mean := stat.Mean(today, nil)
	switch {
	case current < mean*0.8:
		return StatusVeryCheap
	case current < mean:
		return StatusCheap
	default:
		return StatusExpensive
	}
}
