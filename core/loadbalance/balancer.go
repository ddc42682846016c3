// Package loadbalance computes the charging current that can safely be added
// on top of the household load without tripping the service fuse.
package loadbalance

import "github.com/Tiimber/ev-smart-charger/core/model"

// Available returns the current in amps the charger may draw right now.
// The result is always within [0, maxFuse].
//
// The grid meter measures house plus charger. When charger-side phase
// sensors are missing the last commanded limiter value is split evenly
// across the three phases so the charger's own draw is still subtracted.
func Available(in model.SensorData, maxFuse float64) float64 {
	chL1, chL2, chL3 := in.ChargerL1, in.ChargerL2, in.ChargerL3
	if chL1 == 0 && chL2 == 0 && chL3 == 0 && in.LimiterValue > 0 {
		split := in.LimiterValue / 3
		chL1, chL2, chL3 = split, split, split
	}

	house := max3(
		nonNegative(in.GridL1-chL1),
		nonNegative(in.GridL2-chL2),
		nonNegative(in.GridL3-chL3),
	)

	buffer := maxFuse * 0.05
	if buffer < 1 {
		buffer = 1
	}

	available := maxFuse - house - buffer
	if available > maxFuse {
		available = maxFuse
	}
	return nonNegative(available)
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
