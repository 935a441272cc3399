package kappa

import "math"

// generateDeltaGrid builds 18 quote-depth levels (in USD), geometrically
// spaced from 1 tick to floor(0.01*mid/tick) ticks.
func generateDeltaGrid(mid, tickSize float64) []float64 {
	minTicks := 1.0
	maxTicks := math.Floor(0.01 * mid / tickSize)
	if maxTicks < minTicks {
		maxTicks = minTicks
	}

	grid := make([]float64, numGridLevels)
	if maxTicks == minTicks {
		for i := range grid {
			grid[i] = minTicks * tickSize
		}
		return grid
	}

	ratio := maxTicks / minTicks
	for i := 0; i < numGridLevels; i++ {
		frac := float64(i) / float64(numGridLevels-1)
		ticks := minTicks * math.Pow(ratio, frac)
		grid[i] = ticks * tickSize
	}
	return grid
}
