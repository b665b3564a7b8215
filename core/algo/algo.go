// Package algo holds the pure statistical primitives shared by all scoring:
// percentile ranks with SQL percent_rank tie semantics, continuous quantiles
// and rounding helpers. Nothing in this package does I/O.
package algo

import "math"

// Round2 rounds to 2 decimal places, the precision used for score columns.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds to 4 decimal places, the precision used for ratio columns.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
