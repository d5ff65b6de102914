package formulas

import "math"

// CalculateReturns converts a value series to simple periodic returns.
// Returns[i] = (v[i+1] - v[i]) / v[i]
func CalculateReturns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// TotalReturnPct is the percentage change from an initial to a current value.
// A zero initial value yields 0 rather than a division blowup.
func TotalReturnPct(initial, current float64) float64 {
	if initial == 0 {
		return 0
	}
	return (current - initial) / initial * 100
}

// RoundPct rounds a percentage to two decimals for external reporting.
// Internal math stays full-precision; only reported figures pass through here.
func RoundPct(pct float64) float64 {
	return math.Round(pct*100) / 100
}

// Clamp bounds v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
