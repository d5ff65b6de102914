package formulas

// CalculateMaxDrawdown calculates the maximum drawdown of a value series.
//
// Drawdown Formula:
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//	Max Drawdown = Maximum of all drawdowns
//
// Returns the maximum drawdown as a positive fraction (0.25 = 25% below the
// peak), or nil when the series is too short to contain one.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// CalculateCurrentDrawdown measures how far the final value sits below the
// series peak, as a positive fraction. Returns nil for an empty series.
func CalculateCurrentDrawdown(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	if peak <= 0 {
		return nil
	}

	current := (peak - values[len(values)-1]) / peak
	return &current
}
