package formulas

import (
	"github.com/markcheno/go-talib"
)

// Indicator series used to build the daily technical snapshots. All functions
// return a slice aligned with the input; warmup positions hold zero values the
// caller must treat as not-yet-computed.

// RSISeries calculates the Relative Strength Index over the close series.
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
func RSISeries(closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return make([]float64, len(closes))
	}
	return talib.Rsi(closes, period)
}

// ROCSeries calculates the rate of change in percent over the period.
func ROCSeries(closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return make([]float64, len(closes))
	}
	return talib.Roc(closes, period)
}

// SMASeries calculates the simple moving average over the period.
func SMASeries(values []float64, period int) []float64 {
	if len(values) < period {
		return make([]float64, len(values))
	}
	return talib.Sma(values, period)
}

// ATRSeries calculates the Average True Range over the period.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return make([]float64, len(closes))
	}
	return talib.Atr(highs, lows, closes, period)
}

// BollingerPercentB places each close within its Bollinger bands:
// 0.5 means at the middle band, above 1 means above the upper band.
func BollingerPercentB(closes []float64, period int) []float64 {
	result := make([]float64, len(closes))
	if len(closes) < period {
		return result
	}

	upper, _, lower := talib.BBands(closes, period, 2, 2, talib.SMA)
	for i := range closes {
		width := upper[i] - lower[i]
		if width > 0 {
			result[i] = (closes[i] - lower[i]) / width
		}
	}

	return result
}
