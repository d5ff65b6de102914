package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
	assert.Zero(t, Mean(nil))
}

func TestStdDev(t *testing.T) {
	// Sample standard deviation: sqrt(5/3).
	assert.InDelta(t, 1.29099445, StdDev([]float64{1, 2, 3, 4}), 1e-8)
	assert.Zero(t, StdDev(nil))
}

func TestAnnualizedVolatility(t *testing.T) {
	// StdDev of {0.01, 0.03} is sqrt(0.0002), annualized by sqrt(252).
	assert.InDelta(t, 0.22449944, AnnualizedVolatility([]float64{0.01, 0.03}), 1e-8)
	assert.Zero(t, AnnualizedVolatility(nil))
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.1, returns[0], 1e-9)
	assert.InDelta(t, -0.1, returns[1], 1e-9)

	assert.Empty(t, CalculateReturns([]float64{100}))

	// A zero value cannot produce a return; the slot stays zero.
	returns = CalculateReturns([]float64{0, 100})
	require.Len(t, returns, 1)
	assert.Zero(t, returns[0])
}

func TestCalculateMaxDrawdown(t *testing.T) {
	dd := CalculateMaxDrawdown([]float64{100, 120, 90, 110})
	require.NotNil(t, dd)
	assert.InDelta(t, 0.25, *dd, 1e-9)

	assert.Nil(t, CalculateMaxDrawdown([]float64{100}))
}

func TestCalculateCurrentDrawdown(t *testing.T) {
	dd := CalculateCurrentDrawdown([]float64{100, 120, 90})
	require.NotNil(t, dd)
	assert.InDelta(t, 0.25, *dd, 1e-9)

	// A series ending on its peak has no current drawdown.
	dd = CalculateCurrentDrawdown([]float64{90, 100})
	require.NotNil(t, dd)
	assert.Zero(t, *dd)

	assert.Nil(t, CalculateCurrentDrawdown(nil))
}

func TestTotalReturnPct(t *testing.T) {
	assert.InDelta(t, 10.0, TotalReturnPct(10000, 11000), 1e-9)
	assert.InDelta(t, -50.0, TotalReturnPct(200, 100), 1e-9)
	assert.Zero(t, TotalReturnPct(0, 100))
}

func TestRoundPct(t *testing.T) {
	assert.InDelta(t, 12.35, RoundPct(12.3456), 1e-9)
	assert.InDelta(t, -3.14, RoundPct(-3.14159), 1e-9)
	assert.Zero(t, RoundPct(0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, 0.0, Clamp(-2, 0, 1))
	assert.Equal(t, 1.0, Clamp(7, 0, 1))
}
