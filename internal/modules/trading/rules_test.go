package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockroom/internal/domain"
)

func buyContext() RuleContext {
	return RuleContext{
		Status:          domain.StatusInProgress,
		Day:             0,
		Cash:            10000,
		Holdings:        domain.Holdings{},
		Recommendation:  domain.LabelBuy,
		ExecutionOpen:   110,
		HasExecutionDay: true,
		TradedTickers:   map[string]bool{},
	}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	de, ok := domain.AsError(err)
	require.True(t, ok, "expected a classified error, got %v", err)
	return de.Code
}

func TestValidate_BuyWithinCashSucceeds(t *testing.T) {
	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 10}, buyContext())
	assert.NoError(t, err)
}

func TestValidate_BuyOnHoldDayRejected(t *testing.T) {
	rc := buyContext()
	rc.Recommendation = domain.LabelHold

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1}, rc)
	assert.Equal(t, domain.ReasonNotABuyDay, reasonOf(t, err))
	assert.Equal(t, domain.KindRuleViolation, domain.KindOf(err))
}

func TestValidate_BuyOnSellDayRejected(t *testing.T) {
	for _, label := range []domain.RecommendationLabel{domain.LabelSell, domain.StrongSell} {
		rc := buyContext()
		rc.Recommendation = label

		err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1}, rc)
		assert.Equal(t, domain.ReasonNotABuyDay, reasonOf(t, err))
	}
}

func TestValidate_NonPositiveShares(t *testing.T) {
	for _, shares := range []float64{0, -3} {
		err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: shares}, buyContext())
		assert.Equal(t, domain.ReasonNonPositiveShares, reasonOf(t, err))
	}
}

func TestValidate_NonIntegerShares(t *testing.T) {
	rc := buyContext()
	rc.Holdings = domain.Holdings{"AAPL": {Shares: 10, AvgCost: 100}}

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionSell, Shares: 2.5}, rc)
	assert.Equal(t, domain.ReasonNonIntegerShares, reasonOf(t, err))
}

func TestValidate_InsufficientCash(t *testing.T) {
	rc := buyContext()
	rc.Cash = 1000 // 10 shares at the 110 execution open cost 1100

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 10}, rc)
	assert.Equal(t, domain.ReasonInsufficientCash, reasonOf(t, err))
}

func TestValidate_FinalDayBuySkipsCashRule(t *testing.T) {
	rc := buyContext()
	rc.Cash = 0
	rc.HasExecutionDay = false

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 100}, rc)
	assert.NoError(t, err)
}

func TestValidate_SellWithoutHoldings(t *testing.T) {
	rc := buyContext()
	rc.Holdings = domain.Holdings{"AAPL": {Shares: 5, AvgCost: 100}}

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionSell, Shares: 6}, rc)
	assert.Equal(t, domain.ReasonInsufficientHoldings, reasonOf(t, err))
}

func TestValidate_SellExactHoldingsSucceeds(t *testing.T) {
	rc := buyContext()
	rc.Holdings = domain.Holdings{"AAPL": {Shares: 5, AvgCost: 100}}

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionSell, Shares: 5}, rc)
	assert.NoError(t, err)
}

func TestValidate_DuplicateSameDayIsConflict(t *testing.T) {
	rc := buyContext()
	rc.TradedTickers["AAPL"] = true

	err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1}, rc)
	assert.Equal(t, domain.ReasonDuplicateSameDay, reasonOf(t, err))
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	// A different ticker on the same day is fine.
	err = Validate(Intent{Ticker: "MSFT", Action: domain.ActionBuy, Shares: 1}, rc)
	assert.NoError(t, err)
}

func TestValidate_GameNotActive(t *testing.T) {
	for _, status := range []domain.RoomStatus{domain.StatusWaiting, domain.StatusFinished} {
		rc := buyContext()
		rc.Status = status

		err := Validate(Intent{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1}, rc)
		assert.Equal(t, domain.ReasonGameNotActive, reasonOf(t, err))
	}
}
