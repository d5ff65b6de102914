package portfolio

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/historical"
	stesting "github.com/aristath/stockroom/internal/testing"
)

func fixtureSlice(t *testing.T) *gamedata.Slice {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)

	market := stesting.NewTestDB(t, "market_data")
	news := stesting.NewTestDB(t, "news")
	features := stesting.NewTestDB(t, "features")
	agents := stesting.NewTestDB(t, "agents")
	stesting.SeedMarketFixture(t, market, news, features, agents)

	gateway := historical.NewGateway(
		historical.NewPriceRepository(market.Conn(), log),
		historical.NewNewsRepository(news.Conn(), log),
		historical.NewFeatureRepository(features.Conn(), log),
		historical.NewRecommendationRepository(agents.Conn(), log),
		"2025-01-01",
		log,
	)

	cfg := domain.GameConfig{
		InitialCash: 10000,
		NumDays:     12,
		Tickers:     []string{"AAPL", "MSFT", "NVDA"},
		Difficulty:  domain.DifficultyMedium,
		StartDate:   stesting.FixtureStart,
	}
	require.NoError(t, cfg.Normalize())

	builder := gamedata.NewBuilder(gateway, log)
	slice, err := builder.Build(context.Background(), cfg, stesting.FixtureStart, stesting.FixtureEnd)
	require.NoError(t, err)

	return slice
}

func newEngine() *Engine {
	return NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
}

func pendingBuy(ticker string, shares, day int) domain.TradeRecord {
	return domain.TradeRecord{
		Ticker: ticker, Action: domain.ActionBuy, Shares: shares,
		DaySubmitted: day, Status: domain.TradePending,
	}
}

func pendingSell(ticker string, shares, day int) domain.TradeRecord {
	return domain.TradeRecord{
		Ticker: ticker, Action: domain.ActionSell, Shares: shares,
		DaySubmitted: day, Status: domain.TradePending,
	}
}

func TestAdvanceDay_BuyExecutesAtNextOpen(t *testing.T) {
	slice := fixtureSlice(t)

	res := newEngine().AdvanceDay(DayInput{
		FromDay:     0,
		Cash:        10000,
		Holdings:    domain.Holdings{},
		Pending:     []domain.TradeRecord{pendingBuy("AAPL", 10, 0)},
		InitialCash: 10000,
	}, slice)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, domain.TradeExecuted, trade.Status)
	assert.Equal(t, 110.00, trade.Price) // 03-04 open
	assert.Equal(t, 1100.00, trade.Total)
	require.NotNil(t, trade.DayExecuted)
	assert.Equal(t, 1, *trade.DayExecuted)

	assert.Equal(t, 8900.00, res.Cash)
	assert.Equal(t, domain.Holding{Shares: 10, AvgCost: 110}, res.Holdings["AAPL"])

	// Valued at the 03-04 close of 125.
	assert.Equal(t, 1, res.Snapshot.Day)
	assert.Equal(t, 8900.0+1250.0, res.Snapshot.PortfolioValue)
	assert.InDelta(t, 1.5, res.Snapshot.ReturnPct, 1e-9)
	assert.InDelta(t, 150.0, res.Snapshot.ReturnUSD, 1e-9)
}

func TestAdvanceDay_SellsApplyBeforeBuys(t *testing.T) {
	slice := fixtureSlice(t)

	// Day-2 queue: cash 100 cannot cover 10 AAPL at the day-3 open of 130,
	// unless the NVDA sale fills first at 52.00 and frees 520.
	res := newEngine().AdvanceDay(DayInput{
		FromDay:  2,
		Cash:     100,
		Holdings: domain.Holdings{"NVDA": {Shares: 10, AvgCost: 50}},
		Pending: []domain.TradeRecord{
			pendingBuy("AAPL", 1, 2),
			pendingSell("NVDA", 10, 2),
		},
		InitialCash: 10000,
	}, slice)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, domain.ActionSell, res.Trades[0].Action, "sell is applied first")
	assert.Equal(t, domain.TradeExecuted, res.Trades[0].Status)
	assert.Equal(t, domain.TradeExecuted, res.Trades[1].Status)

	assert.Equal(t, 100.0+520.0-130.0, res.Cash)
	assert.NotContains(t, res.Holdings, "NVDA", "sold-out position is removed")
	assert.Equal(t, 1, res.Holdings["AAPL"].Shares)
}

func TestAdvanceDay_BuyAveragesCost(t *testing.T) {
	slice := fixtureSlice(t)

	res := newEngine().AdvanceDay(DayInput{
		FromDay:     0,
		Cash:        10000,
		Holdings:    domain.Holdings{"AAPL": {Shares: 10, AvgCost: 90}},
		Pending:     []domain.TradeRecord{pendingBuy("AAPL", 10, 0)},
		InitialCash: 10000,
	}, slice)

	h := res.Holdings["AAPL"]
	assert.Equal(t, 20, h.Shares)
	assert.InDelta(t, 100.0, h.AvgCost, 1e-9) // (10*90 + 10*110) / 20
}

func TestAdvanceDay_SellLeavesAvgCostUntouched(t *testing.T) {
	slice := fixtureSlice(t)

	res := newEngine().AdvanceDay(DayInput{
		FromDay:     2,
		Cash:        0,
		Holdings:    domain.Holdings{"NVDA": {Shares: 10, AvgCost: 48.5}},
		Pending:     []domain.TradeRecord{pendingSell("NVDA", 4, 2)},
		InitialCash: 10000,
	}, slice)

	h := res.Holdings["NVDA"]
	assert.Equal(t, 6, h.Shares)
	assert.Equal(t, 48.5, h.AvgCost)
}

func TestAdvanceDay_RaceLoserRejectedNotApplied(t *testing.T) {
	slice := fixtureSlice(t)

	// Two buys sorted ticker-ascending: AAPL fills at 130, then NVDA at
	// 52.00 cannot be covered by the remaining 40.
	res := newEngine().AdvanceDay(DayInput{
		FromDay:  2,
		Cash:     300,
		Holdings: domain.Holdings{},
		Pending: []domain.TradeRecord{
			pendingBuy("NVDA", 1, 2),
			pendingBuy("AAPL", 2, 2),
		},
		InitialCash: 10000,
	}, slice)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, "AAPL", res.Trades[0].Ticker)
	assert.Equal(t, domain.TradeExecuted, res.Trades[0].Status)

	assert.Equal(t, "NVDA", res.Trades[1].Ticker)
	assert.Equal(t, domain.TradeRejected, res.Trades[1].Status)
	assert.Equal(t, domain.ReasonInsufficientCash, res.Trades[1].RejectReason)

	assert.Equal(t, 300.0-260.0, res.Cash)
	assert.NotContains(t, res.Holdings, "NVDA")
}

func TestAdvanceDay_WeekendOrderFillsMonday(t *testing.T) {
	slice := fixtureSlice(t)

	// Day 4 is Friday 03-07; days 5 and 6 are the weekend. AAPL advice on
	// 03-07 is SELL, so sell holdings instead of buying.
	res := newEngine().AdvanceDay(DayInput{
		FromDay:     4,
		Cash:        0,
		Holdings:    domain.Holdings{"AAPL": {Shares: 5, AvgCost: 100}},
		Pending:     []domain.TradeRecord{pendingSell("AAPL", 5, 4)},
		InitialCash: 10000,
	}, slice)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, domain.TradeExecuted, trade.Status)
	require.NotNil(t, trade.DayExecuted)
	assert.Equal(t, 7, *trade.DayExecuted, "fills on Monday 03-10")
	assert.Equal(t, 131.00, trade.Price, "Monday open")

	// Snapshot day stays 5; Saturday values at Friday's close.
	assert.Equal(t, 5, res.Snapshot.Day)
	assert.Equal(t, 655.0, res.Snapshot.PortfolioValue)
	assert.Equal(t, res.Snapshot.PortfolioValue, res.Snapshot.Cash)
}

func TestAdvanceDay_PastEndNothingFills(t *testing.T) {
	slice := fixtureSlice(t)

	res := newEngine().AdvanceDay(DayInput{
		FromDay:     11,
		Cash:        1000,
		Holdings:    domain.Holdings{},
		Pending:     []domain.TradeRecord{pendingBuy("AAPL", 1, 11)},
		InitialCash: 10000,
	}, slice)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.TradeRejected, res.Trades[0].Status)
	assert.Equal(t, domain.ReasonGameNotActive, res.Trades[0].RejectReason)
	assert.Equal(t, 1000.0, res.Cash)
}
