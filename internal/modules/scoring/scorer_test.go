package scoring

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

func executedBuy(ticker string, submitted, executed int, price float64) domain.TradeRecord {
	day := executed
	return domain.TradeRecord{
		Ticker:       ticker,
		Action:       domain.ActionBuy,
		Shares:       1,
		Price:        price,
		Total:        price,
		DaySubmitted: submitted,
		DayExecuted:  &day,
		Status:       domain.TradeExecuted,
	}
}

func TestScore_ReturnComponentSaturates(t *testing.T) {
	slice := fixtureSlice(t)

	cases := []struct {
		returnPct float64
		want      int
	}{
		{-10, 0},
		{0, 0},
		{25, 250},
		{50, 500},
		{80, 500},
	}
	for _, tc := range cases {
		b := Score(Input{ReturnPct: tc.returnPct, Difficulty: domain.DifficultyMedium}, slice)
		assert.Equal(t, tc.want, b.ReturnComponent, "return %.0f%%", tc.returnPct)
	}
}

func TestScore_DisciplineCountsWinningAdvisedBuys(t *testing.T) {
	slice := fixtureSlice(t)

	trades := []domain.TradeRecord{
		// Advised buy (AAPL BUY on day 0), filled at 110. The fifth trading
		// day after day 1 closes at 132 on day 8: a win.
		executedBuy("AAPL", 0, 1, 110),
		// Advised buy (NVDA STRONG_BUY on day 10), filled on the final day.
		// No trading day follows, so it cannot score.
		executedBuy("NVDA", 10, 11, 55),
	}

	b := Score(Input{ReturnPct: 0, Trades: trades, Difficulty: domain.DifficultyMedium}, slice)
	assert.Equal(t, 1, b.DisciplinedTrades)
	assert.Equal(t, 50, b.DisciplineComponent)
}

func TestScore_DisciplineIgnoresUnadvisedAndLosingBuys(t *testing.T) {
	slice := fixtureSlice(t)

	trades := []domain.TradeRecord{
		// AAPL advice on day 4 is SELL: never disciplined regardless of
		// outcome.
		executedBuy("AAPL", 4, 7, 131),
		// Advised buy (AAPL BUY on day 7) filled at 131; the remaining
		// closes (132, 130, 127, 128) never beat the fill.
		executedBuy("AAPL", 7, 8, 131),
		// Rejected trades never count.
		{
			Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1,
			DaySubmitted: 0, Status: domain.TradeRejected,
			RejectReason: domain.ReasonInsufficientCash,
		},
	}

	b := Score(Input{ReturnPct: 0, Trades: trades, Difficulty: domain.DifficultyMedium}, slice)
	assert.Equal(t, 0, b.DisciplinedTrades)
	assert.Equal(t, 0, b.DisciplineComponent)
}

func TestScore_DisciplineRewardCaps(t *testing.T) {
	slice := fixtureSlice(t)

	var trades []domain.TradeRecord
	for i := 0; i < 14; i++ {
		trades = append(trades, executedBuy("AAPL", 0, 1, 110))
	}

	b := Score(Input{ReturnPct: 0, Trades: trades, Difficulty: domain.DifficultyMedium}, slice)
	assert.Equal(t, 14, b.DisciplinedTrades)
	assert.Equal(t, 500, b.DisciplineComponent, "reward caps at ten trades")
}

func TestScore_BeatAIBonus(t *testing.T) {
	slice := fixtureSlice(t)

	cases := []struct {
		player, ai float64
		want       int
	}{
		{0, 10, 0},   // behind the AI
		{10, 10, 0},  // level
		{20, 10, 100}, // half the 20-point spread
		{40, 10, 200}, // saturated
	}
	for _, tc := range cases {
		b := Score(Input{ReturnPct: tc.player, AIReturnPct: tc.ai, Difficulty: domain.DifficultyMedium}, slice)
		assert.Equal(t, tc.want, b.BeatAIBonus, "player %.0f vs ai %.0f", tc.player, tc.ai)
	}
}

func TestScore_DrawdownPenalty(t *testing.T) {
	slice := fixtureSlice(t)

	history := []domain.PortfolioSnapshot{
		{Day: 0, PortfolioValue: 10000},
		{Day: 1, PortfolioValue: 12000},
		{Day: 2, PortfolioValue: 9000},
		{Day: 3, PortfolioValue: 11000},
	}

	b := Score(Input{ReturnPct: 10, History: history, Difficulty: domain.DifficultyMedium}, slice)
	assert.InDelta(t, 25.0, b.MaxDrawdownPct, 1e-9)
	assert.Equal(t, -125, b.DrawdownPenalty)

	// A 40%+ drawdown saturates the penalty.
	history[2].PortfolioValue = 5000
	b = Score(Input{ReturnPct: 10, History: history, Difficulty: domain.DifficultyMedium}, slice)
	assert.Equal(t, -200, b.DrawdownPenalty)
}

func TestScore_RiskFiguresFromHistory(t *testing.T) {
	slice := fixtureSlice(t)

	// Daily returns +10%, -10%, +10%.
	history := []domain.PortfolioSnapshot{
		{Day: 0, PortfolioValue: 10000},
		{Day: 1, PortfolioValue: 11000},
		{Day: 2, PortfolioValue: 9900},
		{Day: 3, PortfolioValue: 10890},
	}

	b := Score(Input{ReturnPct: 8.9, History: history, Difficulty: domain.DifficultyMedium}, slice)

	assert.InDelta(t, 10.0, b.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 1.0, b.CurrentDrawdownPct, 1e-9, "final value sits one percent under the 11000 peak")
	assert.InDelta(t, 3.33, b.MeanDailyReturnPct, 1e-9)
	// Sample stddev of the returns is sqrt(1/75); annualized by sqrt(252).
	assert.InDelta(t, 183.3, b.VolatilityPct, 1e-9)

	// The figures are informational: the total matches the components alone.
	assert.Equal(t, b.ReturnComponent+b.DisciplineComponent+b.BeatAIBonus+b.DrawdownPenalty, b.Total)
}

func TestScore_RiskFiguresNeedTwoReturns(t *testing.T) {
	slice := fixtureSlice(t)

	history := []domain.PortfolioSnapshot{
		{Day: 0, PortfolioValue: 10000},
		{Day: 1, PortfolioValue: 10500},
	}

	b := Score(Input{ReturnPct: 5, History: history, Difficulty: domain.DifficultyMedium}, slice)

	// One return is not a spread; volatility stays unset rather than NaN.
	assert.Zero(t, b.VolatilityPct)
	assert.Zero(t, b.MeanDailyReturnPct)
	assert.InDelta(t, 0.0, b.CurrentDrawdownPct, 1e-9)
}

func TestScore_TotalIsComponentSum(t *testing.T) {
	slice := fixtureSlice(t)

	b := Score(Input{
		ReturnPct:   20,
		AIReturnPct: 10,
		History: []domain.PortfolioSnapshot{
			{Day: 0, PortfolioValue: 10000},
			{Day: 1, PortfolioValue: 12000},
		},
		Trades:     []domain.TradeRecord{executedBuy("AAPL", 0, 1, 110)},
		Difficulty: domain.DifficultyMedium,
	}, slice)

	assert.Equal(t, 200, b.ReturnComponent)
	assert.Equal(t, 50, b.DisciplineComponent)
	assert.Equal(t, 100, b.BeatAIBonus)
	assert.Equal(t, 0, b.DrawdownPenalty)
	assert.Equal(t, 350, b.Total)
	assert.Equal(t, "F", b.Grade)
}

func TestGradeFor_Thresholds(t *testing.T) {
	cases := []struct {
		score      int
		difficulty domain.Difficulty
		want       string
	}{
		{700, domain.DifficultyMedium, "A"},
		{699, domain.DifficultyMedium, "B"},
		{550, domain.DifficultyMedium, "B"},
		{400, domain.DifficultyMedium, "C"},
		{250, domain.DifficultyMedium, "D"},
		{249, domain.DifficultyMedium, "F"},
		{600, domain.DifficultyEasy, "A"},
		{150, domain.DifficultyEasy, "D"},
		{700, domain.DifficultyHard, "B"},
		{800, domain.DifficultyHard, "A"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, GradeFor(tc.score, tc.difficulty),
			"score %d at %s", tc.score, tc.difficulty)
	}
}
