package historical

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockroom/internal/domain"
	stesting "github.com/aristath/stockroom/internal/testing"
)

func newFixtureGateway(t *testing.T) *Gateway {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)

	market := stesting.NewTestDB(t, "market_data")
	news := stesting.NewTestDB(t, "news")
	features := stesting.NewTestDB(t, "features")
	agents := stesting.NewTestDB(t, "agents")

	stesting.SeedMarketFixture(t, market, news, features, agents)

	return NewGateway(
		NewPriceRepository(market.Conn(), log),
		NewNewsRepository(news.Conn(), log),
		NewFeatureRepository(features.Conn(), log),
		NewRecommendationRepository(agents.Conn(), log),
		"2025-01-01",
		log,
	)
}

func TestPrices_ReturnsAscendingBars(t *testing.T) {
	g := newFixtureGateway(t)

	days, err := g.Prices(context.Background(), "AAPL", stesting.FixtureStart, stesting.FixtureEnd)
	require.NoError(t, err)
	require.Len(t, days, 10)

	assert.Equal(t, "2025-03-03", days[0].Date)
	assert.Equal(t, "2025-03-14", days[len(days)-1].Date)
	assert.Equal(t, 110.00, days[1].Open)
	assert.Equal(t, 125.00, days[1].Close)

	for i := 1; i < len(days); i++ {
		assert.Less(t, days[i-1].Date, days[i].Date)
	}
}

func TestPrices_LowercaseTickerIsNormalized(t *testing.T) {
	g := newFixtureGateway(t)

	days, err := g.Prices(context.Background(), "aapl", stesting.FixtureStart, stesting.FixtureEnd)
	require.NoError(t, err)
	assert.Len(t, days, 10)
}

func TestPrices_BeforeFloorFailsOutOfRange(t *testing.T) {
	g := newFixtureGateway(t)

	_, err := g.Prices(context.Background(), "AAPL", "2024-12-01", "2024-12-31")
	require.Error(t, err)
	assert.Equal(t, domain.KindOutOfRange, domain.KindOf(err))
}

func TestPrices_MalformedDateFailsValidation(t *testing.T) {
	g := newFixtureGateway(t)

	_, err := g.Prices(context.Background(), "AAPL", "03/03/2025", "2025-03-14")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestValidateTickers_UnknownFailsNotFound(t *testing.T) {
	g := newFixtureGateway(t)

	err := g.ValidateTickers(context.Background(), []string{"AAPL", "ZZZZ"})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Contains(t, err.Error(), "ZZZZ")
}

func TestValidateTickers_KnownSucceed(t *testing.T) {
	g := newFixtureGateway(t)

	err := g.ValidateTickers(context.Background(), []string{"AAPL", "msft", " nvda "})
	assert.NoError(t, err)
}

func TestIndicators_AbsentSnapshotIsNil(t *testing.T) {
	g := newFixtureGateway(t)

	// MSFT has no snapshot before 03-05
	snap, err := g.Indicators(context.Background(), "MSFT", "2025-03-03")
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = g.Indicators(context.Background(), "AAPL", "2025-03-03")
	require.NoError(t, err)
	require.NotNil(t, snap)
}

func TestRecommendationOnOrBefore_FillsFromPriorDate(t *testing.T) {
	g := newFixtureGateway(t)

	// NVDA has no advice on 03-04; the prior row is the 03-03 STRONG_BUY
	rec, err := g.RecommendationOnOrBefore(context.Background(), "NVDA", "2025-03-04")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2025-03-03", rec.Date)
	assert.Equal(t, domain.StrongBuy, rec.Label)
}

func TestRecommendationOnOrBefore_NothingStoredIsNil(t *testing.T) {
	g := newFixtureGateway(t)

	// MSFT's first stored advice is 03-05
	rec, err := g.RecommendationOnOrBefore(context.Background(), "MSFT", "2025-03-04")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestNews_BackfillsToMinimumCount(t *testing.T) {
	g := newFixtureGateway(t)

	items, err := g.News(context.Background(), "AAPL", stesting.FixtureStart, stesting.FixtureEnd, 10)
	require.NoError(t, err)
	require.Len(t, items, 10)

	// Newest first throughout, with the two backfilled items at the tail
	assert.Equal(t, "2025-03-14", domain.FormatDate(items[0].PublishedAt))
	assert.Equal(t, "2025-02-28", domain.FormatDate(items[8].PublishedAt))
	assert.Equal(t, "2025-02-27", domain.FormatDate(items[9].PublishedAt))

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].PublishedAt.After(items[i-1].PublishedAt),
			"expected newest-first ordering at index %d", i)
	}
}

func TestNews_StoreRunsDryBelowMinimum(t *testing.T) {
	g := newFixtureGateway(t)

	// MSFT has 2 window items and only 1 older one
	items, err := g.News(context.Background(), "MSFT", stesting.FixtureStart, stesting.FixtureEnd, 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestNews_NoBackfillWhenWindowIsRich(t *testing.T) {
	g := newFixtureGateway(t)

	items, err := g.News(context.Background(), "NVDA", stesting.FixtureStart, stesting.FixtureEnd, 10)
	require.NoError(t, err)
	assert.Len(t, items, 12)

	for _, item := range items {
		assert.GreaterOrEqual(t, domain.FormatDate(item.PublishedAt), stesting.FixtureStart)
	}
}

func TestLatestCommonDate_AllTickers(t *testing.T) {
	g := newFixtureGateway(t)

	date, err := g.LatestCommonDate(context.Background(), stesting.FixtureTickers)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", date)
}

func TestLatestCommonDate_NoOverlapIsEmpty(t *testing.T) {
	g := newFixtureGateway(t)

	date, err := g.LatestCommonDate(context.Background(), []string{"AAPL", "ZZZZ"})
	require.NoError(t, err)
	assert.Equal(t, "", date)
}

func TestEarliestAllowedDate(t *testing.T) {
	g := newFixtureGateway(t)
	assert.Equal(t, "2025-01-01", g.EarliestAllowedDate())
}
