package testing

import (
	"testing"

	"github.com/aristath/stockroom/internal/database"
)

// The market fixture covers three tickers over the two trading weeks of
// 2025-03-03 .. 2025-03-14 (weekends absent). Deliberate gaps:
//
//   - MSFT has no bar on 2025-03-12, so that date is not a trading day for
//     any game that includes MSFT
//   - MSFT has no recommendation before 2025-03-05 and none on 03-12
//   - NVDA has no recommendation on 2025-03-04
//   - MSFT has no technical snapshot before 2025-03-05
//   - AAPL holds 8 window news items plus 4 older ones for backfill
const (
	FixtureStart = "2025-03-03"
	FixtureEnd   = "2025-03-14"
)

// FixtureTickers are the symbols the market fixture covers.
var FixtureTickers = []string{"AAPL", "MSFT", "NVDA"}

// FixtureDates are the weekday dates of the fixture window, in order.
var FixtureDates = []string{
	"2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07",
	"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14",
}

type fixtureBar struct {
	ticker string
	date   string
	open   float64
	high   float64
	low    float64
	close  float64
	volume int64
}

var fixtureBars = []fixtureBar{
	{"AAPL", "2025-03-03", 100.00, 101.00, 99.00, 100.00, 1000000},
	{"AAPL", "2025-03-04", 110.00, 126.00, 109.00, 125.00, 1500000},
	{"AAPL", "2025-03-05", 126.00, 130.00, 124.00, 130.00, 1200000},
	{"AAPL", "2025-03-06", 130.00, 132.00, 128.00, 129.00, 900000},
	{"AAPL", "2025-03-07", 129.00, 131.00, 127.00, 131.00, 1000000},
	{"AAPL", "2025-03-10", 131.00, 134.00, 130.00, 133.00, 1100000},
	{"AAPL", "2025-03-11", 133.00, 135.00, 131.00, 132.00, 1000000},
	{"AAPL", "2025-03-12", 132.00, 133.00, 129.00, 130.00, 800000},
	{"AAPL", "2025-03-13", 130.00, 131.00, 126.00, 127.00, 1300000},
	{"AAPL", "2025-03-14", 127.00, 129.00, 126.00, 128.00, 1000000},

	{"MSFT", "2025-03-03", 200.00, 203.00, 199.00, 202.00, 2000000},
	{"MSFT", "2025-03-04", 202.50, 205.00, 201.00, 204.00, 2100000},
	{"MSFT", "2025-03-05", 204.00, 205.50, 202.00, 203.00, 1900000},
	{"MSFT", "2025-03-06", 203.00, 206.00, 202.50, 205.00, 2000000},
	{"MSFT", "2025-03-07", 205.00, 208.00, 204.00, 207.00, 2200000},
	{"MSFT", "2025-03-10", 207.00, 208.00, 205.00, 206.00, 1800000},
	{"MSFT", "2025-03-11", 206.00, 209.00, 205.50, 208.00, 2000000},
	// 2025-03-12 deliberately missing
	{"MSFT", "2025-03-13", 208.00, 211.00, 207.00, 210.00, 2300000},
	{"MSFT", "2025-03-14", 210.00, 211.00, 208.00, 209.00, 2000000},

	{"NVDA", "2025-03-03", 50.00, 51.50, 49.50, 51.00, 3000000},
	{"NVDA", "2025-03-04", 51.00, 53.00, 50.50, 52.50, 3200000},
	{"NVDA", "2025-03-05", 52.50, 53.00, 51.50, 52.00, 2800000},
	{"NVDA", "2025-03-06", 52.00, 53.50, 51.50, 53.00, 2900000},
	{"NVDA", "2025-03-07", 53.00, 55.50, 52.50, 55.00, 3500000},
	{"NVDA", "2025-03-10", 55.00, 55.50, 53.50, 54.00, 2700000},
	{"NVDA", "2025-03-11", 54.00, 56.50, 53.50, 56.00, 3100000},
	{"NVDA", "2025-03-12", 56.00, 57.50, 55.50, 57.00, 3000000},
	{"NVDA", "2025-03-13", 57.00, 57.50, 54.50, 55.00, 3300000},
	{"NVDA", "2025-03-14", 55.00, 58.50, 54.50, 58.00, 3400000},
}

type fixtureRec struct {
	ticker     string
	date       string
	label      string
	confidence float64
}

var fixtureRecs = []fixtureRec{
	{"AAPL", "2025-03-03", "BUY", 0.80},
	{"AAPL", "2025-03-04", "HOLD", 0.55},
	{"AAPL", "2025-03-05", "STRONG_BUY", 0.85},
	{"AAPL", "2025-03-06", "HOLD", 0.50},
	{"AAPL", "2025-03-07", "SELL", 0.60},
	{"AAPL", "2025-03-10", "BUY", 0.70},
	{"AAPL", "2025-03-11", "HOLD", 0.50},
	{"AAPL", "2025-03-12", "HOLD", 0.45},
	{"AAPL", "2025-03-13", "BUY", 0.65},
	{"AAPL", "2025-03-14", "HOLD", 0.50},

	// MSFT has no stored advice before 03-05 and none on 03-12
	{"MSFT", "2025-03-05", "HOLD", 0.50},
	{"MSFT", "2025-03-06", "BUY", 0.60},
	{"MSFT", "2025-03-07", "HOLD", 0.52},
	{"MSFT", "2025-03-10", "SELL", 0.58},
	{"MSFT", "2025-03-11", "HOLD", 0.50},
	{"MSFT", "2025-03-13", "HOLD", 0.51},
	{"MSFT", "2025-03-14", "BUY", 0.62},

	// NVDA skips 03-04
	{"NVDA", "2025-03-03", "STRONG_BUY", 0.90},
	{"NVDA", "2025-03-05", "BUY", 0.75},
	{"NVDA", "2025-03-06", "HOLD", 0.50},
	{"NVDA", "2025-03-07", "BUY", 0.72},
	{"NVDA", "2025-03-10", "HOLD", 0.48},
	{"NVDA", "2025-03-11", "SELL", 0.61},
	{"NVDA", "2025-03-12", "HOLD", 0.50},
	{"NVDA", "2025-03-13", "STRONG_BUY", 0.88},
	{"NVDA", "2025-03-14", "HOLD", 0.50},
}

type fixtureNews struct {
	ticker      string
	publishedAt string
	headline    string
	source      string
	sentiment   *float64
}

func pf(v float64) *float64 { return &v }

var fixtureNewsItems = []fixtureNews{
	// AAPL: 4 items before the window, 8 inside it
	{"AAPL", "2025-02-24T12:00:00Z", "Apple supplier checks point to steady handset demand", "wire", pf(0.2)},
	{"AAPL", "2025-02-26T09:30:00Z", "Apple services growth cools quarter over quarter", "wire", pf(-0.1)},
	{"AAPL", "2025-02-27T16:00:00Z", "Apple expands retail footprint in southeast Asia", "wire", pf(0.3)},
	{"AAPL", "2025-02-28T11:00:00Z", "Analysts trim Apple estimates ahead of launch event", "desk", pf(-0.2)},
	{"AAPL", "2025-03-03T13:30:00Z", "Apple unveils refreshed tablet lineup", "wire", pf(0.4)},
	{"AAPL", "2025-03-03T18:00:00Z", "Apple buyback pace tops street expectations", "desk", pf(0.5)},
	{"AAPL", "2025-03-05T10:00:00Z", "Apple app store revenue hits monthly record", "wire", pf(0.6)},
	{"AAPL", "2025-03-06T14:00:00Z", "Regulators open review of Apple payment terms", "wire", pf(-0.4)},
	{"AAPL", "2025-03-10T09:00:00Z", "Apple component costs ease on supplier deal", "desk", pf(0.3)},
	{"AAPL", "2025-03-11T15:30:00Z", "Apple loses appeal in patent dispute", "wire", pf(-0.3)},
	{"AAPL", "2025-03-13T12:00:00Z", "Apple ships developer beta with on-device models", "wire", pf(0.5)},
	{"AAPL", "2025-03-14T10:30:00Z", "Apple weekend preorders ahead of last cycle", "desk", pf(0.4)},

	// MSFT: thin coverage, 1 before the window, 2 inside it
	{"MSFT", "2025-02-20T10:00:00Z", "Microsoft datacenter buildout hits permitting delays", "wire", pf(-0.2)},
	{"MSFT", "2025-03-04T11:00:00Z", "Microsoft cloud margins widen again", "wire", pf(0.5)},
	{"MSFT", "2025-03-06T13:00:00Z", "Microsoft raises enterprise seat prices", "desk", nil},

	// NVDA: 12 items inside the window
	{"NVDA", "2025-03-03T09:00:00Z", "Nvidia accelerator backlog stretches into autumn", "wire", pf(0.7)},
	{"NVDA", "2025-03-04T10:00:00Z", "Nvidia board approves capacity prepayments", "wire", pf(0.3)},
	{"NVDA", "2025-03-05T11:00:00Z", "Hyperscaler capex guides point to sustained GPU demand", "desk", pf(0.6)},
	{"NVDA", "2025-03-06T12:00:00Z", "Nvidia rival teases cheaper inference part", "wire", pf(-0.3)},
	{"NVDA", "2025-03-07T13:00:00Z", "Nvidia developer conference registrations set record", "wire", pf(0.4)},
	{"NVDA", "2025-03-10T09:30:00Z", "Export rule clarifications lift chip sentiment", "desk", pf(0.5)},
	{"NVDA", "2025-03-10T15:00:00Z", "Nvidia supplier reports yield improvements", "wire", pf(0.4)},
	{"NVDA", "2025-03-11T10:00:00Z", "Fund flows rotate out of semis", "desk", pf(-0.4)},
	{"NVDA", "2025-03-12T11:30:00Z", "Nvidia announces automotive design win", "wire", pf(0.5)},
	{"NVDA", "2025-03-13T09:00:00Z", "Nvidia profit taking after record close", "desk", pf(-0.2)},
	{"NVDA", "2025-03-13T16:00:00Z", "Nvidia expands university research grants", "wire", pf(0.1)},
	{"NVDA", "2025-03-14T10:00:00Z", "Nvidia quarter preview: all eyes on data center", "desk", nil},
}

// SeedPrices loads the fixture tickers and daily bars into a market_data
// database.
func SeedPrices(t *testing.T, db *database.DB) {
	t.Helper()

	for _, sym := range FixtureTickers {
		if _, err := db.Exec(
			`INSERT INTO tickers (symbol, name, sector, active) VALUES (?, ?, ?, 1)`,
			sym, sym+" Inc.", "Technology",
		); err != nil {
			t.Fatalf("Failed to seed ticker %s: %v", sym, err)
		}
	}

	for _, bar := range fixtureBars {
		if _, err := db.Exec(
			`INSERT INTO daily_prices (ticker, date, open, high, low, close, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			bar.ticker, bar.date, bar.open, bar.high, bar.low, bar.close, bar.volume,
		); err != nil {
			t.Fatalf("Failed to seed bar %s/%s: %v", bar.ticker, bar.date, err)
		}
	}
}

// SeedRecommendations loads the fixture advice rows into an agents database.
func SeedRecommendations(t *testing.T, db *database.DB) {
	t.Helper()

	for _, rec := range fixtureRecs {
		signal := "NEUTRAL"
		switch rec.label {
		case "BUY", "STRONG_BUY":
			signal = "BULLISH"
		case "SELL", "STRONG_SELL":
			signal = "BEARISH"
		}

		if _, err := db.Exec(
			`INSERT INTO recommendations
			 (ticker, date, recommendation, confidence, technical_signal, sentiment_signal, risk_level, rationale_summary)
			 VALUES (?, ?, ?, ?, ?, 'NEUTRAL', 'MEDIUM', ?)`,
			rec.ticker, rec.date, rec.label, rec.confidence, signal,
			rec.label+" call for "+rec.ticker,
		); err != nil {
			t.Fatalf("Failed to seed recommendation %s/%s: %v", rec.ticker, rec.date, err)
		}
	}
}

// SeedFeatures loads technical snapshots into a features database. MSFT has
// no rows before 2025-03-05; other tickers cover every bar date.
func SeedFeatures(t *testing.T, db *database.DB) {
	t.Helper()

	for i, bar := range fixtureBars {
		if bar.ticker == "MSFT" && bar.date < "2025-03-05" {
			continue
		}

		step := float64(i % 10)
		if _, err := db.Exec(
			`INSERT INTO technical_features
			 (ticker, date, momentum, trend, range_pct, reversion, volume_ratio, rsi)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			bar.ticker, bar.date,
			0.5*step, 0.01*step, 0.02+0.001*step, 0.4+0.02*step, 1.0+0.05*step, 45.0+step,
		); err != nil {
			t.Fatalf("Failed to seed features %s/%s: %v", bar.ticker, bar.date, err)
		}
	}
}

// SeedNews loads the fixture headlines into a news database.
func SeedNews(t *testing.T, db *database.DB) {
	t.Helper()

	for _, item := range fixtureNewsItems {
		var sentiment interface{}
		if item.sentiment != nil {
			sentiment = *item.sentiment
		}

		if _, err := db.Exec(
			`INSERT INTO news_items (ticker, published_at, headline, summary, source, sentiment)
			 VALUES (?, ?, ?, NULL, ?, ?)`,
			item.ticker, item.publishedAt, item.headline, item.source, sentiment,
		); err != nil {
			t.Fatalf("Failed to seed news %s/%s: %v", item.ticker, item.publishedAt, err)
		}
	}
}

// SeedMarketFixture loads the full fixture into all four read-only stores.
func SeedMarketFixture(t *testing.T, market, news, features, agents *database.DB) {
	t.Helper()

	SeedPrices(t, market)
	SeedNews(t, news)
	SeedFeatures(t, features)
	SeedRecommendations(t, agents)
}
