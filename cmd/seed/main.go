// Package main generates a deterministic synthetic market and writes it into
// the four read-only content stores, so a fresh checkout is playable without
// the offline ingestion pipeline. Same seed, same database contents.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/config"
	"github.com/aristath/stockroom/internal/database"
	"github.com/aristath/stockroom/pkg/formulas"
	"github.com/aristath/stockroom/pkg/logger"
)

const (
	dateLayout = "2006-01-02"

	// Bars generated before the requested start so the indicator warmup
	// (longest period 20) is complete on the first playable date.
	warmupDays = 30
)

type bar struct {
	date   string
	open   float64
	high   float64
	low    float64
	close  float64
	volume int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var (
		tickersFlag = flag.String("tickers", strings.Join(cfg.DefaultTickers, ","), "comma-separated ticker symbols")
		startFlag   = flag.String("start", cfg.EarliestGameDate, "first playable date (YYYY-MM-DD)")
		endFlag     = flag.String("end", time.Now().UTC().Format(dateLayout), "last generated date (YYYY-MM-DD)")
		seedFlag    = flag.Int64("seed", 1, "generator seed")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true}).
		With().Str("component", "seed").Logger()

	start, err := time.Parse(dateLayout, *startFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -start date")
	}
	end, err := time.Parse(dateLayout, *endFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -end date")
	}
	if !end.After(start) {
		log.Fatal().Str("start", *startFlag).Str("end", *endFlag).Msg("-end must be after -start")
	}

	tickers := splitTickers(*tickersFlag)
	if len(tickers) == 0 {
		log.Fatal().Msg("-tickers must name at least one symbol")
	}

	dbs := map[string]*database.DB{}
	for _, name := range []string{"market_data", "news", "features", "agents"} {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(name),
			Profile: database.ProfileStandard,
			Name:    name,
		})
		if err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
		}
		dbs[name] = db
	}

	for _, ticker := range tickers {
		if err := seedTicker(dbs, ticker, start, end, *seedFlag, log); err != nil {
			log.Fatal().Err(err).Str("ticker", ticker).Msg("Seeding failed")
		}
	}

	log.Info().
		Strs("tickers", tickers).
		Str("start", *startFlag).
		Str("end", *endFlag).
		Msg("Seeding completed")
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// tickerSeed folds the symbol into the run seed so each ticker walks its own
// path but reruns reproduce it exactly.
func tickerSeed(ticker string, seed int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return seed ^ int64(h.Sum64())
}

func seedTicker(dbs map[string]*database.DB, ticker string, start, end time.Time, seed int64, log zerolog.Logger) error {
	rng := rand.New(rand.NewSource(tickerSeed(ticker, seed)))

	bars := generateBars(rng, start.AddDate(0, 0, -warmupDays), end)
	if len(bars) == 0 {
		return fmt.Errorf("no weekdays in range")
	}

	if err := writePrices(dbs["market_data"], ticker, bars, start); err != nil {
		return err
	}
	feats := computeFeatures(bars)
	if err := writeFeatures(dbs["features"], ticker, bars, feats, start); err != nil {
		return err
	}
	if err := writeNews(dbs["news"], rng, ticker, bars, start); err != nil {
		return err
	}
	if err := writeRecommendations(dbs["agents"], ticker, bars, feats, start); err != nil {
		return err
	}

	log.Info().Str("ticker", ticker).Int("bars", len(bars)).Msg("Ticker seeded")
	return nil
}

// generateBars walks a geometric random path over the weekdays in the range.
func generateBars(rng *rand.Rand, from, to time.Time) []bar {
	price := 40 + rng.Float64()*260
	drift := (rng.Float64() - 0.45) * 0.002 // slight long bias for most seeds
	vol := 0.008 + rng.Float64()*0.017
	baseVolume := 1_000_000 + rng.Int63n(20_000_000)

	var bars []bar
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}

		gap := rng.NormFloat64() * vol * 0.4
		open := price * (1 + gap)
		move := drift + rng.NormFloat64()*vol
		closePx := open * (1 + move)
		spread := math.Abs(rng.NormFloat64()) * vol * open
		high := math.Max(open, closePx) + spread
		low := math.Min(open, closePx) - spread
		if low < 1 {
			low = 1
		}
		volume := baseVolume + int64(float64(baseVolume)*math.Abs(move)*25*rng.Float64())

		bars = append(bars, bar{
			date:   d.Format(dateLayout),
			open:   round2(open),
			high:   round2(high),
			low:    round2(low),
			close:  round2(closePx),
			volume: volume,
		})
		price = closePx
	}

	return bars
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// features holds the indicator series aligned with the bar slice.
type features struct {
	momentum  []float64 // 10-day rate of change, percent
	trend     []float64 // close vs 20-day SMA, percent
	rangePct  []float64 // 14-day ATR as a percent of close
	reversion []float64 // Bollinger %B, 20-day
	volRatio  []float64 // volume vs its 20-day SMA
	rsi       []float64 // 14-day RSI
	warmup    int
}

func computeFeatures(bars []bar) features {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.close
		highs[i] = b.high
		lows[i] = b.low
		volumes[i] = float64(b.volume)
	}

	sma20 := formulas.SMASeries(closes, 20)
	volSMA := formulas.SMASeries(volumes, 20)
	atr := formulas.ATRSeries(highs, lows, closes, 14)

	f := features{
		momentum:  formulas.ROCSeries(closes, 10),
		trend:     make([]float64, len(bars)),
		rangePct:  make([]float64, len(bars)),
		reversion: formulas.BollingerPercentB(closes, 20),
		volRatio:  make([]float64, len(bars)),
		rsi:       formulas.RSISeries(closes, 14),
		warmup:    20,
	}

	for i := range bars {
		if sma20[i] > 0 {
			f.trend[i] = (closes[i] - sma20[i]) / sma20[i] * 100
		}
		if closes[i] > 0 {
			f.rangePct[i] = atr[i] / closes[i] * 100
		}
		if volSMA[i] > 0 {
			f.volRatio[i] = volumes[i] / volSMA[i]
		}
	}

	return f
}

func writePrices(db *database.DB, ticker string, bars []bar, start time.Time) error {
	return database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO tickers (symbol, name, sector, active) VALUES (?, ?, ?, 1)`,
			ticker, ticker+" Inc.", sectorFor(ticker)); err != nil {
			return err
		}

		// Warmup bars are kept too: lookbacks before the start date are
		// legitimate reads (charts, indicators on day zero).
		for _, b := range bars {
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO daily_prices (ticker, date, open, high, low, close, volume)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ticker, b.date, b.open, b.high, b.low, b.close, b.volume); err != nil {
				return err
			}
		}
		return nil
	})
}

func sectorFor(ticker string) string {
	sectors := []string{"Technology", "Consumer", "Healthcare", "Energy", "Financials"}
	h := fnv.New32a()
	h.Write([]byte(ticker))
	return sectors[int(h.Sum32())%len(sectors)]
}

func writeFeatures(db *database.DB, ticker string, bars []bar, f features, start time.Time) error {
	startStr := start.Format(dateLayout)
	return database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		for i, b := range bars {
			// No row at all until every indicator is warm; readers treat
			// absence as absent, not as zeros.
			if i < f.warmup || b.date < startStr {
				continue
			}
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO technical_features
				 (ticker, date, momentum, trend, range_pct, reversion, volume_ratio, rsi)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				ticker, b.date,
				round2(f.momentum[i]), round2(f.trend[i]), round2(f.rangePct[i]),
				round2(f.reversion[i]*100)/100, round2(f.volRatio[i]), round2(f.rsi[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

var headlineTemplates = map[string][]string{
	"up": {
		"%s shares rally as quarterly results top expectations",
		"Analysts raise price targets on %s after strong guidance",
		"%s gains on upbeat demand outlook",
	},
	"down": {
		"%s slides as margin pressure worries investors",
		"%s falls after cautious commentary from management",
		"Analysts trim estimates for %s on softening demand",
	},
	"flat": {
		"%s little changed ahead of industry conference",
		"%s steady as traders weigh mixed signals",
	},
}

func writeNews(db *database.DB, rng *rand.Rand, ticker string, bars []bar, start time.Time) error {
	startStr := start.AddDate(0, 0, -14).Format(dateLayout)
	return database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		for i, b := range bars {
			// Two weeks of lead-in news so day-zero slices meet the
			// coverage floor.
			if b.date < startStr {
				continue
			}
			count := rng.Intn(3) // 0..2 headlines a day
			for n := 0; n < count; n++ {
				dayReturn := 0.0
				if i > 0 && bars[i-1].close > 0 {
					dayReturn = (b.close - bars[i-1].close) / bars[i-1].close
				}

				direction := "flat"
				if dayReturn > 0.004 {
					direction = "up"
				} else if dayReturn < -0.004 {
					direction = "down"
				}
				templates := headlineTemplates[direction]
				headline := fmt.Sprintf(templates[rng.Intn(len(templates))], ticker)

				sentiment := formulas.Clamp(dayReturn*25+rng.NormFloat64()*0.15, -1, 1)
				publishedAt := fmt.Sprintf("%sT%02d:%02d:00Z", b.date, 9+rng.Intn(8), rng.Intn(60))

				if _, err := tx.Exec(
					`INSERT INTO news_items (ticker, published_at, headline, summary, source, sentiment)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					ticker, publishedAt, headline,
					fmt.Sprintf("Synthetic wire item for %s on %s.", ticker, b.date),
					"SyntheticWire", round2(sentiment)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeRecommendations(db *database.DB, ticker string, bars []bar, f features, start time.Time) error {
	startStr := start.Format(dateLayout)
	return database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		for i, b := range bars {
			if i < f.warmup || b.date < startStr {
				continue
			}

			label, confidence := adviceFor(f.rsi[i], f.trend[i])

			technical := "NEUTRAL"
			if f.trend[i] > 1 {
				technical = "BULLISH"
			} else if f.trend[i] < -1 {
				technical = "BEARISH"
			}

			sentiment := "NEUTRAL"
			if f.momentum[i] > 2 {
				sentiment = "POSITIVE"
			} else if f.momentum[i] < -2 {
				sentiment = "NEGATIVE"
			}

			risk := "LOW"
			if f.rangePct[i] > 4 {
				risk = "HIGH"
			} else if f.rangePct[i] > 2 {
				risk = "MEDIUM"
			}

			rationale := fmt.Sprintf("RSI %.0f, price %.1f%% vs 20-day average, %s risk regime.",
				f.rsi[i], f.trend[i], strings.ToLower(risk))

			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO recommendations
				 (ticker, date, recommendation, confidence, technical_signal, sentiment_signal, risk_level, rationale_summary)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				ticker, b.date, label, round2(confidence), technical, sentiment, risk, rationale); err != nil {
				return err
			}
		}
		return nil
	})
}

// adviceFor maps the indicator pair onto a label the way the offline agent
// pipeline does: oversold means buy, overbought means sell, trend breaks
// ties at the extremes.
func adviceFor(rsi, trend float64) (string, float64) {
	confidence := formulas.Clamp(math.Abs(rsi-50)/50, 0.1, 0.95)
	switch {
	case rsi < 30 && trend > 0:
		return "STRONG_BUY", confidence
	case rsi < 40:
		return "BUY", confidence
	case rsi > 70 && trend < 0:
		return "STRONG_SELL", confidence
	case rsi > 60:
		return "SELL", confidence
	default:
		return "HOLD", confidence
	}
}
