// Package historical is the read-only gateway over the four data stores:
// market_data, news, features and agents. Nothing in the game core writes
// to them; this package owns date-floor enforcement, ticker validation and
// the translation of store faults into the error taxonomy.
package historical

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// Gateway is the single entry point the rest of the system uses to read
// historical data. All methods are safe for concurrent use.
type Gateway struct {
	prices   *PriceRepository
	news     *NewsRepository
	features *FeatureRepository
	recs     *RecommendationRepository
	earliest string // floor date, YYYY-MM-DD
	log      zerolog.Logger
}

// NewGateway creates the historical store gateway. earliest is the first
// playable game date; queries before it fail OUT_OF_RANGE.
func NewGateway(
	prices *PriceRepository,
	news *NewsRepository,
	features *FeatureRepository,
	recs *RecommendationRepository,
	earliest string,
	log zerolog.Logger,
) *Gateway {
	return &Gateway{
		prices:   prices,
		news:     news,
		features: features,
		recs:     recs,
		earliest: earliest,
		log:      log.With().Str("service", "historical").Logger(),
	}
}

// EarliestAllowedDate returns the floor date for playable games.
func (g *Gateway) EarliestAllowedDate() string {
	return g.earliest
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidateTickers fails NOT_FOUND on the first symbol the store has never
// heard of. Symbols are checked in their normalized form.
func (g *Gateway) ValidateTickers(ctx context.Context, tickers []string) error {
	for _, t := range tickers {
		t = NormalizeTicker(t)

		var exists bool
		err := g.retryTransient(func() error {
			var err error
			exists, err = g.prices.Exists(ctx, t)
			return err
		})
		if err != nil {
			return g.classify(ctx, err)
		}
		if !exists {
			return domain.E(domain.KindNotFound, "unknown ticker %s", t)
		}
	}
	return nil
}

// Prices returns the daily bars for a ticker within [from, to], ascending.
func (g *Gateway) Prices(ctx context.Context, ticker, from, to string) ([]domain.MarketDay, error) {
	if err := g.checkWindow(from, to); err != nil {
		return nil, err
	}

	var days []domain.MarketDay
	err := g.retryTransient(func() error {
		var err error
		days, err = g.prices.Range(ctx, NormalizeTicker(ticker), from, to)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return days, nil
}

// Indicators returns the technical snapshot for a ticker/date, or nil when
// the pipeline produced none for that date. Absence is not an error.
func (g *Gateway) Indicators(ctx context.Context, ticker, date string) (*domain.TechnicalSnapshot, error) {
	if err := g.checkDate(date); err != nil {
		return nil, err
	}

	var snap *domain.TechnicalSnapshot
	err := g.retryTransient(func() error {
		var err error
		snap, err = g.features.On(ctx, NormalizeTicker(ticker), date)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return snap, nil
}

// IndicatorsRange returns snapshots for a ticker keyed by date.
func (g *Gateway) IndicatorsRange(ctx context.Context, ticker, from, to string) (map[string]domain.TechnicalSnapshot, error) {
	if err := g.checkWindow(from, to); err != nil {
		return nil, err
	}

	var out map[string]domain.TechnicalSnapshot
	err := g.retryTransient(func() error {
		var err error
		out, err = g.features.Range(ctx, NormalizeTicker(ticker), from, to)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return out, nil
}

// IndicatorsOnOrBefore returns the most recent snapshot dated on or before
// date, reaching back before the floor if needed. Used for window head fill.
func (g *Gateway) IndicatorsOnOrBefore(ctx context.Context, ticker, date string) (*domain.TechnicalSnapshot, error) {
	var snap *domain.TechnicalSnapshot
	err := g.retryTransient(func() error {
		var err error
		snap, err = g.features.LatestOnOrBefore(ctx, NormalizeTicker(ticker), date)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return snap, nil
}

// Recommendation returns the advice row for a ticker/date, or nil when the
// agents store holds none for that date.
func (g *Gateway) Recommendation(ctx context.Context, ticker, date string) (*domain.Recommendation, error) {
	if err := g.checkDate(date); err != nil {
		return nil, err
	}

	var rec *domain.Recommendation
	err := g.retryTransient(func() error {
		var err error
		rec, err = g.recs.On(ctx, NormalizeTicker(ticker), date)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return rec, nil
}

// RecommendationsRange returns advice rows for a ticker keyed by date.
func (g *Gateway) RecommendationsRange(ctx context.Context, ticker, from, to string) (map[string]domain.Recommendation, error) {
	if err := g.checkWindow(from, to); err != nil {
		return nil, err
	}

	var out map[string]domain.Recommendation
	err := g.retryTransient(func() error {
		var err error
		out, err = g.recs.Range(ctx, NormalizeTicker(ticker), from, to)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return out, nil
}

// RecommendationOnOrBefore returns the most recent advice row dated on or
// before date, reaching back before the floor if needed.
func (g *Gateway) RecommendationOnOrBefore(ctx context.Context, ticker, date string) (*domain.Recommendation, error) {
	var rec *domain.Recommendation
	err := g.retryTransient(func() error {
		var err error
		rec, err = g.recs.LatestOnOrBefore(ctx, NormalizeTicker(ticker), date)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	return rec, nil
}

// News returns items for a ticker within [from, to], newest first. When the
// window holds fewer than minCount items, the newest items published before
// the window are appended until minCount is reached or the store runs dry.
func (g *Gateway) News(ctx context.Context, ticker, from, to string, minCount int) ([]domain.NewsItem, error) {
	if err := g.checkWindow(from, to); err != nil {
		return nil, err
	}
	if minCount <= 0 {
		minCount = 10
	}

	ticker = NormalizeTicker(ticker)

	var items []domain.NewsItem
	err := g.retryTransient(func() error {
		var err error
		items, err = g.news.Window(ctx, ticker, from, to)
		return err
	})
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	if len(items) < minCount {
		var older []domain.NewsItem
		err := g.retryTransient(func() error {
			var err error
			older, err = g.news.Before(ctx, ticker, from, minCount-len(items))
			return err
		})
		if err != nil {
			return nil, g.classify(ctx, err)
		}
		// Window items are all newer than backfilled ones, so the
		// concatenation stays newest-first.
		items = append(items, older...)
	}

	return items, nil
}

// LatestCommonDate returns the most recent date every ticker has a bar on,
// or "" when the tickers share no date at all.
func (g *Gateway) LatestCommonDate(ctx context.Context, tickers []string) (string, error) {
	normalized := make([]string, len(tickers))
	for i, t := range tickers {
		normalized[i] = NormalizeTicker(t)
	}

	var date string
	err := g.retryTransient(func() error {
		var err error
		date, err = g.prices.LatestCommonDate(ctx, normalized)
		return err
	})
	if err != nil {
		return "", g.classify(ctx, err)
	}

	return date, nil
}

// checkDate validates a single date against format and floor.
func (g *Gateway) checkDate(date string) error {
	if _, err := domain.ParseDate(date); err != nil {
		return domain.E(domain.KindValidation, "malformed date %q, want YYYY-MM-DD", date)
	}
	if date < g.earliest {
		return domain.E(domain.KindOutOfRange, "date %s is before the earliest allowed date %s", date, g.earliest)
	}
	return nil
}

// checkWindow validates a [from, to] window against format, order and floor.
func (g *Gateway) checkWindow(from, to string) error {
	if err := g.checkDate(from); err != nil {
		return err
	}
	if _, err := domain.ParseDate(to); err != nil {
		return domain.E(domain.KindValidation, "malformed date %q, want YYYY-MM-DD", to)
	}
	if from > to {
		return domain.E(domain.KindValidation, "window start %s is after end %s", from, to)
	}
	return nil
}

// retryTransient runs fn again once after a short jittered pause when the
// first attempt hits a transient store fault. Everything else surfaces
// immediately.
func (g *Gateway) retryTransient(fn func() error) error {
	err := fn()
	if err == nil || !isTransient(err) {
		return err
	}

	pause := time.Duration(50+rand.Intn(150)) * time.Millisecond // capped at 200ms
	g.log.Warn().Err(err).Dur("pause", pause).Msg("Transient store fault, retrying once")
	time.Sleep(pause)

	return fn()
}

// classify maps raw store errors into the taxonomy. Context expiry becomes
// TIMEOUT; anything else out of the store is UNAVAILABLE.
func (g *Gateway) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if de, ok := domain.AsError(err); ok {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return domain.Wrap(err, domain.KindTimeout, "historical store query timed out")
	}
	return domain.Wrap(err, domain.KindUnavailable, "historical store unavailable")
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
