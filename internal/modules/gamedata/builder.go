package gamedata

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// Store is the slice of the historical gateway the builder needs.
type Store interface {
	EarliestAllowedDate() string
	ValidateTickers(ctx context.Context, tickers []string) error
	Prices(ctx context.Context, ticker, from, to string) ([]domain.MarketDay, error)
	IndicatorsRange(ctx context.Context, ticker, from, to string) (map[string]domain.TechnicalSnapshot, error)
	IndicatorsOnOrBefore(ctx context.Context, ticker, date string) (*domain.TechnicalSnapshot, error)
	RecommendationsRange(ctx context.Context, ticker, from, to string) (map[string]domain.Recommendation, error)
	RecommendationOnOrBefore(ctx context.Context, ticker, date string) (*domain.Recommendation, error)
	News(ctx context.Context, ticker, from, to string, minCount int) ([]domain.NewsItem, error)
	LatestCommonDate(ctx context.Context, tickers []string) (string, error)
}

// minNewsPerTicker is the coverage floor for attached news: thin days are
// backfilled with older items until every ticker shows at least this many.
const minNewsPerTicker = 10

// Builder materializes game slices from the historical store. It is pure:
// the same resolved (tickers, num_days, start_date) triple always yields the
// same slice, so results are safe to cache and share.
type Builder struct {
	store Store
	log   zerolog.Logger
}

// NewBuilder creates a slice builder over the historical store.
func NewBuilder(store Store, log zerolog.Logger) *Builder {
	return &Builder{
		store: store,
		log:   log.With().Str("service", "gamedata").Logger(),
	}
}

// minTradingDays is the coverage floor: a window must contain at least
// ceil(0.6 * num_days) trading days to be playable.
func minTradingDays(numDays int) int {
	return int(math.Ceil(0.6 * float64(numDays)))
}

// ResolveWindow applies the three resolution rules in order and returns the
// resolved [start, end] calendar window. The config must be normalized.
//
//  1. Both dates given: the window must start at or after the floor and span
//     exactly num_days calendar days.
//  2. Only start given: end = start + num_days - 1.
//  3. Neither given: the most recent window ending on the latest date every
//     ticker has a bar on.
//
// Coverage (the 60% trading-day floor) is checked later by Build, which has
// the per-day bars in hand.
func (b *Builder) ResolveWindow(ctx context.Context, cfg domain.GameConfig) (string, string, error) {
	earliest := b.store.EarliestAllowedDate()

	if cfg.StartDate != "" {
		start, err := domain.ParseDate(cfg.StartDate)
		if err != nil {
			return "", "", domain.E(domain.KindValidation, "malformed start_date %q, want YYYY-MM-DD", cfg.StartDate)
		}
		if cfg.StartDate < earliest {
			return "", "", domain.E(domain.KindOutOfRange, "start_date %s is before the earliest allowed date %s", cfg.StartDate, earliest)
		}

		end := domain.FormatDate(start.AddDate(0, 0, cfg.NumDays-1))
		if cfg.EndDate != "" && cfg.EndDate != end {
			return "", "", domain.E(domain.KindInsufficientData,
				"end_date %s does not close a %d-day window from %s, want %s",
				cfg.EndDate, cfg.NumDays, cfg.StartDate, end)
		}
		return cfg.StartDate, end, nil
	}

	if cfg.EndDate != "" {
		return "", "", domain.E(domain.KindValidation, "end_date given without start_date")
	}

	latest, err := b.store.LatestCommonDate(ctx, cfg.Tickers)
	if err != nil {
		return "", "", err
	}
	if latest == "" {
		return "", "", domain.E(domain.KindInsufficientData, "tickers share no trading day in the store")
	}

	endDate, err := domain.ParseDate(latest)
	if err != nil {
		return "", "", domain.Wrap(err, domain.KindInternal, "store returned malformed date %q", latest)
	}
	start := domain.FormatDate(endDate.AddDate(0, 0, -(cfg.NumDays - 1)))
	if start < earliest {
		return "", "", domain.E(domain.KindInsufficientData,
			"no %d-day window with full coverage exists at or after %s", cfg.NumDays, earliest)
	}

	return start, latest, nil
}

// Build materializes the slice for a resolved window. The config must be
// normalized and the window produced by ResolveWindow.
func (b *Builder) Build(ctx context.Context, cfg domain.GameConfig, startDate, endDate string) (*Slice, error) {
	started := time.Now()

	if err := b.store.ValidateTickers(ctx, cfg.Tickers); err != nil {
		return nil, err
	}

	// Bars per ticker keyed by date. A date is a trading day only when every
	// ticker has a bar on it.
	bars := make(map[string]map[string]domain.MarketDay, len(cfg.Tickers))
	for _, ticker := range cfg.Tickers {
		days, err := b.store.Prices(ctx, ticker, startDate, endDate)
		if err != nil {
			return nil, err
		}
		byDate := make(map[string]domain.MarketDay, len(days))
		for _, d := range days {
			byDate[d.Date] = d
		}
		bars[ticker] = byDate
	}

	recs := make(map[string]map[string]domain.Recommendation, len(cfg.Tickers))
	snaps := make(map[string]map[string]domain.TechnicalSnapshot, len(cfg.Tickers))
	for _, ticker := range cfg.Tickers {
		r, err := b.store.RecommendationsRange(ctx, ticker, startDate, endDate)
		if err != nil {
			return nil, err
		}
		recs[ticker] = r

		s, err := b.store.IndicatorsRange(ctx, ticker, startDate, endDate)
		if err != nil {
			return nil, err
		}
		snaps[ticker] = s
	}

	start, err := domain.ParseDate(startDate)
	if err != nil {
		return nil, domain.E(domain.KindValidation, "malformed start_date %q", startDate)
	}

	slice := &Slice{
		Tickers:   cfg.Tickers,
		StartDate: startDate,
		EndDate:   endDate,
		TotalDays: cfg.NumDays,
		Days:      make([]GameDay, 0, cfg.NumDays),
	}

	for k := 0; k < cfg.NumDays; k++ {
		date := domain.FormatDate(start.AddDate(0, 0, k))

		day := GameDay{
			Day:        k,
			Date:       date,
			Prices:     make(map[string]DayPrice, len(cfg.Tickers)),
			Technicals: make(map[string]domain.TechnicalSnapshot, len(cfg.Tickers)),
		}

		trading := true
		for _, ticker := range cfg.Tickers {
			if _, ok := bars[ticker][date]; !ok {
				trading = false
				break
			}
		}
		day.IsTradingDay = trading

		if trading {
			slice.TradingDays++
			for _, ticker := range cfg.Tickers {
				bar := bars[ticker][date]
				day.Prices[ticker] = DayPrice{
					Open:   bar.Open,
					High:   bar.High,
					Low:    bar.Low,
					Close:  bar.Close,
					Volume: bar.Volume,
				}
			}
		}

		for _, ticker := range cfg.Tickers {
			rec, err := b.recommendationFor(ctx, ticker, date, recs[ticker])
			if err != nil {
				return nil, err
			}
			day.Recommendations = append(day.Recommendations, rec)

			snap, err := b.technicalFor(ctx, ticker, date, snaps[ticker])
			if err != nil {
				return nil, err
			}
			if snap != nil {
				day.Technicals[ticker] = *snap
			}
		}

		news, err := b.newsFor(ctx, cfg.Tickers, date)
		if err != nil {
			return nil, err
		}
		day.News = news

		slice.Days = append(slice.Days, day)
	}

	if slice.TradingDays < minTradingDays(cfg.NumDays) {
		return nil, domain.E(domain.KindInsufficientData,
			"window %s..%s holds %d trading days, need at least %d",
			startDate, endDate, slice.TradingDays, minTradingDays(cfg.NumDays))
	}

	b.log.Info().
		Str("key", slice.Key()).
		Int("trading_days", slice.TradingDays).
		Dur("took", time.Since(started)).
		Msg("Game slice built")

	return slice, nil
}

// recommendationFor picks the advice for a ticker/date: the stored row for
// the date, else the most recent earlier row, else a synthetic neutral HOLD.
func (b *Builder) recommendationFor(ctx context.Context, ticker, date string, stored map[string]domain.Recommendation) (domain.Recommendation, error) {
	if rec, ok := stored[date]; ok {
		rec.Ticker = ticker
		rec.Date = date
		return rec, nil
	}

	prior, err := b.store.RecommendationOnOrBefore(ctx, ticker, date)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if prior != nil {
		rec := *prior
		rec.Ticker = ticker
		rec.Date = date
		return rec, nil
	}

	// Last resort: the pipeline has never scored this ticker by this date.
	return domain.Recommendation{
		Ticker:     ticker,
		Date:       date,
		Label:      domain.LabelHold,
		Confidence: 0,
		Technical:  domain.SignalNeutral,
		Sentiment:  domain.SignalNeutral,
		Risk:       domain.RiskMedium,
		Synthetic:  true,
	}, nil
}

// technicalFor picks the snapshot for a ticker/date, backfilling from the
// most recent earlier one. Absence everywhere stays absent (neutral signal).
func (b *Builder) technicalFor(ctx context.Context, ticker, date string, stored map[string]domain.TechnicalSnapshot) (*domain.TechnicalSnapshot, error) {
	if snap, ok := stored[date]; ok {
		return &snap, nil
	}
	return b.store.IndicatorsOnOrBefore(ctx, ticker, date)
}

// newsFor attaches the day's news across all tickers, newest first. Each
// ticker individually satisfies the minimum-coverage backfill contract.
func (b *Builder) newsFor(ctx context.Context, tickers []string, date string) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	for _, ticker := range tickers {
		got, err := b.store.News(ctx, ticker, date, date, minNewsPerTicker)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	return items, nil
}
