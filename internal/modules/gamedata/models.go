// Package gamedata builds and caches game slices: the deterministic
// per-day, per-ticker inputs a room plays through. A slice is derived purely
// from (tickers, num_days, resolved start date); two rooms sharing that
// triple share identical slice bytes.
package gamedata

import (
	"fmt"
	"strings"

	"github.com/aristath/stockroom/internal/domain"
)

// DayPrice is the OHLCV bar a slice carries for one ticker on one day.
type DayPrice struct {
	Open   float64 `json:"open" msgpack:"open"`
	High   float64 `json:"high" msgpack:"high"`
	Low    float64 `json:"low" msgpack:"low"`
	Close  float64 `json:"close" msgpack:"close"`
	Volume int64   `json:"volume" msgpack:"volume"`
}

// GameDay is one day of the slice. On non-trading days Prices is empty and
// Recommendations carry the prior trading day's advice.
type GameDay struct {
	Day             int                                 `json:"day" msgpack:"day"`
	Date            string                              `json:"date" msgpack:"date"`
	IsTradingDay    bool                                `json:"is_trading_day" msgpack:"is_trading_day"`
	Recommendations []domain.Recommendation             `json:"recommendations" msgpack:"recommendations"`
	Prices          map[string]DayPrice                 `json:"prices" msgpack:"prices"`
	News            []domain.NewsItem                   `json:"news" msgpack:"news"`
	Technicals      map[string]domain.TechnicalSnapshot `json:"technical_indicators" msgpack:"technical_indicators"`
}

// Slice is the full game timeline for a room. Days are indexed 0..TotalDays-1
// over consecutive calendar dates; TotalDays counts calendar days, of which
// TradingDays have prices for every ticker.
type Slice struct {
	Tickers     []string  `json:"tickers" msgpack:"tickers"`
	StartDate   string    `json:"start_date" msgpack:"start_date"`
	EndDate     string    `json:"end_date" msgpack:"end_date"`
	TotalDays   int       `json:"total_days" msgpack:"total_days"`
	TradingDays int       `json:"trading_days" msgpack:"trading_days"`
	Days        []GameDay `json:"days" msgpack:"days"`
}

// CacheKey derives the canonical cache key for a resolved slice triple.
// Tickers must already be normalized (sorted, uppercase).
func CacheKey(tickers []string, numDays int, startDate string) string {
	return fmt.Sprintf("%s|%d|%s", strings.Join(tickers, ","), numDays, startDate)
}

// Key returns the slice's own cache key.
func (s *Slice) Key() string {
	return CacheKey(s.Tickers, s.TotalDays, s.StartDate)
}

// DayAt returns the day at index k, or nil when k is out of bounds.
func (s *Slice) DayAt(k int) *GameDay {
	if k < 0 || k >= len(s.Days) {
		return nil
	}
	return &s.Days[k]
}

// ExecutionOpen returns the opening price at which an order queued for day k
// executes: the open of the first trading day at or after k that has a bar
// for the ticker. ok is false when no such day remains in the slice.
func (s *Slice) ExecutionOpen(k int, ticker string) (price float64, execDay int, ok bool) {
	for d := k; d < len(s.Days); d++ {
		if !s.Days[d].IsTradingDay {
			continue
		}
		if bar, found := s.Days[d].Prices[ticker]; found {
			return bar.Open, d, true
		}
	}
	return 0, 0, false
}

// CloseOn returns the valuation close for a ticker on day k. Non-trading
// days carry the previous trading day's close forward; before the first
// trading day the first available close is used.
func (s *Slice) CloseOn(k int, ticker string) (float64, bool) {
	for d := k; d >= 0; d-- {
		if bar, found := s.Days[d].Prices[ticker]; found {
			return bar.Close, true
		}
	}
	for d := k + 1; d < len(s.Days); d++ {
		if bar, found := s.Days[d].Prices[ticker]; found {
			return bar.Close, true
		}
	}
	return 0, false
}

// RecommendationOn returns the advice attached to day k for a ticker, or nil
// when the slice has no day k or carries no row for that ticker.
func (s *Slice) RecommendationOn(k int, ticker string) *domain.Recommendation {
	day := s.DayAt(k)
	if day == nil {
		return nil
	}
	for i := range day.Recommendations {
		if day.Recommendations[i].Ticker == ticker {
			return &day.Recommendations[i]
		}
	}
	return nil
}

// HoldingsValue prices a holdings map at day k closes.
func (s *Slice) HoldingsValue(k int, holdings domain.Holdings) float64 {
	total := 0.0
	for ticker, h := range holdings {
		if close, ok := s.CloseOn(k, ticker); ok {
			total += float64(h.Shares) * close
		}
	}
	return total
}
