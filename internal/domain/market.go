package domain

import "time"

// MarketDay is one daily OHLCV bar from the historical store.
type MarketDay struct {
	Ticker string  `json:"ticker,omitempty" msgpack:"ticker,omitempty"`
	Date   string  `json:"date" msgpack:"date"`
	Open   float64 `json:"open" msgpack:"open"`
	High   float64 `json:"high" msgpack:"high"`
	Low    float64 `json:"low" msgpack:"low"`
	Close  float64 `json:"close" msgpack:"close"`
	Volume int64   `json:"volume" msgpack:"volume"`
}

// TechnicalSnapshot groups the indicator lenses computed offline for a
// ticker/date: momentum, trend, range, reversion and volume, plus RSI for
// client display. Absence of a snapshot means the pipeline had not warmed up
// for that date; the store reports that as absent, never as zeros.
type TechnicalSnapshot struct {
	Momentum    float64 `json:"momentum" msgpack:"momentum"`
	Trend       float64 `json:"trend" msgpack:"trend"`
	RangePct    float64 `json:"range_pct" msgpack:"range_pct"`
	Reversion   float64 `json:"reversion" msgpack:"reversion"`
	VolumeRatio float64 `json:"volume_ratio" msgpack:"volume_ratio"`
	RSI         float64 `json:"rsi" msgpack:"rsi"`
}

// NewsItem is one headline from the news store.
type NewsItem struct {
	ID          int64     `json:"id" msgpack:"id"`
	Ticker      string    `json:"ticker" msgpack:"ticker"`
	PublishedAt time.Time `json:"published_at" msgpack:"published_at"`
	Headline    string    `json:"headline" msgpack:"headline"`
	Summary     string    `json:"summary,omitempty" msgpack:"summary,omitempty"`
	Source      string    `json:"source" msgpack:"source"`
	Sentiment   *float64  `json:"sentiment,omitempty" msgpack:"sentiment,omitempty"`
}

// Recommendation is the stored advice for a ticker/date. Synthetic is set
// only by the slice builder when it fabricates a neutral placeholder because
// no stored recommendation exists on or before the date.
type Recommendation struct {
	Ticker     string              `json:"ticker" msgpack:"ticker"`
	Date       string              `json:"date" msgpack:"date"`
	Label      RecommendationLabel `json:"recommendation" msgpack:"recommendation"`
	Confidence float64             `json:"confidence" msgpack:"confidence"`
	Technical  Signal              `json:"technical_signal" msgpack:"technical_signal"`
	Sentiment  Signal              `json:"sentiment_signal" msgpack:"sentiment_signal"`
	Risk       RiskLevel           `json:"risk_level" msgpack:"risk_level"`
	Summary    string              `json:"rationale_summary,omitempty" msgpack:"rationale_summary,omitempty"`
	Synthetic  bool                `json:"synthetic,omitempty" msgpack:"synthetic,omitempty"`
}
