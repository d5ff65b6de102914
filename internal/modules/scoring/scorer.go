// Package scoring turns a finished (or in-flight) portfolio history into a
// score, a letter grade and the component breakdown shown to students.
package scoring

import (
	"math"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/pkg/formulas"
)

// disciplineWindow is how many trading days after execution a buy has to
// turn a profit to count as disciplined.
const disciplineWindow = 5

// disciplineCap bounds how many disciplined trades are rewarded.
const disciplineCap = 10

// Breakdown is the score decomposition. Total is the plain sum of the four
// components; the components are individually clamped, the total is not.
// The risk figures below the grade are informational and never feed the
// score.
type Breakdown struct {
	ReturnComponent     int     `json:"return_component"`
	DisciplineComponent int     `json:"discipline_component"`
	BeatAIBonus         int     `json:"beat_ai_bonus"`
	DrawdownPenalty     int     `json:"drawdown_penalty"`
	Total               int     `json:"total"`
	Grade               string  `json:"grade"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	CurrentDrawdownPct  float64 `json:"current_drawdown_pct"`
	MeanDailyReturnPct  float64 `json:"mean_daily_return_pct"`
	VolatilityPct       float64 `json:"volatility_pct"`
	DisciplinedTrades   int     `json:"disciplined_trades"`
}

// Input is everything the scorer needs about one player.
type Input struct {
	ReturnPct   float64
	AIReturnPct float64
	History     []domain.PortfolioSnapshot
	Trades      []domain.TradeRecord
	Difficulty  domain.Difficulty
}

// Score computes the full breakdown for a player against the room's slice.
func Score(in Input, slice *gamedata.Slice) Breakdown {
	b := Breakdown{}

	// A +50% return saturates the component.
	b.ReturnComponent = int(math.Round(500 * math.Max(0, in.ReturnPct/50)))
	if b.ReturnComponent > 500 {
		b.ReturnComponent = 500
	}

	b.DisciplinedTrades = countDisciplined(in.Trades, slice)
	rewarded := b.DisciplinedTrades
	if rewarded > disciplineCap {
		rewarded = disciplineCap
	}
	b.DisciplineComponent = 50 * rewarded

	b.BeatAIBonus = int(math.Round(200 * formulas.Clamp((in.ReturnPct-in.AIReturnPct)/20, 0, 1)))

	values := make([]float64, len(in.History))
	for i, snap := range in.History {
		values[i] = snap.PortfolioValue
	}
	if dd := formulas.CalculateMaxDrawdown(values); dd != nil {
		b.MaxDrawdownPct = *dd * 100
	}
	b.DrawdownPenalty = -int(math.Round(200 * formulas.Clamp(b.MaxDrawdownPct/40, 0, 1)))

	if cd := formulas.CalculateCurrentDrawdown(values); cd != nil {
		b.CurrentDrawdownPct = formulas.RoundPct(*cd * 100)
	}
	if returns := formulas.CalculateReturns(values); len(returns) > 1 {
		b.MeanDailyReturnPct = formulas.RoundPct(formulas.Mean(returns) * 100)
		b.VolatilityPct = formulas.RoundPct(formulas.AnnualizedVolatility(returns) * 100)
	}

	b.Total = b.ReturnComponent + b.DisciplineComponent + b.BeatAIBonus + b.DrawdownPenalty
	b.Grade = GradeFor(b.Total, in.Difficulty)

	return b
}

// countDisciplined counts executed buys made on a BUY or STRONG_BUY day
// whose fill shows a positive return at the close of the fifth trading day
// after execution. When fewer than five trading days remain, the final
// available close stands in.
func countDisciplined(trades []domain.TradeRecord, slice *gamedata.Slice) int {
	count := 0
	for _, trade := range trades {
		if trade.Action != domain.ActionBuy || trade.Status != domain.TradeExecuted || trade.DayExecuted == nil {
			continue
		}

		rec := slice.RecommendationOn(trade.DaySubmitted, trade.Ticker)
		if rec == nil || !rec.Label.IsBuy() {
			continue
		}

		close, ok := closeAfterWindow(slice, *trade.DayExecuted, trade.Ticker)
		if ok && close > trade.Price {
			count++
		}
	}
	return count
}

// closeAfterWindow finds the close of the disciplineWindow-th trading day
// after execDay, falling back to the last close in the slice.
func closeAfterWindow(slice *gamedata.Slice, execDay int, ticker string) (float64, bool) {
	remaining := disciplineWindow
	lastClose, seen := 0.0, false

	for d := execDay + 1; d < slice.TotalDays; d++ {
		day := slice.DayAt(d)
		if day == nil || !day.IsTradingDay {
			continue
		}
		bar, ok := day.Prices[ticker]
		if !ok {
			continue
		}

		lastClose, seen = bar.Close, true
		remaining--
		if remaining == 0 {
			return lastClose, true
		}
	}

	return lastClose, seen
}

// gradeThresholds are the point floors for A/B/C/D at medium difficulty.
// Easy lowers every floor by 100, hard raises it by 100.
var gradeThresholds = []struct {
	grade string
	floor int
}{
	{"A", 700},
	{"B", 550},
	{"C", 400},
	{"D", 250},
}

// GradeFor maps a point total to a letter grade for the given difficulty.
// Grades are point-based only; the raw return never maps to a grade
// directly.
func GradeFor(score int, difficulty domain.Difficulty) string {
	shift := 0
	switch difficulty {
	case domain.DifficultyEasy:
		shift = -100
	case domain.DifficultyHard:
		shift = 100
	}

	for _, t := range gradeThresholds {
		if score >= t.floor+shift {
			return t.grade
		}
	}
	return "F"
}
