package rooms

import (
	"math"
	"sort"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/pkg/formulas"
)

// advanceAI steps the room's benchmark opponent forward to toDay. The AI is
// a deterministic recommendation-follower: each step k -> k+1 it sells
// every holding whose day-k label is SELL or STRONG_SELL at the k+1
// execution open, then splits its cash equally across the day-k BUY and
// STRONG_BUY tickers at the same open, whole shares only, ticker-ascending.
// Determinism matters: every player in a room races the same opponent.
func advanceAI(room *domain.Room, slice *gamedata.Slice, toDay int) {
	last := slice.TotalDays - 1
	if toDay > last {
		toDay = last
	}
	if room.AIHoldings == nil {
		room.AIHoldings = domain.Holdings{}
	}

	for day := room.AICurrentDay; day < toDay; day++ {
		next := day + 1

		// Sells first, freeing cash for the buy pass.
		tickers := sortedTickers(room.AIHoldings)
		for _, ticker := range tickers {
			rec := slice.RecommendationOn(day, ticker)
			if rec == nil || !rec.Label.IsSell() {
				continue
			}
			price, _, ok := slice.ExecutionOpen(next, ticker)
			if !ok {
				continue
			}
			h := room.AIHoldings[ticker]
			room.AICash += float64(h.Shares) * price
			delete(room.AIHoldings, ticker)
		}

		var buys []string
		for _, ticker := range slice.Tickers {
			rec := slice.RecommendationOn(day, ticker)
			if rec != nil && rec.Label.IsBuy() {
				buys = append(buys, ticker)
			}
		}
		sort.Strings(buys)

		if len(buys) > 0 {
			budget := room.AICash / float64(len(buys))
			for _, ticker := range buys {
				price, _, ok := slice.ExecutionOpen(next, ticker)
				if !ok || price <= 0 {
					continue
				}
				shares := int(math.Floor(budget / price))
				if shares <= 0 {
					continue
				}
				cost := float64(shares) * price
				room.AICash -= cost

				h := room.AIHoldings[ticker]
				newShares := h.Shares + shares
				h.AvgCost = (h.AvgCost*float64(h.Shares) + cost) / float64(newShares)
				h.Shares = newShares
				room.AIHoldings[ticker] = h
			}
		}

		room.AICurrentDay = next
		room.AIPortfolioValue = room.AICash + slice.HoldingsValue(next, room.AIHoldings)
		room.AITotalReturnPct = formulas.TotalReturnPct(room.Config.InitialCash, room.AIPortfolioValue)
	}
}

func sortedTickers(h domain.Holdings) []string {
	out := make([]string, 0, len(h))
	for ticker := range h {
		out = append(out, ticker)
	}
	sort.Strings(out)
	return out
}
