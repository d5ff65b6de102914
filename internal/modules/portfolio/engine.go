// Package portfolio applies queued trades when a day advances and produces
// the per-day valuation snapshot. The engine is pure: it receives state and
// the game slice, returns new state, and persists nothing.
package portfolio

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/trading"
	"github.com/aristath/stockroom/pkg/formulas"
)

// DayInput is a player's state on day FromDay plus the trades queued there.
type DayInput struct {
	FromDay     int
	Cash        float64
	Holdings    domain.Holdings
	Pending     []domain.TradeRecord
	InitialCash float64
}

// DayResult is the state after advancing to FromDay+1. Trades holds every
// pending entry with its final status: executed entries carry price, total
// and the day they actually filled on; race losers come back rejected with
// the standard reason codes and are never applied.
type DayResult struct {
	Day      int
	Cash     float64
	Holdings domain.Holdings
	Trades   []domain.TradeRecord
	Snapshot domain.PortfolioSnapshot
}

// Engine advances player portfolios one day at a time.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a portfolio engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("service", "portfolio").Logger()}
}

// AdvanceDay executes the day's queue and values the result at the new
// day's close.
//
// Application order is part of the contract: SELL before BUY so sales free
// cash first, ticker-ascending within each action. Each trade is re-validated
// against the state as it evolves, at its actual execution price. Orders
// whose execution day falls past the end of the slice cannot fill and are
// rejected.
func (e *Engine) AdvanceDay(in DayInput, slice *gamedata.Slice) DayResult {
	toDay := in.FromDay + 1

	cash := in.Cash
	holdings := in.Holdings.Clone()

	queue := make([]domain.TradeRecord, len(in.Pending))
	copy(queue, in.Pending)
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Action != queue[j].Action {
			return queue[i].Action == domain.ActionSell
		}
		return queue[i].Ticker < queue[j].Ticker
	})

	for i := range queue {
		trade := &queue[i]

		price, execDay, ok := slice.ExecutionOpen(toDay, trade.Ticker)
		if !ok {
			reject(trade, domain.ReasonGameNotActive)
			continue
		}

		rec := slice.RecommendationOn(in.FromDay, trade.Ticker)
		label := domain.LabelHold
		if rec != nil {
			label = rec.Label
		}

		err := trading.Validate(
			trading.Intent{Ticker: trade.Ticker, Action: trade.Action, Shares: float64(trade.Shares)},
			trading.RuleContext{
				Status:          domain.StatusInProgress,
				Day:             in.FromDay,
				Cash:            cash,
				Holdings:        holdings,
				Recommendation:  label,
				ExecutionOpen:   price,
				HasExecutionDay: true,
			},
		)
		if err != nil {
			code := string(domain.KindRuleViolation)
			if de, ok := domain.AsError(err); ok {
				code = de.Code
			}
			reject(trade, code)
			e.log.Debug().
				Str("ticker", trade.Ticker).
				Str("action", string(trade.Action)).
				Str("reason", code).
				Int("day", in.FromDay).
				Msg("Queued trade rejected at execution")
			continue
		}

		total := float64(trade.Shares) * price

		switch trade.Action {
		case domain.ActionBuy:
			cash -= total
			h := holdings[trade.Ticker]
			newShares := h.Shares + trade.Shares
			// Weighted-average cost across the old lot and this fill.
			h.AvgCost = (h.AvgCost*float64(h.Shares) + total) / float64(newShares)
			h.Shares = newShares
			holdings[trade.Ticker] = h

		case domain.ActionSell:
			cash += total
			h := holdings[trade.Ticker]
			h.Shares -= trade.Shares
			if h.Shares == 0 {
				delete(holdings, trade.Ticker)
			} else {
				holdings[trade.Ticker] = h
			}
		}

		trade.Status = domain.TradeExecuted
		trade.Price = price
		trade.Total = total
		day := execDay
		trade.DayExecuted = &day
	}

	holdingsValue := slice.HoldingsValue(toDay, holdings)
	portfolioValue := cash + holdingsValue

	return DayResult{
		Day:      toDay,
		Cash:     cash,
		Holdings: holdings,
		Trades:   queue,
		Snapshot: domain.PortfolioSnapshot{
			Day:            toDay,
			PortfolioValue: portfolioValue,
			Cash:           cash,
			HoldingsValue:  holdingsValue,
			ReturnPct:      formulas.TotalReturnPct(in.InitialCash, portfolioValue),
			ReturnUSD:      portfolioValue - in.InitialCash,
		},
	}
}

// InitialSnapshot values an untouched portfolio on day 0.
func InitialSnapshot(initialCash float64) domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{
		Day:            0,
		PortfolioValue: initialCash,
		Cash:           initialCash,
	}
}

func reject(trade *domain.TradeRecord, reason string) {
	trade.Status = domain.TradeRejected
	trade.RejectReason = reason
	trade.Price = 0
	trade.Total = 0
	trade.DayExecuted = nil
}
