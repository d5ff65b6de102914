// Package trading holds the trade rule engine: the pure validation every
// order passes through, both at submission and again at execution time.
package trading

import (
	"math"

	"github.com/aristath/stockroom/internal/domain"
)

// Intent is an order as submitted. Shares arrive as a raw number because
// integrality is itself a rule, not a parsing concern.
type Intent struct {
	Ticker string
	Action domain.TradeAction
	Shares float64
}

// WholeShares returns the integral share count of a validated intent.
func (i Intent) WholeShares() int {
	return int(i.Shares)
}

// RuleContext is everything Validate needs to judge an intent: the player's
// state on the submission day plus the day's advice and the price the order
// would execute at. Building the context is the caller's job; the engine
// itself touches no store and mutates nothing.
type RuleContext struct {
	Status         domain.RoomStatus
	Day            int
	Cash           float64
	Holdings       domain.Holdings
	Recommendation domain.RecommendationLabel

	// ExecutionOpen is the open of the next trading day, the price a BUY is
	// charged at. HasExecutionDay is false on the final day when no such day
	// remains; the cash rule is then unenforceable and the order is queued
	// only to be discarded at finish.
	ExecutionOpen   float64
	HasExecutionDay bool

	// TradedTickers are the tickers with a live (non-rejected) ledger entry
	// already submitted on Day.
	TradedTickers map[string]bool
}

// Validate checks an intent against the trade rules. It returns nil on OK,
// a CONFLICT error for a same-day duplicate, and a RULE_VIOLATION carrying
// one of the closed rejection reasons for everything else.
func Validate(intent Intent, rc RuleContext) error {
	if rc.Status != domain.StatusInProgress {
		return domain.EC(domain.KindRuleViolation, domain.ReasonGameNotActive,
			"game is %s, trades need an in-progress game", rc.Status)
	}

	if intent.Shares <= 0 {
		return domain.EC(domain.KindRuleViolation, domain.ReasonNonPositiveShares,
			"shares must be positive, got %v", intent.Shares)
	}

	if intent.Shares != math.Trunc(intent.Shares) {
		return domain.EC(domain.KindRuleViolation, domain.ReasonNonIntegerShares,
			"shares must be a whole number, got %v", intent.Shares)
	}

	if rc.TradedTickers[intent.Ticker] {
		return domain.EC(domain.KindConflict, domain.ReasonDuplicateSameDay,
			"a trade for %s was already submitted on day %d", intent.Ticker, rc.Day)
	}

	shares := intent.WholeShares()

	switch intent.Action {
	case domain.ActionBuy:
		if !rc.Recommendation.IsBuy() {
			return domain.EC(domain.KindRuleViolation, domain.ReasonNotABuyDay,
				"day %d advice for %s is %s, buying needs BUY or STRONG_BUY",
				rc.Day, intent.Ticker, rc.Recommendation)
		}
		if rc.HasExecutionDay {
			cost := float64(shares) * rc.ExecutionOpen
			if cost > rc.Cash {
				return domain.EC(domain.KindRuleViolation, domain.ReasonInsufficientCash,
					"%d shares of %s cost %.2f at the execution open, cash is %.2f",
					shares, intent.Ticker, cost, rc.Cash)
			}
		}

	case domain.ActionSell:
		if rc.Holdings[intent.Ticker].Shares < shares {
			return domain.EC(domain.KindRuleViolation, domain.ReasonInsufficientHoldings,
				"selling %d shares of %s, holding %d",
				shares, intent.Ticker, rc.Holdings[intent.Ticker].Shares)
		}

	default:
		return domain.E(domain.KindValidation, "unknown trade action %q", intent.Action)
	}

	return nil
}
