package domain

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates. All game dates are
// timezone-less YYYY-MM-DD strings; time.Time is used only for arithmetic.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a time as a YYYY-MM-DD calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// GameMode controls who advances the simulated day.
type GameMode string

const (
	// ModeAsync lets every player step through days at their own pace.
	ModeAsync GameMode = "async"
	// ModeSync advances the whole room when the teacher says so.
	ModeSync GameMode = "sync"
	// ModeSyncAuto advances the whole room on a countdown timer.
	ModeSyncAuto GameMode = "sync_auto"
)

// Valid reports whether m is one of the three supported modes.
func (m GameMode) Valid() bool {
	return m == ModeAsync || m == ModeSync || m == ModeSyncAuto
}

// Synchronized reports whether the room clock is shared across players.
func (m GameMode) Synchronized() bool {
	return m == ModeSync || m == ModeSyncAuto
}

// RoomStatus is the room lifecycle state. Transitions move strictly
// waiting -> in_progress -> finished; there is no path back.
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"
	StatusInProgress RoomStatus = "in_progress"
	StatusFinished   RoomStatus = "finished"
)

// Difficulty shifts the grade thresholds, not the scoring formula.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// TradeAction is the order side.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// TradeStatus tracks a ledger entry through its lifecycle. Entries are
// append-only: pending entries become executed or rejected, never deleted.
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeExecuted TradeStatus = "executed"
	TradeRejected TradeStatus = "rejected"
)

// Trade rejection reasons. This set is closed; clients key UI copy off it.
const (
	ReasonNotABuyDay           = "NOT_A_BUY_DAY"
	ReasonInsufficientHoldings = "INSUFFICIENT_HOLDINGS"
	ReasonInsufficientCash     = "INSUFFICIENT_CASH"
	ReasonNonPositiveShares    = "NON_POSITIVE_SHARES"
	ReasonNonIntegerShares     = "NON_INTEGER_SHARES"
	ReasonDuplicateSameDay     = "DUPLICATE_SAME_DAY"
	ReasonGameNotActive        = "GAME_NOT_ACTIVE"
)

// RecommendationLabel is the five-point advice scale attached to each
// ticker/date by the offline agent pipeline.
type RecommendationLabel string

const (
	StrongBuy  RecommendationLabel = "STRONG_BUY"
	LabelBuy   RecommendationLabel = "BUY"
	LabelHold  RecommendationLabel = "HOLD"
	LabelSell  RecommendationLabel = "SELL"
	StrongSell RecommendationLabel = "STRONG_SELL"
)

// IsBuy reports whether the label permits opening a position that day.
func (l RecommendationLabel) IsBuy() bool {
	return l == StrongBuy || l == LabelBuy
}

// IsSell reports whether the label advises closing a position.
func (l RecommendationLabel) IsSell() bool {
	return l == StrongSell || l == LabelSell
}

// Signal is a coarse directional reading backing a recommendation.
type Signal string

const (
	SignalBullish Signal = "BULLISH"
	SignalNeutral Signal = "NEUTRAL"
	SignalBearish Signal = "BEARISH"
)

// RiskLevel tags a recommendation with the volatility regime it was made in.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// GameConfig is the immutable room configuration fixed at creation.
type GameConfig struct {
	InitialCash float64    `json:"initial_cash"`
	NumDays     int        `json:"num_days"`
	Tickers     []string   `json:"tickers"`
	Difficulty  Difficulty `json:"difficulty"`
	StartDate   string     `json:"start_date,omitempty"`
	EndDate     string     `json:"end_date,omitempty"`
}

// Holding is one position in a player's portfolio. Shares are whole and
// positive; a position sold to zero is removed, not kept at zero.
type Holding struct {
	Shares  int     `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
}

// Holdings maps ticker to position.
type Holdings map[string]Holding

// Clone returns an independent copy.
func (h Holdings) Clone() Holdings {
	out := make(Holdings, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// TradeRecord is one entry in a player's append-only trade ledger.
type TradeRecord struct {
	ID           int64       `json:"id,omitempty"`
	PlayerID     string      `json:"player_id,omitempty"`
	RoomCode     string      `json:"room_code,omitempty"`
	Ticker       string      `json:"ticker"`
	Action       TradeAction `json:"action"`
	Shares       int         `json:"shares"`
	Price        float64     `json:"price"`
	Total        float64     `json:"total"`
	DaySubmitted int         `json:"day_submitted"`
	DayExecuted  *int        `json:"day_executed,omitempty"`
	Status       TradeStatus `json:"status"`
	RejectReason string      `json:"reject_reason,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PortfolioSnapshot records a player's end-of-day valuation. One snapshot is
// appended per completed day; history length always equals current_day + 1.
type PortfolioSnapshot struct {
	Day            int     `json:"day"`
	PortfolioValue float64 `json:"portfolio_value"`
	Cash           float64 `json:"cash"`
	HoldingsValue  float64 `json:"holdings_value"`
	ReturnPct      float64 `json:"return_pct"`
	ReturnUSD      float64 `json:"return_usd"`
}

// Room is one multiplayer game room. The room record owns the shared clock
// (current_day and the day timer) in sync modes and the AI benchmark
// opponent's state in all modes.
type Room struct {
	RoomCode      string     `json:"room_code"`
	RoomName      string     `json:"room_name,omitempty"`
	CreatedBy     string     `json:"created_by"`
	Mode          GameMode   `json:"game_mode"`
	Status        RoomStatus `json:"status"`
	Config        GameConfig `json:"config"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	CurrentDay    int        `json:"current_day"`
	DayStartedAt  *time.Time `json:"day_started_at,omitempty"`
	DayTimeLimit  *int       `json:"day_time_limit,omitempty"` // seconds, nil = untimed
	GameStartedAt *time.Time `json:"game_started_at,omitempty"`
	GameEndedAt   *time.Time `json:"game_ended_at,omitempty"`

	AICurrentDay     int      `json:"ai_current_day"`
	AICash           float64  `json:"ai_cash"`
	AIHoldings       Holdings `json:"ai_holdings"`
	AIPortfolioValue float64  `json:"ai_portfolio_value"`
	AITotalReturnPct float64  `json:"ai_total_return_pct"`

	CreatedAt time.Time `json:"created_at"`
}

// Finished reports whether the room has reached its terminal state.
func (r *Room) Finished() bool {
	return r.Status == StatusFinished
}

// Player is one participant's full game state. The trade ledger and the
// portfolio history are append-only; everything else is mutated only under
// the player's lock.
type Player struct {
	PlayerID       string    `json:"player_id"`
	RoomCode       string    `json:"room_code"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	CurrentDay     int       `json:"current_day"`
	Cash           float64   `json:"cash"`
	Holdings       Holdings  `json:"holdings"`
	PortfolioValue float64   `json:"portfolio_value"`
	TotalReturnPct float64   `json:"total_return_pct"`
	Score          int       `json:"score"`
	Grade          string    `json:"grade"`
	IsReady        bool      `json:"is_ready"`
	IsFinished     bool      `json:"is_finished"`
	LastSyncDay    int       `json:"last_sync_day"`
	JoinedAt       time.Time `json:"joined_at"`
	LastActionAt   time.Time `json:"last_action_at"`

	Trades           []TradeRecord       `json:"trades"`
	PortfolioHistory []PortfolioSnapshot `json:"portfolio_history"`
}

// Normalize validates the config shape and canonicalizes the ticker list
// (trimmed, uppercased, deduplicated, sorted). An empty difficulty defaults
// to medium.
func (c *GameConfig) Normalize() error {
	if c.InitialCash <= 0 {
		return E(KindValidation, "initial_cash must be positive, got %v", c.InitialCash)
	}
	if c.NumDays < 1 || c.NumDays > 90 {
		return E(KindValidation, "num_days must be between 1 and 90, got %d", c.NumDays)
	}

	seen := make(map[string]bool, len(c.Tickers))
	normalized := make([]string, 0, len(c.Tickers))
	for _, t := range c.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}
	if len(normalized) == 0 {
		return E(KindValidation, "tickers must name at least one symbol")
	}
	sort.Strings(normalized)
	c.Tickers = normalized

	if c.Difficulty == "" {
		c.Difficulty = DifficultyMedium
	}
	if !c.Difficulty.Valid() {
		return E(KindValidation, "unknown difficulty %q", c.Difficulty)
	}

	return nil
}
