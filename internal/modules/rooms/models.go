package rooms

import (
	"time"

	"github.com/aristath/stockroom/internal/domain"
)

// CreateRoomRequest is the body of POST /multiplayer/rooms.
type CreateRoomRequest struct {
	CreatedBy          string            `json:"created_by"`
	RoomName           string            `json:"room_name,omitempty"`
	GameMode           domain.GameMode   `json:"game_mode"`
	Config             domain.GameConfig `json:"config"`
	StartDate          string            `json:"start_date,omitempty"`
	EndDate            string            `json:"end_date,omitempty"`
	DayDurationSeconds *int              `json:"day_duration_seconds,omitempty"`
}

// JoinRequest is the body of POST /multiplayer/rooms/join.
type JoinRequest struct {
	RoomCode    string `json:"room_code"`
	PlayerName  string `json:"player_name"`
	PlayerEmail string `json:"player_email,omitempty"`
}

// RoomWithPlayers is the full room record served to clients.
type RoomWithPlayers struct {
	domain.Room
	Players []domain.Player `json:"players"`
}

// StateView is the lightweight polling record. TimeRemaining is computed
// server-side; clients render it and never supply their own clock.
type StateView struct {
	Status            domain.RoomStatus `json:"status"`
	Mode              domain.GameMode   `json:"game_mode"`
	CurrentDay        int               `json:"current_day"`
	TotalDays         int               `json:"total_days"`
	DayStartedAt      *time.Time        `json:"day_started_at,omitempty"`
	DayTimeLimit      *int              `json:"day_time_limit,omitempty"`
	TimeRemaining     *int              `json:"time_remaining,omitempty"`
	WaitingForTeacher bool              `json:"waiting_for_teacher"`
	ReadyCount        int               `json:"ready_count"`
	TotalPlayers      int               `json:"total_players"`
}

// LeaderboardEntry is one ranked row. Ordering is score descending, then
// portfolio value descending, then join time ascending.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	PlayerID       string  `json:"player_id"`
	PlayerName     string  `json:"player_name"`
	Score          int     `json:"score"`
	Grade          string  `json:"grade"`
	PortfolioValue float64 `json:"portfolio_value"`
	TotalReturnPct float64 `json:"total_return_pct"`
	CurrentDay     int     `json:"current_day"`
	IsFinished     bool    `json:"is_finished"`
}

// TradePatch is one ledger entry as submitted by the client. Shares stays a
// raw number so the rule engine can reject fractions itself.
type TradePatch struct {
	Ticker       string             `json:"ticker"`
	Action       domain.TradeAction `json:"action"`
	Shares       float64            `json:"shares"`
	DaySubmitted int                `json:"day_submitted"`
}

// PlayerPatch is the body of PUT /multiplayer/players/{id}. The client
// sends its whole computed state; the server trusts none of the derived
// numbers. Only current_day (the advance request), the new trades and the
// is_finished signal steer anything — everything else is recomputed
// authoritatively.
type PlayerPatch struct {
	CurrentDay       int                        `json:"current_day"`
	Cash             float64                    `json:"cash"`
	Holdings         domain.Holdings            `json:"holdings"`
	PortfolioValue   float64                    `json:"portfolio_value"`
	TotalReturnPct   float64                    `json:"total_return_pct"`
	Score            int                        `json:"score"`
	Grade            string                     `json:"grade"`
	IsFinished       bool                       `json:"is_finished"`
	Trades           []TradePatch               `json:"trades"`
	PortfolioHistory []domain.PortfolioSnapshot `json:"portfolio_history"`
}
