package rooms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// playerColumns is the list of columns for the players table.
// Column order must match scanPlayer.
const playerColumns = `player_id, room_code, name, email, current_day, cash,
	holdings, portfolio_value, total_return_pct, score, grade, is_ready,
	is_finished, last_sync_day, joined_at, last_action_at`

// tradeColumns is the list of columns for the trades table.
// Column order must match scanTrade.
const tradeColumns = `id, player_id, room_code, ticker, action, shares, price,
	total, day_submitted, day_executed, status, reject_reason, created_at`

// PlayerRepository persists players, their append-only trade ledgers and
// their portfolio histories in the multiplayer store.
type PlayerRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(db *sql.DB, log zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:  db,
		log: log.With().Str("repo", "players").Logger(),
	}
}

// NameKey is the case-insensitive uniqueness key for a player name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create inserts a new player record.
func (r *PlayerRepository) Create(ctx context.Context, p *domain.Player) error {
	holdings, err := json.Marshal(p.Holdings)
	if err != nil {
		return fmt.Errorf("failed to encode holdings for player %s: %w", p.PlayerID, err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO players
		(player_id, room_code, name, name_key, email, current_day, cash, holdings,
		 portfolio_value, total_return_pct, score, grade, is_ready, is_finished,
		 last_sync_day, joined_at, last_action_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PlayerID, p.RoomCode, p.Name, NameKey(p.Name), nullString(p.Email),
		p.CurrentDay, p.Cash, string(holdings), p.PortfolioValue, p.TotalReturnPct,
		p.Score, p.Grade, p.IsReady, p.IsFinished, p.LastSyncDay,
		p.JoinedAt.UTC().Format(time.RFC3339), p.LastActionAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert player %s: %w", p.PlayerID, err)
	}

	return nil
}

// Get returns a player's base record (no ledger, no history), or nil when
// the id is unknown.
func (r *PlayerRepository) Get(ctx context.Context, playerID string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE player_id = ?", playerID)

	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query player %s: %w", playerID, err)
	}

	return p, nil
}

// GetByName resolves a player by case-insensitive name within a room, or nil.
func (r *PlayerRepository) GetByName(ctx context.Context, roomCode, name string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE room_code = ? AND name_key = ?",
		roomCode, NameKey(name))

	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query player %q in room %s: %w", name, roomCode, err)
	}

	return p, nil
}

// ListByRoom returns all base player records in a room, oldest join first.
func (r *PlayerRepository) ListByRoom(ctx context.Context, roomCode string) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE room_code = ? ORDER BY joined_at ASC, player_id ASC",
		roomCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list players in room %s: %w", roomCode, err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, *p)
	}

	return players, rows.Err()
}

// Update rewrites a player's mutable base fields.
func (r *PlayerRepository) Update(ctx context.Context, p *domain.Player) error {
	holdings, err := json.Marshal(p.Holdings)
	if err != nil {
		return fmt.Errorf("failed to encode holdings for player %s: %w", p.PlayerID, err)
	}

	_, err = r.db.ExecContext(ctx, `UPDATE players SET
			current_day = ?, cash = ?, holdings = ?, portfolio_value = ?,
			total_return_pct = ?, score = ?, grade = ?, is_ready = ?,
			is_finished = ?, last_sync_day = ?, last_action_at = ?
		WHERE player_id = ?`,
		p.CurrentDay, p.Cash, string(holdings), p.PortfolioValue,
		p.TotalReturnPct, p.Score, p.Grade, p.IsReady, p.IsFinished,
		p.LastSyncDay, p.LastActionAt.UTC().Format(time.RFC3339),
		p.PlayerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player %s: %w", p.PlayerID, err)
	}

	return nil
}

// ResetReady clears is_ready for every player in a room. Part of every room
// transition.
func (r *PlayerRepository) ResetReady(ctx context.Context, roomCode string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE players SET is_ready = 0 WHERE room_code = ?`, roomCode); err != nil {
		return fmt.Errorf("failed to reset ready flags in room %s: %w", roomCode, err)
	}
	return nil
}

// InsertTrade appends a ledger entry and returns its id.
func (r *PlayerRepository) InsertTrade(ctx context.Context, t *domain.TradeRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO trades
		(player_id, room_code, ticker, action, shares, price, total,
		 day_submitted, day_executed, status, reject_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PlayerID, t.RoomCode, t.Ticker, string(t.Action), t.Shares, t.Price, t.Total,
		t.DaySubmitted, nullInt(t.DayExecuted), string(t.Status),
		nullString(t.RejectReason), t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for player %s: %w", t.PlayerID, err)
	}

	return res.LastInsertId()
}

// FinalizeTrade moves a pending ledger entry to executed or rejected. The
// ledger is append-only in every other respect: these are the only fields
// that ever change on a row.
func (r *PlayerRepository) FinalizeTrade(ctx context.Context, t *domain.TradeRecord) error {
	_, err := r.db.ExecContext(ctx, `UPDATE trades SET
			status = ?, price = ?, total = ?, day_executed = ?, reject_reason = ?
		WHERE id = ?`,
		string(t.Status), t.Price, t.Total, nullInt(t.DayExecuted),
		nullString(t.RejectReason), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize trade %d: %w", t.ID, err)
	}
	return nil
}

// Trades returns a player's full ledger, oldest first.
func (r *PlayerRepository) Trades(ctx context.Context, playerID string) ([]domain.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE player_id = ? ORDER BY id ASC", playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for player %s: %w", playerID, err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// PendingTrades returns the pending entries a player submitted on a day,
// insertion order.
func (r *PlayerRepository) PendingTrades(ctx context.Context, playerID string, day int) ([]domain.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tradeColumns+` FROM trades
			WHERE player_id = ? AND day_submitted = ? AND status = ?
			ORDER BY id ASC`,
		playerID, day, string(domain.TradePending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending trades for player %s: %w", playerID, err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// TradedTickers returns the tickers with a live (non-rejected) entry
// submitted by the player on a day.
func (r *PlayerRepository) TradedTickers(ctx context.Context, playerID string, day int) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticker FROM trades
			WHERE player_id = ? AND day_submitted = ? AND status != ?`,
		playerID, day, string(domain.TradeRejected))
	if err != nil {
		return nil, fmt.Errorf("failed to query traded tickers for player %s: %w", playerID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan traded ticker: %w", err)
		}
		out[ticker] = true
	}

	return out, rows.Err()
}

// AppendSnapshot appends a portfolio snapshot. The (player, day) pair is
// unique; replaying an advance is a conflict the caller screens out first.
func (r *PlayerRepository) AppendSnapshot(ctx context.Context, playerID string, s domain.PortfolioSnapshot) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO portfolio_snapshots
		(player_id, day, portfolio_value, cash, holdings_value, return_pct, return_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		playerID, s.Day, s.PortfolioValue, s.Cash, s.HoldingsValue,
		s.ReturnPct, s.ReturnUSD, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot day %d for player %s: %w", s.Day, playerID, err)
	}
	return nil
}

// Snapshots returns a player's portfolio history ordered by day.
func (r *PlayerRepository) Snapshots(ctx context.Context, playerID string) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day, portfolio_value, cash, holdings_value, return_pct, return_usd
			FROM portfolio_snapshots WHERE player_id = ? ORDER BY day ASC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for player %s: %w", playerID, err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		var s domain.PortfolioSnapshot
		if err := rows.Scan(&s.Day, &s.PortfolioValue, &s.Cash, &s.HoldingsValue,
			&s.ReturnPct, &s.ReturnUSD); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// Load returns a player with ledger and history attached, or nil.
func (r *PlayerRepository) Load(ctx context.Context, playerID string) (*domain.Player, error) {
	p, err := r.Get(ctx, playerID)
	if err != nil || p == nil {
		return p, err
	}

	if p.Trades, err = r.Trades(ctx, playerID); err != nil {
		return nil, err
	}
	if p.PortfolioHistory, err = r.Snapshots(ctx, playerID); err != nil {
		return nil, err
	}

	return p, nil
}

func collectTrades(rows *sql.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanTrade(rows *sql.Rows) (domain.TradeRecord, error) {
	var t domain.TradeRecord
	var action, status, createdAt string
	var dayExecuted sql.NullInt64
	var reason sql.NullString

	err := rows.Scan(&t.ID, &t.PlayerID, &t.RoomCode, &t.Ticker, &action,
		&t.Shares, &t.Price, &t.Total, &t.DaySubmitted, &dayExecuted,
		&status, &reason, &createdAt)
	if err != nil {
		return t, err
	}

	t.Action = domain.TradeAction(action)
	t.Status = domain.TradeStatus(status)
	if dayExecuted.Valid {
		day := int(dayExecuted.Int64)
		t.DayExecuted = &day
	}
	if reason.Valid {
		t.RejectReason = reason.String
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return t, fmt.Errorf("malformed created_at on trade %d: %w", t.ID, err)
	}
	t.CreatedAt = t.CreatedAt.UTC()

	return t, nil
}

func scanPlayer(row interface{ Scan(...interface{}) error }) (*domain.Player, error) {
	var p domain.Player
	var holdings, joinedAt, lastActionAt string
	var email sql.NullString

	err := row.Scan(&p.PlayerID, &p.RoomCode, &p.Name, &email, &p.CurrentDay,
		&p.Cash, &holdings, &p.PortfolioValue, &p.TotalReturnPct, &p.Score,
		&p.Grade, &p.IsReady, &p.IsFinished, &p.LastSyncDay, &joinedAt, &lastActionAt)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		p.Email = email.String
	}
	if err := json.Unmarshal([]byte(holdings), &p.Holdings); err != nil {
		return nil, fmt.Errorf("malformed holdings for player %s: %w", p.PlayerID, err)
	}
	if p.JoinedAt, err = time.Parse(time.RFC3339, joinedAt); err != nil {
		return nil, fmt.Errorf("malformed joined_at for player %s: %w", p.PlayerID, err)
	}
	if p.LastActionAt, err = time.Parse(time.RFC3339, lastActionAt); err != nil {
		return nil, fmt.Errorf("malformed last_action_at for player %s: %w", p.PlayerID, err)
	}
	p.JoinedAt = p.JoinedAt.UTC()
	p.LastActionAt = p.LastActionAt.UTC()

	return &p, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
