// Package rooms owns multiplayer rooms and their players: the room state
// machine, the player registry, the AI benchmark opponent and the
// leaderboard. All room and player mutation in the system funnels through
// this package's service under per-room and per-player locks.
package rooms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// roomColumns is the list of columns for the game_rooms table.
// Column order must match scanRoom.
const roomColumns = `room_code, room_name, created_by, game_mode, status,
	initial_cash, num_days, tickers, difficulty, start_date, end_date,
	current_day, day_started_at, day_time_limit, game_started_at,
	game_ended_at, ai_current_day, ai_cash, ai_holdings, ai_portfolio_value,
	ai_total_return_pct, created_at`

// RoomRepository persists room records in the multiplayer store.
type RoomRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *sql.DB, log zerolog.Logger) *RoomRepository {
	return &RoomRepository{
		db:  db,
		log: log.With().Str("repo", "rooms").Logger(),
	}
}

// Create inserts a new room. A UNIQUE violation on room_code surfaces as-is
// so the caller can regenerate and retry.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	tickers, err := json.Marshal(room.Config.Tickers)
	if err != nil {
		return fmt.Errorf("failed to encode tickers for room %s: %w", room.RoomCode, err)
	}
	holdings, err := json.Marshal(room.AIHoldings)
	if err != nil {
		return fmt.Errorf("failed to encode AI holdings for room %s: %w", room.RoomCode, err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO game_rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.RoomCode, room.RoomName, room.CreatedBy, string(room.Mode), string(room.Status),
		room.Config.InitialCash, room.Config.NumDays, string(tickers), string(room.Config.Difficulty),
		room.StartDate, room.EndDate,
		room.CurrentDay, nullTime(room.DayStartedAt), nullInt(room.DayTimeLimit),
		nullTime(room.GameStartedAt), nullTime(room.GameEndedAt),
		room.AICurrentDay, room.AICash, string(holdings), room.AIPortfolioValue,
		room.AITotalReturnPct, room.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert room %s: %w", room.RoomCode, err)
	}

	return nil
}

// Get returns the room for a code, or nil when no such room exists.
func (r *RoomRepository) Get(ctx context.Context, code string) (*domain.Room, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM game_rooms WHERE room_code = ?", code)

	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room %s: %w", code, err)
	}

	return room, nil
}

// Update rewrites the mutable fields of a room record.
func (r *RoomRepository) Update(ctx context.Context, room *domain.Room) error {
	holdings, err := json.Marshal(room.AIHoldings)
	if err != nil {
		return fmt.Errorf("failed to encode AI holdings for room %s: %w", room.RoomCode, err)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE game_rooms SET
			status = ?, current_day = ?, day_started_at = ?, day_time_limit = ?,
			game_started_at = ?, game_ended_at = ?,
			ai_current_day = ?, ai_cash = ?, ai_holdings = ?,
			ai_portfolio_value = ?, ai_total_return_pct = ?
		WHERE room_code = ?`,
		string(room.Status), room.CurrentDay, nullTime(room.DayStartedAt), nullInt(room.DayTimeLimit),
		nullTime(room.GameStartedAt), nullTime(room.GameEndedAt),
		room.AICurrentDay, room.AICash, string(holdings),
		room.AIPortfolioValue, room.AITotalReturnPct,
		room.RoomCode,
	)
	if err != nil {
		return fmt.Errorf("failed to update room %s: %w", room.RoomCode, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("room %s vanished during update", room.RoomCode)
	}

	return nil
}

// InProgress returns every room currently in progress. Used by the clock to
// re-arm timers after a restart.
func (r *RoomRepository) InProgress(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+roomColumns+" FROM game_rooms WHERE status = ?", string(domain.StatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("failed to query in-progress rooms: %w", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		rooms = append(rooms, *room)
	}

	return rooms, rows.Err()
}

// FinishedBefore returns codes of rooms that finished before the cutoff.
func (r *RoomRepository) FinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_code FROM game_rooms WHERE status = ? AND game_ended_at < ?`,
		string(domain.StatusFinished), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query finished rooms: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan room code: %w", err)
		}
		codes = append(codes, code)
	}

	return codes, rows.Err()
}

// Delete removes a room; players, trades and snapshots cascade.
func (r *RoomRepository) Delete(ctx context.Context, code string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM game_rooms WHERE room_code = ?`, code); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	return nil
}

// CountByStatus returns room counts keyed by lifecycle status.
func (r *RoomRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM game_rooms GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count rooms: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan room count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func scanRoom(row interface{ Scan(...interface{}) error }) (*domain.Room, error) {
	var room domain.Room
	var mode, status, tickers, difficulty, holdings, createdAt string
	var dayStartedAt, gameStartedAt, gameEndedAt sql.NullString
	var dayTimeLimit sql.NullInt64

	err := row.Scan(
		&room.RoomCode, &room.RoomName, &room.CreatedBy, &mode, &status,
		&room.Config.InitialCash, &room.Config.NumDays, &tickers, &difficulty,
		&room.StartDate, &room.EndDate,
		&room.CurrentDay, &dayStartedAt, &dayTimeLimit, &gameStartedAt,
		&gameEndedAt, &room.AICurrentDay, &room.AICash, &holdings,
		&room.AIPortfolioValue, &room.AITotalReturnPct, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	room.Mode = domain.GameMode(mode)
	room.Status = domain.RoomStatus(status)
	room.Config.Difficulty = domain.Difficulty(difficulty)
	room.Config.StartDate = room.StartDate
	room.Config.EndDate = room.EndDate

	if err := json.Unmarshal([]byte(tickers), &room.Config.Tickers); err != nil {
		return nil, fmt.Errorf("malformed tickers for room %s: %w", room.RoomCode, err)
	}
	if err := json.Unmarshal([]byte(holdings), &room.AIHoldings); err != nil {
		return nil, fmt.Errorf("malformed AI holdings for room %s: %w", room.RoomCode, err)
	}

	if room.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("malformed created_at for room %s: %w", room.RoomCode, err)
	}
	if room.DayStartedAt, err = parseNullTime(dayStartedAt); err != nil {
		return nil, fmt.Errorf("malformed day_started_at for room %s: %w", room.RoomCode, err)
	}
	if room.GameStartedAt, err = parseNullTime(gameStartedAt); err != nil {
		return nil, fmt.Errorf("malformed game_started_at for room %s: %w", room.RoomCode, err)
	}
	if room.GameEndedAt, err = parseNullTime(gameEndedAt); err != nil {
		return nil, fmt.Errorf("malformed game_ended_at for room %s: %w", room.RoomCode, err)
	}
	if dayTimeLimit.Valid {
		limit := int(dayTimeLimit.Int64)
		room.DayTimeLimit = &limit
	}

	return &room, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
