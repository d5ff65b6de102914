package rooms

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/portfolio"
	"github.com/aristath/stockroom/internal/modules/trading"
)

// Join adds a player to a room, or resumes an existing one: a join with a
// name already taken in the room (case-insensitively) returns that player's
// full saved state instead of erroring. Resume works even on finished
// rooms so students can revisit their results.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*domain.Player, bool, error) {
	code := normalizeCode(req.RoomCode)
	name := strings.TrimSpace(req.PlayerName)
	if name == "" {
		return nil, false, domain.E(domain.KindValidation, "player_name is required")
	}

	lock := s.locks.RoomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, false, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, false, domain.E(domain.KindNotFound, "no room with code %s", code)
	}

	existing, err := s.players.GetByName(ctx, code, name)
	if err != nil {
		return nil, false, domain.Wrap(err, domain.KindInternal, "failed to look up player name")
	}
	if existing != nil {
		existing.LastActionAt = time.Now().UTC()
		if err := s.players.Update(ctx, existing); err != nil {
			return nil, false, domain.Wrap(err, domain.KindInternal, "failed to touch resumed player")
		}
		full, err := s.players.Load(ctx, existing.PlayerID)
		if err != nil {
			return nil, false, domain.Wrap(err, domain.KindInternal, "failed to load resumed player")
		}
		s.events.Emit(events.PlayerResumed, moduleName, map[string]interface{}{
			"room_code": code,
			"player_id": full.PlayerID,
		})
		return full, true, nil
	}

	if room.Finished() {
		return nil, false, domain.E(domain.KindConflict, "room %s has already finished", code)
	}

	now := time.Now().UTC()
	p := &domain.Player{
		PlayerID:       uuid.NewString(),
		RoomCode:       code,
		Name:           name,
		Email:          strings.TrimSpace(req.PlayerEmail),
		Cash:           room.Config.InitialCash,
		Holdings:       domain.Holdings{},
		PortfolioValue: room.Config.InitialCash,
		JoinedAt:       now,
		LastActionAt:   now,
	}

	// A late joiner in a synchronized room starts on the room's day with a
	// flat history: untouched cash for every day already played.
	if room.Status == domain.StatusInProgress && room.Mode.Synchronized() {
		p.CurrentDay = room.CurrentDay
		p.LastSyncDay = room.CurrentDay
	}

	if err := s.players.Create(ctx, p); err != nil {
		return nil, false, domain.Wrap(err, domain.KindInternal, "failed to create player")
	}

	for day := 0; day <= p.CurrentDay; day++ {
		snap := portfolio.InitialSnapshot(room.Config.InitialCash)
		snap.Day = day
		if err := s.players.AppendSnapshot(ctx, p.PlayerID, snap); err != nil {
			return nil, false, domain.Wrap(err, domain.KindInternal, "failed to seed history")
		}
		p.PortfolioHistory = append(p.PortfolioHistory, snap)
	}
	p.Trades = []domain.TradeRecord{}

	s.events.Emit(events.PlayerJoined, moduleName, map[string]interface{}{
		"room_code": code,
		"player_id": p.PlayerID,
		"name":      p.Name,
	})
	s.log.Info().Str("room_code", code).Str("player_id", p.PlayerID).Msg("Player joined")

	return p, false, nil
}

// GetPlayer returns a player with ledger and history.
func (s *Service) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	p, err := s.players.Load(ctx, playerID)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load player")
	}
	if p == nil {
		return nil, domain.E(domain.KindNotFound, "no player with id %s", playerID)
	}
	return p, nil
}

// MarkReady flags a player as done with the current day in a synchronized
// room. The flag is advisory: it drives the teacher's dashboard, never the
// clock.
func (s *Service) MarkReady(ctx context.Context, playerID string) (*domain.Player, error) {
	probe, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load player")
	}
	if probe == nil {
		return nil, domain.E(domain.KindNotFound, "no player with id %s", playerID)
	}

	rlock := s.locks.RoomLock(probe.RoomCode)
	rlock.Lock()
	defer rlock.Unlock()
	plock := s.locks.PlayerLock(playerID)
	plock.Lock()
	defer plock.Unlock()

	room, err := s.rooms.Get(ctx, probe.RoomCode)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", probe.RoomCode)
	}
	if !room.Mode.Synchronized() {
		return nil, domain.E(domain.KindValidation, "ready flags only apply to synchronized rooms")
	}
	if room.Status != domain.StatusInProgress {
		return nil, domain.E(domain.KindConflict, "room %s is %s", room.RoomCode, room.Status)
	}

	p, err := s.players.Get(ctx, playerID)
	if err != nil || p == nil {
		return nil, domain.Wrap(err, domain.KindInternal, "player vanished under lock")
	}
	if p.IsFinished {
		return nil, domain.E(domain.KindConflict, "player %s has already finished", playerID)
	}

	p.IsReady = true
	p.LastActionAt = time.Now().UTC()
	if err := s.players.Update(ctx, p); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to mark player ready")
	}

	return p, nil
}

// SubmitPlayerState is the single write endpoint for players. The patch is
// a command, not a document: new trades for the player's current day are
// validated and queued, a current_day one past the server's performs an
// async day advance, and is_finished on the final day closes the game for
// the player. Client-computed prices, valuations and scores are ignored;
// the server recomputes everything. Re-posting the same patch is a no-op.
func (s *Service) SubmitPlayerState(ctx context.Context, playerID string, patch PlayerPatch) (*domain.Player, error) {
	probe, err := s.players.Get(ctx, playerID)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load player")
	}
	if probe == nil {
		return nil, domain.E(domain.KindNotFound, "no player with id %s", playerID)
	}

	rlock := s.locks.RoomLock(probe.RoomCode)
	rlock.Lock()
	defer rlock.Unlock()
	plock := s.locks.PlayerLock(playerID)
	plock.Lock()
	defer plock.Unlock()

	room, err := s.rooms.Get(ctx, probe.RoomCode)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", probe.RoomCode)
	}
	if room.Status == domain.StatusWaiting {
		return nil, domain.E(domain.KindConflict, "room %s has not started", room.RoomCode)
	}
	if room.Finished() {
		return nil, domain.E(domain.KindConflict, "room %s has already finished", room.RoomCode)
	}

	p, err := s.players.Get(ctx, playerID)
	if err != nil || p == nil {
		return nil, domain.Wrap(err, domain.KindInternal, "player vanished under lock")
	}
	if p.IsFinished {
		return nil, domain.E(domain.KindConflict, "player %s has already finished", playerID)
	}

	slice, err := s.sliceFor(ctx, room)
	if err != nil {
		return nil, err
	}

	if err := s.queueTrades(ctx, room, slice, p, patch.Trades); err != nil {
		return nil, err
	}

	switch {
	case patch.CurrentDay == p.CurrentDay:
		// Trades only.
	case patch.CurrentDay == p.CurrentDay+1:
		if room.Mode.Synchronized() {
			return nil, domain.E(domain.KindValidation,
				"room %s is %s, the room clock owns the day", room.RoomCode, room.Mode)
		}
		if patch.CurrentDay >= slice.TotalDays {
			return nil, domain.E(domain.KindValidation,
				"day %d is past the end of a %d-day game", patch.CurrentDay, slice.TotalDays)
		}
		// The opponent tracks the furthest player in async rooms, and steps
		// first so the advancing player is scored against its same-day return.
		if patch.CurrentDay > room.AICurrentDay {
			advanceAI(room, slice, patch.CurrentDay)
			if err := s.rooms.Update(ctx, room); err != nil {
				return nil, domain.Wrap(err, domain.KindInternal, "failed to persist opponent advance")
			}
		}
		if err := s.advancePlayerLocked(ctx, room, slice, p); err != nil {
			return nil, err
		}
	default:
		return nil, domain.E(domain.KindValidation,
			"current_day %d does not follow from %d, days advance one at a time",
			patch.CurrentDay, p.CurrentDay)
	}

	if patch.IsFinished {
		if p.CurrentDay != slice.TotalDays-1 {
			return nil, domain.E(domain.KindValidation,
				"cannot finish on day %d of a %d-day game", p.CurrentDay, slice.TotalDays)
		}
		if err := s.finishPlayerLocked(ctx, room, slice, p); err != nil {
			return nil, err
		}
	}

	p.LastActionAt = time.Now().UTC()
	if room.Mode.Synchronized() {
		p.LastSyncDay = room.CurrentDay
	}
	if err := s.players.Update(ctx, p); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to persist player")
	}

	return s.players.Load(ctx, playerID)
}

// queueTrades validates and inserts the patch entries submitted for the
// player's current day. Entries identical to an already queued trade are
// skipped, making patch retries harmless; a differing trade for an already
// traded ticker is the genuine same-day duplicate and conflicts. Validation
// runs over the whole batch before anything is inserted.
func (s *Service) queueTrades(ctx context.Context, room *domain.Room, slice *gamedata.Slice, p *domain.Player, patches []TradePatch) error {
	var fresh []TradePatch
	for _, t := range patches {
		if t.DaySubmitted == p.CurrentDay {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	pending, err := s.players.PendingTrades(ctx, p.PlayerID, p.CurrentDay)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load pending trades")
	}
	traded, err := s.players.TradedTickers(ctx, p.PlayerID, p.CurrentDay)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load traded tickers")
	}

	var accepted []TradePatch
	for _, t := range fresh {
		ticker := strings.ToUpper(strings.TrimSpace(t.Ticker))
		t.Ticker = ticker

		if alreadyQueued(pending, t) {
			continue
		}

		price, _, ok := slice.ExecutionOpen(p.CurrentDay+1, ticker)
		label := domain.LabelHold
		if rec := slice.RecommendationOn(p.CurrentDay, ticker); rec != nil {
			label = rec.Label
		}

		err := trading.Validate(
			trading.Intent{Ticker: ticker, Action: t.Action, Shares: t.Shares},
			trading.RuleContext{
				Status:          room.Status,
				Day:             p.CurrentDay,
				Cash:            p.Cash,
				Holdings:        p.Holdings,
				Recommendation:  label,
				ExecutionOpen:   price,
				HasExecutionDay: ok,
				TradedTickers:   traded,
			},
		)
		if err != nil {
			return err
		}

		traded[ticker] = true
		accepted = append(accepted, t)
	}

	now := time.Now().UTC()
	for _, t := range accepted {
		record := &domain.TradeRecord{
			PlayerID:     p.PlayerID,
			RoomCode:     room.RoomCode,
			Ticker:       t.Ticker,
			Action:       t.Action,
			Shares:       int(t.Shares),
			DaySubmitted: p.CurrentDay,
			Status:       domain.TradePending,
			CreatedAt:    now,
		}
		if _, err := s.players.InsertTrade(ctx, record); err != nil {
			return domain.Wrap(err, domain.KindInternal, "failed to queue trade")
		}
		s.log.Debug().
			Str("player_id", p.PlayerID).
			Str("ticker", t.Ticker).
			Str("action", string(t.Action)).
			Int("day", p.CurrentDay).
			Msg("Trade queued")
	}

	return nil
}

func alreadyQueued(pending []domain.TradeRecord, t TradePatch) bool {
	for _, q := range pending {
		if q.Ticker == t.Ticker && q.Action == t.Action && float64(q.Shares) == t.Shares {
			return true
		}
	}
	return false
}
