package rooms

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/portfolio"
	"github.com/aristath/stockroom/internal/modules/scoring"
)

const moduleName = "rooms"

// roomCodeLength is the length of generated join codes.
const roomCodeLength = 6

// roomCodeAlphabet excludes 0/O and 1/I/L: codes get read aloud and copied
// off projectors in classrooms.
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// ClockNotifier is how the service schedules and cancels auto-advance
// wake-ups without depending on the scheduler package. Arm replaces any
// previous timer for the room; expectedDay is echoed back through AutoTick
// so a stale wake-up after a manual advance becomes a no-op.
type ClockNotifier interface {
	Arm(roomCode string, expectedDay int, wakeAt time.Time)
	Cancel(roomCode string)
}

// Service is the room state machine and player registry. Every mutation
// funnels through here under the lock registry: room lock first, then
// player lock, never the reverse.
type Service struct {
	rooms   *RoomRepository
	players *PlayerRepository
	slices  *gamedata.Cache
	engine  *portfolio.Engine
	events  *events.Manager
	locks   *Registry
	clock   ClockNotifier
	log     zerolog.Logger
}

// NewService creates the rooms service.
func NewService(
	rooms *RoomRepository,
	players *PlayerRepository,
	slices *gamedata.Cache,
	engine *portfolio.Engine,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		rooms:   rooms,
		players: players,
		slices:  slices,
		engine:  engine,
		events:  eventManager,
		locks:   NewRegistry(),
		log:     log.With().Str("service", "rooms").Logger(),
	}
}

// SetClock wires the auto-advance clock. Rooms in sync_auto mode run
// untimed until one is set.
func (s *Service) SetClock(clock ClockNotifier) {
	s.clock = clock
}

// CreateRoom validates the configuration, resolves and builds the room's
// game slice, and persists a new room in the waiting state.
func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		return nil, domain.E(domain.KindValidation, "created_by is required")
	}
	if !req.GameMode.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown game_mode %q", req.GameMode)
	}

	cfg := req.Config
	cfg.StartDate = req.StartDate
	cfg.EndDate = req.EndDate
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	var dayTimeLimit *int
	if req.DayDurationSeconds != nil {
		if req.GameMode != domain.ModeSyncAuto {
			return nil, domain.E(domain.KindValidation,
				"day_duration_seconds only applies to sync_auto rooms")
		}
		if *req.DayDurationSeconds <= 0 {
			return nil, domain.E(domain.KindValidation,
				"day_duration_seconds must be positive, got %d", *req.DayDurationSeconds)
		}
		limit := *req.DayDurationSeconds
		dayTimeLimit = &limit
	}

	// Building up front both validates the window (tickers, date range,
	// coverage) and warms the cache before the first player joins.
	slice, err := s.slices.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cfg.StartDate = slice.StartDate
	cfg.EndDate = slice.EndDate

	room := &domain.Room{
		RoomName:         strings.TrimSpace(req.RoomName),
		CreatedBy:        createdBy,
		Mode:             req.GameMode,
		Status:           domain.StatusWaiting,
		Config:           cfg,
		StartDate:        slice.StartDate,
		EndDate:          slice.EndDate,
		DayTimeLimit:     dayTimeLimit,
		AICash:           cfg.InitialCash,
		AIHoldings:       domain.Holdings{},
		AIPortfolioValue: cfg.InitialCash,
		CreatedAt:        time.Now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		room.RoomCode = newRoomCode()
		existing, err := s.rooms.Get(ctx, room.RoomCode)
		if err != nil {
			return nil, domain.Wrap(err, domain.KindInternal, "failed to check room code")
		}
		if existing == nil {
			break
		}
		if attempt >= 5 {
			return nil, domain.E(domain.KindInternal, "could not allocate a free room code")
		}
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to create room")
	}

	s.events.Emit(events.RoomCreated, moduleName, map[string]interface{}{
		"room_code": room.RoomCode,
		"game_mode": string(room.Mode),
		"num_days":  cfg.NumDays,
		"tickers":   cfg.Tickers,
	})
	s.log.Info().
		Str("room_code", room.RoomCode).
		Str("game_mode", string(room.Mode)).
		Str("window", slice.StartDate+".."+slice.EndDate).
		Msg("Room created")

	return room, nil
}

// GetRoom returns the full room record with its players.
func (s *Service) GetRoom(ctx context.Context, code string) (*RoomWithPlayers, error) {
	room, err := s.rooms.Get(ctx, normalizeCode(code))
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", normalizeCode(code))
	}

	players, err := s.players.ListByRoom(ctx, room.RoomCode)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to list players")
	}

	return &RoomWithPlayers{Room: *room, Players: players}, nil
}

// Start moves a waiting room to in_progress on day 0. Teacher-only.
// Starting an already running room is an idempotent no-op returning the
// current state.
func (s *Service) Start(ctx context.Context, code, startedBy string) (*domain.Room, error) {
	code = normalizeCode(code)
	lock := s.locks.RoomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", code)
	}
	if startedBy != room.CreatedBy {
		return nil, domain.E(domain.KindForbidden, "only the room creator can start the game")
	}
	if room.Finished() {
		return nil, domain.E(domain.KindConflict, "room %s has already finished", code)
	}
	if room.Status == domain.StatusInProgress {
		return room, nil
	}

	if _, err := s.sliceFor(ctx, room); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	room.Status = domain.StatusInProgress
	room.CurrentDay = 0
	room.GameStartedAt = &now
	room.DayStartedAt = &now

	if err := s.players.ResetReady(ctx, code); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to reset ready flags")
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to start room")
	}

	s.armClock(room)
	s.events.Emit(events.GameStarted, moduleName, map[string]interface{}{
		"room_code": room.RoomCode,
	})
	s.log.Info().Str("room_code", code).Msg("Game started")

	return room, nil
}

// AdvanceDay moves a synchronized room one day forward, sweeping every
// player through trade execution, valuation and scoring. Teacher-only.
// An optional newLimit resets the sync_auto countdown for the next day.
func (s *Service) AdvanceDay(ctx context.Context, code, initiatedBy string, newLimit *int) (*domain.Room, error) {
	code = normalizeCode(code)
	lock := s.locks.RoomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", code)
	}
	if !room.Mode.Synchronized() {
		return nil, domain.E(domain.KindValidation,
			"room %s is async, players advance their own days", code)
	}
	if initiatedBy != room.CreatedBy {
		return nil, domain.E(domain.KindForbidden, "only the room creator can advance the day")
	}
	if room.Status == domain.StatusWaiting {
		return nil, domain.E(domain.KindConflict, "room %s has not started", code)
	}
	if room.Finished() {
		return nil, domain.E(domain.KindConflict, "room %s has already finished", code)
	}

	if newLimit != nil {
		if room.Mode != domain.ModeSyncAuto {
			return nil, domain.E(domain.KindValidation,
				"day_duration_seconds only applies to sync_auto rooms")
		}
		if *newLimit <= 0 {
			return nil, domain.E(domain.KindValidation,
				"day_duration_seconds must be positive, got %d", *newLimit)
		}
		limit := *newLimit
		room.DayTimeLimit = &limit
	}

	slice, err := s.sliceFor(ctx, room)
	if err != nil {
		return nil, err
	}

	if err := s.advanceLocked(ctx, room, slice); err != nil {
		return nil, err
	}

	return room, nil
}

// SetTimer changes a sync_auto room's countdown mid-game and restarts the
// current day's clock. Teacher-only.
func (s *Service) SetTimer(ctx context.Context, code, requestedBy string, seconds int) (*domain.Room, error) {
	code = normalizeCode(code)
	lock := s.locks.RoomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", code)
	}
	if requestedBy != room.CreatedBy {
		return nil, domain.E(domain.KindForbidden, "only the room creator can change the timer")
	}
	if room.Mode != domain.ModeSyncAuto {
		return nil, domain.E(domain.KindValidation, "room %s does not run on a timer", code)
	}
	if room.Status != domain.StatusInProgress {
		return nil, domain.E(domain.KindConflict, "room %s is %s", code, room.Status)
	}
	if seconds <= 0 {
		return nil, domain.E(domain.KindValidation,
			"day_duration_seconds must be positive, got %d", seconds)
	}

	now := time.Now().UTC()
	room.DayTimeLimit = &seconds
	room.DayStartedAt = &now

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to update timer")
	}

	s.armClock(room)
	s.events.Emit(events.TimerChanged, moduleName, map[string]interface{}{
		"room_code": code,
		"seconds":   seconds,
	})

	return room, nil
}

// EndGame finishes a room early: pending trades are rejected, every
// player's score is frozen. Teacher-only; ending a finished room is an
// idempotent no-op.
func (s *Service) EndGame(ctx context.Context, code, endedBy string) (*domain.Room, error) {
	code = normalizeCode(code)
	lock := s.locks.RoomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", code)
	}
	if endedBy != room.CreatedBy {
		return nil, domain.E(domain.KindForbidden, "only the room creator can end the game")
	}
	if room.Finished() {
		return room, nil
	}
	if room.Status == domain.StatusWaiting {
		return nil, domain.E(domain.KindConflict, "room %s has not started", code)
	}

	slice, err := s.sliceFor(ctx, room)
	if err != nil {
		return nil, err
	}

	if err := s.finishRoomLocked(ctx, room, slice); err != nil {
		return nil, err
	}

	return room, nil
}

// AutoTick is the scheduler's entry point. expectedDay is the day the timer
// was armed for; a tick that arrives after a manual advance or a timer
// change carries a stale day and does nothing. A tick that fires early
// (timer lengthened since arming) re-arms itself at the correct deadline.
func (s *Service) AutoTick(ctx context.Context, code string, expectedDay int) error {
	lock := s.locks.RoomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil || room.Status != domain.StatusInProgress ||
		room.Mode != domain.ModeSyncAuto || room.DayTimeLimit == nil ||
		room.CurrentDay != expectedDay {
		s.log.Debug().Str("room_code", code).Int("expected_day", expectedDay).
			Msg("Stale auto-tick dropped")
		return nil
	}

	if room.DayStartedAt != nil {
		due := room.DayStartedAt.Add(time.Duration(*room.DayTimeLimit) * time.Second)
		if now := time.Now().UTC(); now.Before(due) {
			if s.clock != nil {
				s.clock.Arm(code, room.CurrentDay, due)
			}
			return nil
		}
	}

	slice, err := s.sliceFor(ctx, room)
	if err != nil {
		return err
	}

	return s.advanceLocked(ctx, room, slice)
}

// RoomState is the cheap polling view. All clock math happens here so
// clients never trust their own clocks.
func (s *Service) RoomState(ctx context.Context, code string) (*StateView, error) {
	room, err := s.rooms.Get(ctx, normalizeCode(code))
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", normalizeCode(code))
	}

	players, err := s.players.ListByRoom(ctx, room.RoomCode)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to list players")
	}

	view := &StateView{
		Status:       room.Status,
		Mode:         room.Mode,
		CurrentDay:   room.CurrentDay,
		TotalDays:    room.Config.NumDays,
		DayStartedAt: room.DayStartedAt,
		DayTimeLimit: room.DayTimeLimit,
		TotalPlayers: len(players),
	}

	for _, p := range players {
		if p.IsReady {
			view.ReadyCount++
		}
	}

	if room.Status == domain.StatusInProgress && room.Mode == domain.ModeSyncAuto &&
		room.DayStartedAt != nil && room.DayTimeLimit != nil {
		due := room.DayStartedAt.Add(time.Duration(*room.DayTimeLimit) * time.Second)
		remaining := int(time.Until(due).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		view.TimeRemaining = &remaining
	}

	view.WaitingForTeacher = room.Status == domain.StatusInProgress &&
		room.Mode == domain.ModeSync &&
		view.TotalPlayers > 0 && view.ReadyCount == view.TotalPlayers

	return view, nil
}

// Leaderboard ranks a room's players: score descending, portfolio value
// descending, earlier join wins the last tie.
func (s *Service) Leaderboard(ctx context.Context, code string) ([]LeaderboardEntry, error) {
	room, err := s.rooms.Get(ctx, normalizeCode(code))
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to load room")
	}
	if room == nil {
		return nil, domain.E(domain.KindNotFound, "no room with code %s", normalizeCode(code))
	}

	players, err := s.players.ListByRoom(ctx, room.RoomCode)
	if err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to list players")
	}

	// ListByRoom returns joined_at ascending, so a stable sort on score and
	// portfolio value leaves join order as the final tie-break.
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].PortfolioValue > players[j].PortfolioValue
	})

	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{
			Rank:           i + 1,
			PlayerID:       p.PlayerID,
			PlayerName:     p.Name,
			Score:          p.Score,
			Grade:          p.Grade,
			PortfolioValue: p.PortfolioValue,
			TotalReturnPct: p.TotalReturnPct,
			CurrentDay:     p.CurrentDay,
			IsFinished:     p.IsFinished,
		}
	}

	return entries, nil
}

// DeleteRoom removes a room and drops its locks. Used by retention cleanup.
func (s *Service) DeleteRoom(ctx context.Context, code string) error {
	players, err := s.players.ListByRoom(ctx, code)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to list players")
	}

	if err := s.rooms.Delete(ctx, code); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to delete room")
	}

	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.PlayerID
	}
	s.locks.Forget(code, ids)

	return nil
}

// advanceLocked performs one day transition with the room lock held. When
// the next day would pass the final playable day the room finishes instead:
// players keep their final-day state and any still-pending trades are
// rejected, there being no day left to fill them on.
func (s *Service) advanceLocked(ctx context.Context, room *domain.Room, slice *gamedata.Slice) error {
	fromDay := room.CurrentDay
	newDay := fromDay + 1
	finishing := newDay >= slice.TotalDays

	// The AI steps first so every player scored in this sweep compares
	// against the opponent's same-day return.
	advanceAI(room, slice, newDay)

	players, err := s.players.ListByRoom(ctx, room.RoomCode)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to list players")
	}

	for i := range players {
		p := &players[i]
		plock := s.locks.PlayerLock(p.PlayerID)
		plock.Lock()

		switch {
		case p.IsFinished:
			err = nil
		case finishing:
			err = s.finishPlayerLocked(ctx, room, slice, p)
		case p.CurrentDay == fromDay:
			err = s.advancePlayerLocked(ctx, room, slice, p)
		default:
			s.log.Warn().
				Str("player_id", p.PlayerID).
				Int("player_day", p.CurrentDay).
				Int("room_day", fromDay).
				Msg("Player out of step with room, skipped in sweep")
			err = nil
		}

		plock.Unlock()
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if finishing {
		room.CurrentDay = slice.TotalDays
		return s.finishRoomLocked(ctx, room, slice)
	}

	room.CurrentDay = newDay
	room.DayStartedAt = &now

	if err := s.players.ResetReady(ctx, room.RoomCode); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to reset ready flags")
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to persist day advance")
	}

	s.armClock(room)
	s.events.Emit(events.DayAdvanced, moduleName, map[string]interface{}{
		"room_code": room.RoomCode,
		"day":       newDay,
	})
	s.log.Info().Str("room_code", room.RoomCode).Int("day", newDay).Msg("Day advanced")

	return nil
}

// advancePlayerLocked runs one player through the portfolio engine and
// rescoring. Caller holds both locks.
func (s *Service) advancePlayerLocked(ctx context.Context, room *domain.Room, slice *gamedata.Slice, p *domain.Player) error {
	pending, err := s.players.PendingTrades(ctx, p.PlayerID, p.CurrentDay)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load pending trades")
	}

	res := s.engine.AdvanceDay(portfolio.DayInput{
		FromDay:     p.CurrentDay,
		Cash:        p.Cash,
		Holdings:    p.Holdings,
		Pending:     pending,
		InitialCash: room.Config.InitialCash,
	}, slice)

	executed := 0
	for i := range res.Trades {
		t := &res.Trades[i]
		if err := s.players.FinalizeTrade(ctx, t); err != nil {
			return domain.Wrap(err, domain.KindInternal, "failed to finalize trade")
		}
		if t.Status == domain.TradeExecuted {
			executed++
		} else {
			s.events.Emit(events.TradeRejected, moduleName, map[string]interface{}{
				"room_code": room.RoomCode,
				"player_id": p.PlayerID,
				"ticker":    t.Ticker,
				"reason":    t.RejectReason,
			})
		}
	}

	if err := s.players.AppendSnapshot(ctx, p.PlayerID, res.Snapshot); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to append snapshot")
	}

	p.CurrentDay = res.Day
	p.Cash = res.Cash
	p.Holdings = res.Holdings
	p.PortfolioValue = res.Snapshot.PortfolioValue
	p.TotalReturnPct = res.Snapshot.ReturnPct
	p.LastSyncDay = res.Day
	p.IsReady = false

	if err := s.scorePlayer(ctx, room, slice, p); err != nil {
		return err
	}
	if err := s.players.Update(ctx, p); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to persist player advance")
	}

	if executed > 0 {
		s.events.Emit(events.TradesExecuted, moduleName, map[string]interface{}{
			"room_code": room.RoomCode,
			"player_id": p.PlayerID,
			"day":       res.Day,
			"count":     executed,
		})
	}

	return nil
}

// finishPlayerLocked rejects a player's unfillable pending trades, freezes
// the score and marks the player finished. Caller holds both locks.
func (s *Service) finishPlayerLocked(ctx context.Context, room *domain.Room, slice *gamedata.Slice, p *domain.Player) error {
	pending, err := s.players.PendingTrades(ctx, p.PlayerID, p.CurrentDay)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load pending trades")
	}

	for i := range pending {
		t := &pending[i]
		t.Status = domain.TradeRejected
		t.RejectReason = domain.ReasonGameNotActive
		t.Price = 0
		t.Total = 0
		t.DayExecuted = nil
		if err := s.players.FinalizeTrade(ctx, t); err != nil {
			return domain.Wrap(err, domain.KindInternal, "failed to reject pending trade")
		}
	}

	p.IsFinished = true
	p.IsReady = false

	if err := s.scorePlayer(ctx, room, slice, p); err != nil {
		return err
	}
	if err := s.players.Update(ctx, p); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to persist finished player")
	}

	return nil
}

// finishRoomLocked moves the room to its terminal state. Players not yet
// swept by the caller are finished here (EndGame path). Caller holds the
// room lock.
func (s *Service) finishRoomLocked(ctx context.Context, room *domain.Room, slice *gamedata.Slice) error {
	players, err := s.players.ListByRoom(ctx, room.RoomCode)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to list players")
	}
	for i := range players {
		p := &players[i]
		if p.IsFinished {
			continue
		}
		plock := s.locks.PlayerLock(p.PlayerID)
		plock.Lock()
		err := s.finishPlayerLocked(ctx, room, slice, p)
		plock.Unlock()
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	room.Status = domain.StatusFinished
	room.GameEndedAt = &now
	room.DayStartedAt = nil

	if err := s.rooms.Update(ctx, room); err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to persist finished room")
	}

	if s.clock != nil {
		s.clock.Cancel(room.RoomCode)
	}
	s.events.Emit(events.GameFinished, moduleName, map[string]interface{}{
		"room_code": room.RoomCode,
		"ai_return": room.AITotalReturnPct,
	})
	s.log.Info().Str("room_code", room.RoomCode).Msg("Game finished")

	return nil
}

// scorePlayer recomputes a player's score and grade from the persisted
// ledger and history.
func (s *Service) scorePlayer(ctx context.Context, room *domain.Room, slice *gamedata.Slice, p *domain.Player) error {
	trades, err := s.players.Trades(ctx, p.PlayerID)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load trades for scoring")
	}
	history, err := s.players.Snapshots(ctx, p.PlayerID)
	if err != nil {
		return domain.Wrap(err, domain.KindInternal, "failed to load history for scoring")
	}

	b := scoring.Score(scoring.Input{
		ReturnPct:   p.TotalReturnPct,
		AIReturnPct: room.AITotalReturnPct,
		History:     history,
		Trades:      trades,
		Difficulty:  room.Config.Difficulty,
	}, slice)

	p.Score = b.Total
	p.Grade = b.Grade

	return nil
}

// sliceFor returns the room's game slice, from cache after the first build.
func (s *Service) sliceFor(ctx context.Context, room *domain.Room) (*gamedata.Slice, error) {
	return s.slices.Get(ctx, room.Config)
}

func (s *Service) armClock(room *domain.Room) {
	if s.clock == nil || room.Mode != domain.ModeSyncAuto ||
		room.DayTimeLimit == nil || room.DayStartedAt == nil {
		return
	}
	wakeAt := room.DayStartedAt.Add(time.Duration(*room.DayTimeLimit) * time.Second)
	s.clock.Arm(room.RoomCode, room.CurrentDay, wakeAt)
}

func newRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
