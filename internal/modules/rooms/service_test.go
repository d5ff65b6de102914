package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/historical"
	"github.com/aristath/stockroom/internal/modules/portfolio"
	stesting "github.com/aristath/stockroom/internal/testing"
)

type armCall struct {
	code   string
	day    int
	wakeAt time.Time
}

type recordingClock struct {
	mu      sync.Mutex
	arms    []armCall
	cancels []string
}

func (c *recordingClock) Arm(roomCode string, expectedDay int, wakeAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arms = append(c.arms, armCall{roomCode, expectedDay, wakeAt})
}

func (c *recordingClock) Cancel(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels = append(c.cancels, roomCode)
}

func (c *recordingClock) lastArm(t *testing.T) armCall {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.arms, "expected the clock to have been armed")
	return c.arms[len(c.arms)-1]
}

func (c *recordingClock) armCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.arms)
}

type testEnv struct {
	svc     *Service
	rooms   *RoomRepository
	players *PlayerRepository
	clock   *recordingClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)

	market := stesting.NewTestDB(t, "market_data")
	news := stesting.NewTestDB(t, "news")
	features := stesting.NewTestDB(t, "features")
	agents := stesting.NewTestDB(t, "agents")
	multi := stesting.NewTestDB(t, "multiplayer")

	stesting.SeedMarketFixture(t, market, news, features, agents)

	gateway := historical.NewGateway(
		historical.NewPriceRepository(market.Conn(), log),
		historical.NewNewsRepository(news.Conn(), log),
		historical.NewFeatureRepository(features.Conn(), log),
		historical.NewRecommendationRepository(agents.Conn(), log),
		"2025-01-01",
		log,
	)
	cache := gamedata.NewCache(gamedata.NewBuilder(gateway, log), log)

	roomRepo := NewRoomRepository(multi.Conn(), log)
	playerRepo := NewPlayerRepository(multi.Conn(), log)

	svc := NewService(roomRepo, playerRepo, cache, portfolio.NewEngine(log), events.NewManager(log), log)
	clock := &recordingClock{}
	svc.SetClock(clock)

	return &testEnv{svc: svc, rooms: roomRepo, players: playerRepo, clock: clock}
}

func (e *testEnv) createRoom(t *testing.T, mode domain.GameMode, numDays int, daySeconds *int) *domain.Room {
	t.Helper()

	room, err := e.svc.CreateRoom(context.Background(), CreateRoomRequest{
		CreatedBy: "teach",
		GameMode:  mode,
		Config: domain.GameConfig{
			InitialCash: 10000,
			NumDays:     numDays,
			Tickers:     []string{"AAPL", "MSFT", "NVDA"},
		},
		StartDate:          stesting.FixtureStart,
		DayDurationSeconds: daySeconds,
	})
	require.NoError(t, err)
	return room
}

func (e *testEnv) join(t *testing.T, code, name string) *domain.Player {
	t.Helper()

	p, resumed, err := e.svc.Join(context.Background(), JoinRequest{RoomCode: code, PlayerName: name})
	require.NoError(t, err)
	require.False(t, resumed)
	return p
}

func (e *testEnv) start(t *testing.T, code string) *domain.Room {
	t.Helper()

	room, err := e.svc.Start(context.Background(), code, "teach")
	require.NoError(t, err)
	return room
}

func TestCreateRoom_ResolvesWindowAndDefaults(t *testing.T) {
	env := newTestEnv(t)

	room := env.createRoom(t, domain.ModeAsync, 12, nil)

	assert.Len(t, room.RoomCode, roomCodeLength)
	assert.Equal(t, domain.StatusWaiting, room.Status)
	assert.Equal(t, "2025-03-03", room.StartDate)
	assert.Equal(t, "2025-03-14", room.EndDate)
	assert.Equal(t, 10000.0, room.AICash)
	assert.Equal(t, 10000.0, room.AIPortfolioValue)
	assert.Equal(t, 0, room.AICurrentDay)
	assert.Equal(t, domain.DifficultyMedium, room.Config.Difficulty)
}

func TestCreateRoom_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateRoom(ctx, CreateRoomRequest{
		CreatedBy: "teach",
		GameMode:  "speedrun",
		Config:    domain.GameConfig{InitialCash: 10000, NumDays: 5, Tickers: []string{"AAPL"}},
	})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = env.svc.CreateRoom(ctx, CreateRoomRequest{
		GameMode: domain.ModeAsync,
		Config:   domain.GameConfig{InitialCash: 10000, NumDays: 5, Tickers: []string{"AAPL"}},
	})
	assert.True(t, domain.IsKind(err, domain.KindValidation), "missing created_by")

	seconds := 60
	_, err = env.svc.CreateRoom(ctx, CreateRoomRequest{
		CreatedBy:          "teach",
		GameMode:           domain.ModeSync,
		Config:             domain.GameConfig{InitialCash: 10000, NumDays: 5, Tickers: []string{"AAPL"}},
		DayDurationSeconds: &seconds,
	})
	assert.True(t, domain.IsKind(err, domain.KindValidation), "timer on a manual sync room")
}

func TestJoin_NewResumeAndUnknownRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeAsync, 12, nil)

	p := env.join(t, room.RoomCode, "Benny")
	assert.Equal(t, 0, p.CurrentDay)
	assert.Equal(t, 10000.0, p.Cash)
	assert.Len(t, p.PortfolioHistory, 1)
	assert.Equal(t, 10000.0, p.PortfolioHistory[0].PortfolioValue)

	// Same name, different case and padding: resume, not a second player.
	back, resumed, err := env.svc.Join(ctx, JoinRequest{RoomCode: room.RoomCode, PlayerName: "  BENNY  "})
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, p.PlayerID, back.PlayerID)

	other := env.join(t, room.RoomCode, "Dana")
	assert.NotEqual(t, p.PlayerID, other.PlayerID)

	_, _, err = env.svc.Join(ctx, JoinRequest{RoomCode: "ZZZZZZ", PlayerName: "Benny"})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, _, err = env.svc.Join(ctx, JoinRequest{RoomCode: room.RoomCode, PlayerName: "   "})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestStart_TeacherOnlyAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeSync, 12, nil)
	env.join(t, room.RoomCode, "ana")

	_, err := env.svc.Start(ctx, room.RoomCode, "impostor")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	started := env.start(t, room.RoomCode)
	assert.Equal(t, domain.StatusInProgress, started.Status)
	assert.Equal(t, 0, started.CurrentDay)
	require.NotNil(t, started.GameStartedAt)

	again, err := env.svc.Start(ctx, room.RoomCode, "teach")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, again.Status)
	assert.Equal(t, 0, again.CurrentDay)
}

func TestSubmitPlayerState_SoloAsyncPlaythrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeAsync, 12, nil)
	p := env.join(t, room.RoomCode, "Benny")
	env.start(t, room.RoomCode)

	// Day 0: queue a buy. AAPL's day-0 advice is BUY, the next open is 110.
	queued, err := env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 10, DaySubmitted: 0}},
	})
	require.NoError(t, err)
	require.Len(t, queued.Trades, 1)
	assert.Equal(t, domain.TradePending, queued.Trades[0].Status)

	// Re-posting the identical patch changes nothing.
	queued, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 10, DaySubmitted: 0}},
	})
	require.NoError(t, err)
	assert.Len(t, queued.Trades, 1)

	// Advance to day 1: the buy fills at the day-1 open.
	advanced, err := env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 1,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 10, DaySubmitted: 0}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, advanced.CurrentDay)
	assert.InDelta(t, 8900.0, advanced.Cash, 1e-9)
	assert.Equal(t, 10, advanced.Holdings["AAPL"].Shares)
	assert.InDelta(t, 110.0, advanced.Holdings["AAPL"].AvgCost, 1e-9)
	assert.InDelta(t, 10150.0, advanced.PortfolioValue, 1e-9)
	assert.InDelta(t, 1.5, advanced.TotalReturnPct, 1e-9)
	require.Len(t, advanced.PortfolioHistory, 2)

	require.Len(t, advanced.Trades, 1)
	trade := advanced.Trades[0]
	assert.Equal(t, domain.TradeExecuted, trade.Status)
	assert.InDelta(t, 110.0, trade.Price, 1e-9)
	assert.InDelta(t, 1100.0, trade.Total, 1e-9)
	require.NotNil(t, trade.DayExecuted)
	assert.Equal(t, 1, *trade.DayExecuted)

	// +1.5% return (15) plus one disciplined buy (50): the advised AAPL buy
	// is above water at the fifth trading-day close after its fill.
	assert.Equal(t, 65, advanced.Score)
	assert.Equal(t, "F", advanced.Grade)

	// The benchmark opponent kept pace.
	fresh, err := env.rooms.Get(ctx, room.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.AICurrentDay)
	assert.Greater(t, fresh.AIPortfolioValue, 10000.0)
}

func TestSubmitPlayerState_DuplicateSameDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeAsync, 12, nil)
	p := env.join(t, room.RoomCode, "Benny")
	env.start(t, room.RoomCode)

	_, err := env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 10, DaySubmitted: 0}},
	})
	require.NoError(t, err)

	// A different AAPL trade on the same day is the real duplicate.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 3, DaySubmitted: 0}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonDuplicateSameDay, de.Code)
}

func TestSubmitPlayerState_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeAsync, 12, nil)
	p := env.join(t, room.RoomCode, "Benny")

	// Before the teacher starts the game every write conflicts.
	_, err := env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{CurrentDay: 0})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	env.start(t, room.RoomCode)

	// MSFT has no stored advice on day 0; the synthetic HOLD blocks buying.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "MSFT", Action: domain.ActionBuy, Shares: 1, DaySubmitted: 0}},
	})
	require.Error(t, err)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonNotABuyDay, de.Code)

	// Days advance one at a time.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{CurrentDay: 2})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	// In a synchronized room the clock owns the day.
	syncRoom := env.createRoom(t, domain.ModeSync, 12, nil)
	sp := env.join(t, syncRoom.RoomCode, "ana")
	env.start(t, syncRoom.RoomCode)

	_, err = env.svc.SubmitPlayerState(ctx, sp.PlayerID, PlayerPatch{CurrentDay: 1})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestAdvanceDay_SweepAndNaturalFinish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeSync, 3, nil)
	p := env.join(t, room.RoomCode, "ana")
	env.start(t, room.RoomCode)

	_, err := env.svc.AdvanceDay(ctx, room.RoomCode, "impostor", nil)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	// NVDA's day-0 advice is STRONG_BUY; 10 shares fill at the day-1 open
	// of 51.00.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "NVDA", Action: domain.ActionBuy, Shares: 10, DaySubmitted: 0}},
	})
	require.NoError(t, err)

	advanced, err := env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced.CurrentDay)

	swept, err := env.svc.GetPlayer(ctx, p.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, swept.CurrentDay)
	assert.InDelta(t, 9490.0, swept.Cash, 1e-9)
	assert.Equal(t, 10, swept.Holdings["NVDA"].Shares)
	assert.InDelta(t, 10015.0, swept.PortfolioValue, 1e-9, "9490 cash + 10 NVDA at the 52.50 close")

	_, err = env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	require.NoError(t, err)

	// Day 2 is the final playable day: a buy queues without the cash check
	// and can only be discarded at finish.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 2,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1, DaySubmitted: 2}},
	})
	require.NoError(t, err)

	finished, err := env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, finished.Status)
	assert.Equal(t, 3, finished.CurrentDay)
	require.NotNil(t, finished.GameEndedAt)

	final, err := env.svc.GetPlayer(ctx, p.PlayerID)
	require.NoError(t, err)
	assert.True(t, final.IsFinished)
	assert.Equal(t, 2, final.CurrentDay, "players do not advance past the final day")
	assert.Len(t, final.PortfolioHistory, 3)

	var rejected *domain.TradeRecord
	for i := range final.Trades {
		if final.Trades[i].Ticker == "AAPL" {
			rejected = &final.Trades[i]
		}
	}
	require.NotNil(t, rejected)
	assert.Equal(t, domain.TradeRejected, rejected.Status)
	assert.Equal(t, domain.ReasonGameNotActive, rejected.RejectReason)

	_, err = env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	// Ending a finished game is a no-op.
	ended, err := env.svc.EndGame(ctx, room.RoomCode, "teach")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, ended.Status)
}

func TestAdvanceDay_AsyncRoomRejected(t *testing.T) {
	env := newTestEnv(t)

	room := env.createRoom(t, domain.ModeAsync, 12, nil)
	env.start(t, room.RoomCode)

	_, err := env.svc.AdvanceDay(context.Background(), room.RoomCode, "teach", nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestEndGame_EarlyFreeze(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeSync, 12, nil)
	p := env.join(t, room.RoomCode, "ana")
	env.start(t, room.RoomCode)

	_, err := env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	require.NoError(t, err)

	ended, err := env.svc.EndGame(ctx, room.RoomCode, "teach")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, ended.Status)

	frozen, err := env.svc.GetPlayer(ctx, p.PlayerID)
	require.NoError(t, err)
	assert.True(t, frozen.IsFinished)
	assert.Equal(t, 1, frozen.CurrentDay)

	// Writes after finish conflict.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{CurrentDay: 1})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	_, err = env.svc.MarkReady(ctx, p.PlayerID)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	// New joins conflict too; resume still works.
	_, _, err = env.svc.Join(ctx, JoinRequest{RoomCode: room.RoomCode, PlayerName: "late"})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	back, resumed, err := env.svc.Join(ctx, JoinRequest{RoomCode: room.RoomCode, PlayerName: "ANA"})
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, p.PlayerID, back.PlayerID)
}

func TestMarkReadyAndRoomState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeSync, 12, nil)
	p := env.join(t, room.RoomCode, "ana")
	env.start(t, room.RoomCode)

	ready, err := env.svc.MarkReady(ctx, p.PlayerID)
	require.NoError(t, err)
	assert.True(t, ready.IsReady)

	state, err := env.svc.RoomState(ctx, room.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 1, state.ReadyCount)
	assert.Equal(t, 1, state.TotalPlayers)
	assert.True(t, state.WaitingForTeacher)
	assert.Nil(t, state.TimeRemaining, "manual sync rooms have no countdown")

	_, err = env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	require.NoError(t, err)

	state, err = env.svc.RoomState(ctx, room.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 0, state.ReadyCount, "ready flags reset on every transition")
	assert.Equal(t, 1, state.CurrentDay)
	assert.False(t, state.WaitingForTeacher)
}

func TestSyncAuto_ClockArmingAndAutoTick(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seconds := 3600

	room := env.createRoom(t, domain.ModeSyncAuto, 3, &seconds)
	env.join(t, room.RoomCode, "ana")
	env.start(t, room.RoomCode)

	armed := env.clock.lastArm(t)
	assert.Equal(t, room.RoomCode, armed.code)
	assert.Equal(t, 0, armed.day)

	// A stale tick for a day the room is no longer on does nothing.
	require.NoError(t, env.svc.AutoTick(ctx, room.RoomCode, 5))
	fresh, err := env.rooms.Get(ctx, room.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.CurrentDay)

	// A tick before the deadline re-arms instead of advancing.
	before := env.clock.armCount()
	require.NoError(t, env.svc.AutoTick(ctx, room.RoomCode, 0))
	fresh, err = env.rooms.Get(ctx, room.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.CurrentDay)
	assert.Greater(t, env.clock.armCount(), before)

	// Backdate the day start so the deadline has passed, then tick.
	past := time.Now().UTC().Add(-2 * time.Hour)
	fresh.DayStartedAt = &past
	require.NoError(t, env.rooms.Update(ctx, fresh))

	require.NoError(t, env.svc.AutoTick(ctx, room.RoomCode, 0))
	fresh, err = env.rooms.Get(ctx, room.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.CurrentDay)

	rearmed := env.clock.lastArm(t)
	assert.Equal(t, 1, rearmed.day, "advance arms the next day's timer")
}

func TestSetTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seconds := 3600

	room := env.createRoom(t, domain.ModeSyncAuto, 12, &seconds)
	env.start(t, room.RoomCode)

	_, err := env.svc.SetTimer(ctx, room.RoomCode, "impostor", 120)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = env.svc.SetTimer(ctx, room.RoomCode, "teach", 0)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	updated, err := env.svc.SetTimer(ctx, room.RoomCode, "teach", 120)
	require.NoError(t, err)
	require.NotNil(t, updated.DayTimeLimit)
	assert.Equal(t, 120, *updated.DayTimeLimit)

	armed := env.clock.lastArm(t)
	assert.Equal(t, 0, armed.day)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), armed.wakeAt, 5*time.Second)

	// Manual sync rooms have no timer at all.
	manual := env.createRoom(t, domain.ModeSync, 12, nil)
	env.start(t, manual.RoomCode)
	_, err = env.svc.SetTimer(ctx, manual.RoomCode, "teach", 120)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestLeaderboard_Ordering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoom(t, domain.ModeAsync, 12, nil)
	p1 := env.join(t, room.RoomCode, "first")
	p2 := env.join(t, room.RoomCode, "second")
	p3 := env.join(t, room.RoomCode, "third")

	setScore := func(id string, score int, pv float64) {
		p, err := env.players.Get(ctx, id)
		require.NoError(t, err)
		p.Score = score
		p.PortfolioValue = pv
		require.NoError(t, env.players.Update(ctx, p))
	}

	setScore(p1.PlayerID, 300, 10000)
	setScore(p2.PlayerID, 500, 10900)
	setScore(p3.PlayerID, 500, 11000)

	board, err := env.svc.Leaderboard(ctx, room.RoomCode)
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, []string{p3.PlayerID, p2.PlayerID, p1.PlayerID},
		[]string{board[0].PlayerID, board[1].PlayerID, board[2].PlayerID},
		"score first, portfolio value breaks the tie")
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 3, board[2].Rank)
}

func TestSingleDayGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room, err := env.svc.CreateRoom(ctx, CreateRoomRequest{
		CreatedBy: "teach",
		GameMode:  domain.ModeSync,
		Config: domain.GameConfig{
			InitialCash: 10000,
			NumDays:     1,
			Tickers:     []string{"AAPL"},
		},
		StartDate: stesting.FixtureStart,
	})
	require.NoError(t, err)

	p := env.join(t, room.RoomCode, "solo")
	env.start(t, room.RoomCode)

	// Day 0 is already the final day: the buy queues uncheckable and dies
	// at finish.
	_, err = env.svc.SubmitPlayerState(ctx, p.PlayerID, PlayerPatch{
		CurrentDay: 0,
		Trades:     []TradePatch{{Ticker: "AAPL", Action: domain.ActionBuy, Shares: 1, DaySubmitted: 0}},
	})
	require.NoError(t, err)

	finished, err := env.svc.AdvanceDay(ctx, room.RoomCode, "teach", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, finished.Status)

	final, err := env.svc.GetPlayer(ctx, p.PlayerID)
	require.NoError(t, err)
	assert.True(t, final.IsFinished)
	assert.Equal(t, 0, final.CurrentDay)
	assert.Len(t, final.PortfolioHistory, 1)
	require.Len(t, final.Trades, 1)
	assert.Equal(t, domain.TradeRejected, final.Trades[0].Status)
	assert.Equal(t, domain.ReasonGameNotActive, final.Trades[0].RejectReason)
}
