package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// tickRetryDelay is how long a failed auto-advance waits before retrying.
const tickRetryDelay = 30 * time.Second

// RoomAdvancer is the slice of the rooms service the clock needs. AutoTick
// carries the day the timer was armed for; the service drops stale ticks.
type RoomAdvancer interface {
	AutoTick(ctx context.Context, roomCode string, expectedDay int) error
}

// RoomLister lists the rooms whose timers survive a restart.
type RoomLister interface {
	InProgress(ctx context.Context) ([]domain.Room, error)
}

// RoomClock holds one pending wake-up per sync_auto room. Wake times are
// computed by the caller from the persisted day_started_at plus the limit,
// so a re-arm never accumulates drift and a restart picks up mid-countdown.
type RoomClock struct {
	svc RoomAdvancer
	log zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewRoomClock creates a room clock over the advancer.
func NewRoomClock(svc RoomAdvancer, log zerolog.Logger) *RoomClock {
	return &RoomClock{
		svc:    svc,
		log:    log.With().Str("component", "room_clock").Logger(),
		timers: make(map[string]*time.Timer),
	}
}

// Arm schedules (or reschedules) the room's wake-up. A wake time in the
// past fires immediately.
func (c *RoomClock) Arm(roomCode string, expectedDay int, wakeAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	if t, ok := c.timers[roomCode]; ok {
		t.Stop()
	}

	delay := time.Until(wakeAt)
	if delay < 0 {
		delay = 0
	}

	c.timers[roomCode] = time.AfterFunc(delay, func() {
		c.fire(roomCode, expectedDay)
	})

	c.log.Debug().
		Str("room_code", roomCode).
		Int("expected_day", expectedDay).
		Time("wake_at", wakeAt).
		Msg("Room timer armed")
}

// Cancel drops the room's pending wake-up, if any.
func (c *RoomClock) Cancel(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[roomCode]; ok {
		t.Stop()
		delete(c.timers, roomCode)
	}
}

// Rearm restores timers for every in-progress sync_auto room. Run once at
// startup; overdue rooms fire immediately.
func (c *RoomClock) Rearm(ctx context.Context, lister RoomLister) error {
	rooms, err := lister.InProgress(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, room := range rooms {
		if room.Mode != domain.ModeSyncAuto || room.DayTimeLimit == nil || room.DayStartedAt == nil {
			continue
		}
		wakeAt := room.DayStartedAt.Add(time.Duration(*room.DayTimeLimit) * time.Second)
		c.Arm(room.RoomCode, room.CurrentDay, wakeAt)
		restored++
	}

	if restored > 0 {
		c.log.Info().Int("rooms", restored).Msg("Room timers restored")
	}

	return nil
}

// TaskCount returns the number of armed timers.
func (c *RoomClock) TaskCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop cancels all timers and waits for in-flight ticks to finish.
func (c *RoomClock) Stop() {
	c.mu.Lock()
	c.stopped = true
	for code, t := range c.timers {
		t.Stop()
		delete(c.timers, code)
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.log.Info().Msg("Room clock stopped")
}

func (c *RoomClock) fire(roomCode string, expectedDay int) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.timers, roomCode)
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	if err := c.svc.AutoTick(context.Background(), roomCode, expectedDay); err != nil {
		c.log.Error().
			Err(err).
			Str("room_code", roomCode).
			Int("expected_day", expectedDay).
			Msg("Auto-advance failed, retrying")
		c.Arm(roomCode, expectedDay, time.Now().Add(tickRetryDelay))
	}
}
