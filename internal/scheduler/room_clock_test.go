package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockroom/internal/domain"
)

type tickCall struct {
	roomCode    string
	expectedDay int
}

type fakeAdvancer struct {
	ch chan tickCall
}

func newFakeAdvancer() *fakeAdvancer {
	return &fakeAdvancer{ch: make(chan tickCall, 16)}
}

func (f *fakeAdvancer) AutoTick(_ context.Context, roomCode string, expectedDay int) error {
	f.ch <- tickCall{roomCode, expectedDay}
	return nil
}

func (f *fakeAdvancer) wait(t *testing.T) tickCall {
	t.Helper()
	select {
	case call := <-f.ch:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for an auto-tick")
		return tickCall{}
	}
}

func (f *fakeAdvancer) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case call := <-f.ch:
		t.Fatalf("Unexpected auto-tick for %s day %d", call.roomCode, call.expectedDay)
	case <-time.After(d):
	}
}

type fakeLister struct {
	rooms []domain.Room
}

func (f *fakeLister) InProgress(context.Context) ([]domain.Room, error) {
	return f.rooms, nil
}

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestRoomClock_ArmFires(t *testing.T) {
	adv := newFakeAdvancer()
	clock := NewRoomClock(adv, testLog())
	defer clock.Stop()

	clock.Arm("ROOM01", 3, time.Now().Add(10*time.Millisecond))

	call := adv.wait(t)
	assert.Equal(t, "ROOM01", call.roomCode)
	assert.Equal(t, 3, call.expectedDay)
	assert.Equal(t, 0, clock.TaskCount(), "fired timer is gone")
}

func TestRoomClock_PastWakeFiresImmediately(t *testing.T) {
	adv := newFakeAdvancer()
	clock := NewRoomClock(adv, testLog())
	defer clock.Stop()

	clock.Arm("ROOM01", 0, time.Now().Add(-time.Hour))

	call := adv.wait(t)
	assert.Equal(t, 0, call.expectedDay)
}

func TestRoomClock_CancelPreventsFire(t *testing.T) {
	adv := newFakeAdvancer()
	clock := NewRoomClock(adv, testLog())
	defer clock.Stop()

	clock.Arm("ROOM01", 0, time.Now().Add(50*time.Millisecond))
	clock.Cancel("ROOM01")

	adv.expectSilence(t, 200*time.Millisecond)
	assert.Equal(t, 0, clock.TaskCount())
}

func TestRoomClock_RearmReplacesTimer(t *testing.T) {
	adv := newFakeAdvancer()
	clock := NewRoomClock(adv, testLog())
	defer clock.Stop()

	clock.Arm("ROOM01", 1, time.Now().Add(time.Hour))
	clock.Arm("ROOM01", 2, time.Now().Add(10*time.Millisecond))
	assert.Equal(t, 1, clock.TaskCount(), "one timer per room")

	call := adv.wait(t)
	assert.Equal(t, 2, call.expectedDay, "the replacement timer fired")
	adv.expectSilence(t, 100*time.Millisecond)
}

func TestRoomClock_RearmScanRestoresSyncAutoRooms(t *testing.T) {
	adv := newFakeAdvancer()
	clock := NewRoomClock(adv, testLog())
	defer clock.Stop()

	limit := 60
	started := time.Now().Add(-2 * time.Minute).UTC()
	lister := &fakeLister{rooms: []domain.Room{
		{
			RoomCode:     "TIMED1",
			Mode:         domain.ModeSyncAuto,
			Status:       domain.StatusInProgress,
			CurrentDay:   4,
			DayTimeLimit: &limit,
			DayStartedAt: &started,
		},
		{
			// Async rooms have no timers.
			RoomCode:   "FREE01",
			Mode:       domain.ModeAsync,
			Status:     domain.StatusInProgress,
			CurrentDay: 1,
		},
	}}

	require.NoError(t, clock.Rearm(context.Background(), lister))

	// The timed room is overdue, so it fires straight away.
	call := adv.wait(t)
	assert.Equal(t, "TIMED1", call.roomCode)
	assert.Equal(t, 4, call.expectedDay)
	adv.expectSilence(t, 100*time.Millisecond)
}

func TestRoomClock_StopDropsTimers(t *testing.T) {
	adv := newFakeAdvancer()
	clock := NewRoomClock(adv, testLog())

	clock.Arm("ROOM01", 0, time.Now().Add(time.Hour))
	clock.Arm("ROOM02", 0, time.Now().Add(time.Hour))
	assert.Equal(t, 2, clock.TaskCount())

	clock.Stop()
	assert.Equal(t, 0, clock.TaskCount())

	// Arming after stop is a no-op.
	clock.Arm("ROOM03", 0, time.Now().Add(10*time.Millisecond))
	adv.expectSilence(t, 100*time.Millisecond)
}
