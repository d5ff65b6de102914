package gamedata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stesting "github.com/aristath/stockroom/internal/testing"
)

func newFixtureCache(t *testing.T) *Cache {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewCache(newFixtureBuilder(t), log)
}

func TestCache_HitReturnsEqualSlice(t *testing.T) {
	c := newFixtureCache(t)

	cfg := fixtureConfig(12)
	cfg.StartDate = stesting.FixtureStart
	require.NoError(t, cfg.Normalize())

	first, err := c.Get(context.Background(), cfg)
	require.NoError(t, err)
	second, err := c.Get(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, first, second)

	// Callers hold independent copies; mutating one never leaks.
	first.Days[0].IsTradingDay = !first.Days[0].IsTradingDay
	third, err := c.Get(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, second.Days[0].IsTradingDay, third.Days[0].IsTradingDay)
}

func TestCache_ConcurrentGetsBuildOnce(t *testing.T) {
	c := newFixtureCache(t)

	cfg := fixtureConfig(12)
	cfg.StartDate = stesting.FixtureStart
	require.NoError(t, cfg.Normalize())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), cfg)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
}

func TestCache_PruneDropsIdleEntries(t *testing.T) {
	c := newFixtureCache(t)

	cfg := fixtureConfig(12)
	cfg.StartDate = stesting.FixtureStart
	require.NoError(t, cfg.Normalize())

	_, err := c.Get(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	assert.Equal(t, 0, c.Prune(time.Hour))
	assert.Equal(t, 1, c.Prune(0))
	assert.Equal(t, 0, c.Len())
}
