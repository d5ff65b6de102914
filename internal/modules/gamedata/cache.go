package gamedata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/stockroom/internal/domain"
)

// Cache memoizes built slices as msgpack bytes keyed by the resolved
// (tickers, num_days, start_date) triple. Storing bytes rather than structs
// is what makes the determinism contract checkable: every hit decodes the
// same bytes, and callers get independent copies they cannot corrupt for
// each other.
type Cache struct {
	builder *Builder
	group   singleflight.Group
	log     zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	data     []byte
	lastUsed time.Time
}

// NewCache creates a slice cache over the builder.
func NewCache(builder *Builder, log zerolog.Logger) *Cache {
	return &Cache{
		builder: builder,
		entries: make(map[string]*cacheEntry),
		log:     log.With().Str("service", "gamedata_cache").Logger(),
	}
}

// Get returns the slice for a normalized config, building it on first use.
// Concurrent requests for the same resolved key coalesce into a single
// build; every caller receives its own decoded copy.
func (c *Cache) Get(ctx context.Context, cfg domain.GameConfig) (*Slice, error) {
	startDate, endDate, err := c.builder.ResolveWindow(ctx, cfg)
	if err != nil {
		return nil, err
	}

	key := CacheKey(cfg.Tickers, cfg.NumDays, startDate)

	if data, ok := c.lookup(key); ok {
		return decodeSlice(data)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent build may have landed while this call waited.
		if data, ok := c.lookup(key); ok {
			return data, nil
		}

		slice, err := c.builder.Build(ctx, cfg, startDate, endDate)
		if err != nil {
			return nil, err
		}

		data, err := msgpack.Marshal(slice)
		if err != nil {
			return nil, domain.Wrap(err, domain.KindInternal, "failed to encode slice %s", key)
		}

		c.store(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return decodeSlice(v.([]byte))
}

// Bytes returns the raw encoded slice for a key when cached. Used by tests
// asserting byte-identical rebuilds.
func (c *Cache) Bytes(key string) ([]byte, bool) {
	return c.lookup(key)
}

// Len returns the number of cached slices.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops entries idle longer than maxIdle and reports how many went.
func (c *Cache) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, e := range c.entries {
		if e.lastUsed.Before(cutoff) {
			delete(c.entries, key)
			dropped++
		}
	}

	if dropped > 0 {
		c.log.Info().Int("dropped", dropped).Int("kept", len(c.entries)).Msg("Slice cache pruned")
	}

	return dropped
}

func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	e.lastUsed = time.Now()
	c.mu.Unlock()

	return e.data, true
}

func (c *Cache) store(key string, data []byte) {
	c.mu.Lock()
	c.entries[key] = &cacheEntry{data: data, lastUsed: time.Now()}
	c.mu.Unlock()
}

func decodeSlice(data []byte) (*Slice, error) {
	var slice Slice
	if err := msgpack.Unmarshal(data, &slice); err != nil {
		return nil, domain.Wrap(err, domain.KindInternal, "failed to decode cached slice")
	}
	return &slice, nil
}
