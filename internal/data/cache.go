package data

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/glowback/glowback/internal/types"
)

// DefaultCacheEntries bounds the number of symbol/resolution pairs a
// cache retains before evicting.
const DefaultCacheEntries = 256

type cacheKey struct {
	symbol     types.Symbol
	resolution types.Resolution
}

// cacheEntry holds the loaded bars for one key behind its own lock, so
// concurrent lookups on different keys never contend.
type cacheEntry struct {
	mu           sync.RWMutex
	bars         []types.Bar
	start        time.Time
	end          time.Time
	lastAccessed time.Time
}

func (e *cacheEntry) coversRange(start, end time.Time) bool {
	return !e.start.After(start) && !e.end.Before(end)
}

func (e *cacheEntry) barsInRange(start, end time.Time) []types.Bar {
	var out []types.Bar
	for _, bar := range e.bars {
		if !bar.Timestamp.Before(start) && !bar.Timestamp.After(end) {
			out = append(out, bar)
		}
	}
	return out
}

// Cache wraps a Manager with an in-memory bar cache keyed by symbol
// and resolution. The outer map lock only guards entry lookup and
// insertion; reads and writes of cached bars take the entry's own
// lock.
type Cache struct {
	inner      Manager
	logger     *slog.Logger
	maxEntries int

	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry

	statsMu sync.Mutex
	hits    int64
	misses  int64
}

// NewCache wraps inner with a cache of at most maxEntries keys.
func NewCache(inner Manager, maxEntries int, logger *slog.Logger) *Cache {
	if maxEntries < 1 {
		maxEntries = DefaultCacheEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		inner:      inner,
		logger:     logger,
		maxEntries: maxEntries,
		entries:    make(map[cacheKey]*cacheEntry),
	}
}

// LoadBars serves from cache when the cached range covers the request,
// delegating to the inner manager otherwise and caching the result.
func (c *Cache) LoadBars(ctx context.Context, symbol types.Symbol, start, end time.Time, resolution types.Resolution) ([]types.Bar, error) {
	key := cacheKey{symbol: symbol, resolution: resolution}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		entry.mu.Lock()
		if entry.coversRange(start, end) {
			bars := entry.barsInRange(start, end)
			entry.lastAccessed = time.Now()
			entry.mu.Unlock()
			c.recordHit()
			return bars, nil
		}
		entry.mu.Unlock()
	}
	c.recordMiss()

	bars, err := c.inner.LoadBars(ctx, symbol, start, end, resolution)
	if err != nil {
		return nil, err
	}
	c.store(key, bars, start, end)
	return bars, nil
}

func (c *Cache) store(key cacheKey, bars []types.Bar, start, end time.Time) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	// The stored key must be marked fresh before eviction runs, or it
	// would be its own LRU victim.
	entry.mu.Lock()
	entry.lastAccessed = time.Now()
	entry.mu.Unlock()
	victims := c.evictLocked()
	c.mu.Unlock()

	entry.mu.Lock()
	entry.bars = append([]types.Bar(nil), bars...)
	entry.start = start
	entry.end = end
	entry.lastAccessed = time.Now()
	entry.mu.Unlock()

	if victims > 0 {
		c.logger.Debug("cache evicted entries", "count", victims)
	}
}

// evictLocked drops the least recently used keys while over capacity.
// Caller holds the map lock; only the removed entries are touched.
func (c *Cache) evictLocked() int {
	over := len(c.entries) - c.maxEntries
	if over <= 0 {
		return 0
	}

	type aged struct {
		key cacheKey
		at  time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		entry.mu.RLock()
		all = append(all, aged{key: key, at: entry.lastAccessed})
		entry.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	for i := 0; i < over; i++ {
		delete(c.entries, all[i].key)
	}
	return over
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
}

var _ Manager = (*Cache)(nil)
