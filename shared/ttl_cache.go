package shared

import (
	"sync"
	"time"
)

// TTLCache is a generic in-process cache with per-entry expiry and hit/miss
// accounting. Entries are stored and returned by value; callers never hold a
// reference into the cache. Instances are constructed explicitly and torn
// down with Stop, there is no package-level singleton.
type TTLCache[T any] struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry[T]
	defaultTTL time.Duration

	statsMu       sync.Mutex
	totalRequests int64
	hits          int64
	misses        int64

	janitorStop chan struct{}
	janitorOnce sync.Once
}

type cacheEntry[T any] struct {
	value     T
	createdAt time.Time
	ttl       time.Duration
}

func (e cacheEntry[T]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

type CacheStats struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRate       float64 `json:"hit_rate"`
}

type CacheSize struct {
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	ExpiredEntries int `json:"expired_entries"`
}

// NewTTLCache creates a cache with the given default TTL. Pass a janitor
// interval > 0 to schedule a background sweep; Cleanup can always be called
// explicitly regardless.
func NewTTLCache[T any](defaultTTL, janitorInterval time.Duration) *TTLCache[T] {
	c := &TTLCache[T]{
		entries:     make(map[string]cacheEntry[T]),
		defaultTTL:  defaultTTL,
		janitorStop: make(chan struct{}),
	}

	if janitorInterval > 0 {
		go c.janitor(janitorInterval)
	}

	return c
}

// Get returns the cached value for key. An expired entry is removed and
// counted as a miss; stale data is never returned.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss()
		return zero, false
	}

	if entry.expired(now) {
		c.mu.Lock()
		// Re-check under the write lock, a concurrent Set may have replaced it.
		if current, still := c.entries[key]; still && current.expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.recordMiss()
		return zero, false
	}

	c.recordHit()
	return entry.value, true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *TTLCache[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry[T]{
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	}
	c.mu.Unlock()
}

// Has reports whether key holds an unexpired entry. It does not touch the
// hit/miss counters.
func (c *TTLCache[T]) Has(key string) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	return ok && !entry.expired(time.Now())
}

func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry and resets the statistics counters.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry[T])
	c.mu.Unlock()

	c.statsMu.Lock()
	c.totalRequests = 0
	c.hits = 0
	c.misses = 0
	c.statsMu.Unlock()
}

// ForceRefresh invalidates all entries but keeps the statistics counters,
// used when the backing data changed out from under the cache.
func (c *TTLCache[T]) ForceRefresh() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry[T])
	c.mu.Unlock()
}

// Cleanup evicts every expired entry. It is safe to call at any time and
// from the janitor; calling it twice in a row is a no-op.
func (c *TTLCache[T]) Cleanup() int {
	now := time.Now()
	removed := 0

	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	return removed
}

// Items returns a snapshot of all unexpired entries. Like Has, it does not
// touch the hit/miss counters.
func (c *TTLCache[T]) Items() map[string]T {
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	items := make(map[string]T, len(c.entries))
	for key, entry := range c.entries {
		if !entry.expired(now) {
			items[key] = entry.value
		}
	}
	return items
}

// Keys returns the keys of all unexpired entries.
func (c *TTLCache[T]) Keys() []string {
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key, entry := range c.entries {
		if !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// GetStats returns the monotonic request counters. HitRate is recomputed
// from the raw counters on every call.
func (c *TTLCache[T]) GetStats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	stats := CacheStats{
		TotalRequests: c.totalRequests,
		CacheHits:     c.hits,
		CacheMisses:   c.misses,
	}
	if stats.TotalRequests > 0 {
		stats.HitRate = float64(stats.CacheHits) / float64(stats.TotalRequests)
	}
	return stats
}

func (c *TTLCache[T]) GetCacheSize() CacheSize {
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	size := CacheSize{TotalEntries: len(c.entries)}
	for _, entry := range c.entries {
		if entry.expired(now) {
			size.ExpiredEntries++
		} else {
			size.ValidEntries++
		}
	}
	return size
}

// Stop halts the background janitor, if one was scheduled.
func (c *TTLCache[T]) Stop() {
	c.janitorOnce.Do(func() {
		close(c.janitorStop)
	})
}

func (c *TTLCache[T]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.janitorStop:
			return
		}
	}
}

func (c *TTLCache[T]) recordHit() {
	c.statsMu.Lock()
	c.totalRequests++
	c.hits++
	c.statsMu.Unlock()
}

func (c *TTLCache[T]) recordMiss() {
	c.statsMu.Lock()
	c.totalRequests++
	c.misses++
	c.statsMu.Unlock()
}
