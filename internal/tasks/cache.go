package tasks

import (
	"sync"
	"time"

	"github.com/ketchalegend/vibeflow/internal/models"
)

// BuildFunc produces a fresh snapshot on cache miss.
type BuildFunc func() (*models.StatsBundle, error)

type cacheEntry struct {
	bundle    *models.StatsBundle
	expiresAt time.Time
}

// flight is one in-progress build other callers of the same key wait on.
type flight struct {
	done   chan struct{}
	bundle *models.StatsBundle
	err    error
}

// StatsCache holds built snapshots per (user email, time range) for a fixed
// freshness window. Concurrent misses on the same key share one build; a
// failed build is not cached, so the next caller retries.
type StatsCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[string]cacheEntry
	inflight map[string]*flight
	now      func() time.Time
}

// NewStatsCache creates a cache with the given freshness window.
func NewStatsCache(ttl time.Duration) *StatsCache {
	return &StatsCache{
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
		inflight: make(map[string]*flight),
		now:      time.Now,
	}
}

// SetNowFunc overrides the cache clock. Used by tests.
func (c *StatsCache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func cacheKey(email, timeRange string) string {
	return email + "|" + timeRange
}

// Get returns the cached snapshot for the key, building one via build on a
// miss or an expired entry. Two users, or one user across two time ranges,
// never share an entry.
func (c *StatsCache) Get(email, timeRange string, build BuildFunc) (*models.StatsBundle, error) {
	key := cacheKey(email, timeRange)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.bundle, nil
	}

	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-fl.done
		return fl.bundle, fl.err
	}

	fl := &flight{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	fl.bundle, fl.err = build()

	c.mu.Lock()
	delete(c.inflight, key)
	if fl.err == nil {
		c.entries[key] = cacheEntry{bundle: fl.bundle, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()

	close(fl.done)
	return fl.bundle, fl.err
}

// Invalidate drops the cached snapshot for the key, if any.
func (c *StatsCache) Invalidate(email, timeRange string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(email, timeRange))
}
