package routing

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// routeCache holds directions keyed by profile and grid-snapped endpoints.
// An entry is fresh for ttl after it was fetched and may be served stale
// until staleFor has passed; after that the sweeper drops it.
type routeCache struct {
	ttl        time.Duration
	staleFor   time.Duration
	grid       float64
	sweepEvery time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	entries   map[string]cacheEntry
	lastSweep time.Time
}

type cacheEntry struct {
	resp      *DirectionsResponse
	fetchedAt time.Time
}

func newRouteCache(ttl, staleFor, sweepEvery time.Duration, grid float64) *routeCache {
	return &routeCache{
		ttl:        ttl,
		staleFor:   staleFor,
		grid:       grid,
		sweepEvery: sweepEvery,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// key renders "{profile}:{lat},{lng}:{lat},{lng}" where each coordinate is
// replaced by the index of its grid cell, so any grid size keys distinctly.
func (c *routeCache) key(req DirectionsRequest) string {
	snap := func(v float64) int64 { return int64(math.Floor(v / c.grid)) }
	return fmt.Sprintf("%s:%d,%d:%d,%d", req.Profile,
		snap(req.Origin.Lat), snap(req.Origin.Lng),
		snap(req.Destination.Lat), snap(req.Destination.Lng))
}

func (c *routeCache) fresh(key string) (*DirectionsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.fetchedAt.Add(c.ttl)) {
		return nil, false
	}
	return e.resp, true
}

// stale returns an entry that is past ttl but still inside the stale window.
func (c *routeCache) stale(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.fetchedAt.Add(c.staleFor)) {
		return cacheEntry{}, false
	}
	return e, true
}

// put stores resp and sweeps at most once per sweepEvery. It returns the
// number of entries swept.
func (c *routeCache) put(key string, resp *DirectionsResponse) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cacheEntry{resp: resp, fetchedAt: now}

	if now.Sub(c.lastSweep) < c.sweepEvery {
		return 0
	}
	c.lastSweep = now
	swept := 0
	for k, e := range c.entries {
		if !now.Before(e.fetchedAt.Add(c.staleFor)) {
			delete(c.entries, k)
			swept++
		}
	}
	return swept
}

func (c *routeCache) reset() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *routeCache) stats() (total, fresh, stale int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	for _, e := range c.entries {
		switch {
		case now.Before(e.fetchedAt.Add(c.ttl)):
			fresh++
		case now.Before(e.fetchedAt.Add(c.staleFor)):
			stale++
		}
	}
	return len(c.entries), fresh, stale
}
