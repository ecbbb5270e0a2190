package routing

import (
	"fmt"
	"sync"
)

// Cache memoizes successful duration lookups by coordinate pair. The same
// pairs recur across the leg, company and cross-tour checks of one audit run,
// so a process-lifetime map saves most of the network round trips. Failed
// lookups are not cached; a flaky routing service gets retried the next time
// the pair comes up.
type Cache struct {
	upstream DurationService

	mu      sync.Mutex
	entries map[string]int64
}

// NewCache wraps a DurationService with a coordinate-pair memo
func NewCache(upstream DurationService) *Cache {
	return &Cache{
		upstream: upstream,
		entries:  make(map[string]int64),
	}
}

// OneToMany returns the cached duration for the pair, or asks the upstream
// service and remembers the answer. Safe for concurrent use.
func (c *Cache) OneToMany(fromLat, fromLng, toLat, toLng float64) (int64, error) {
	key := cacheKey(fromLat, fromLng, toLat, toLng)

	c.mu.Lock()
	if duration, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return duration, nil
	}
	c.mu.Unlock()

	duration, err := c.upstream.OneToMany(fromLat, fromLng, toLat, toLng)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[key] = duration
	c.mu.Unlock()

	return duration, nil
}

// Size returns the number of cached pairs, mostly for run statistics
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey rounds coordinates to ~0.1m precision so float noise from
// different sources of the same stop still hits the same entry
func cacheKey(fromLat, fromLng, toLat, toLng float64) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", fromLat, fromLng, toLat, toLng)
}
