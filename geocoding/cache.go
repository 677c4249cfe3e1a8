package geocoding

import (
	"sync"
	"time"

	"github.com/muelltonne/muellbot/model"
)

type (
	entry struct {
		key     model.LocationKey
		err     error // non-nil for negative entries
		expires time.Time
	}

	// cache is the in-memory resolution cache. Parallel subscriber
	// workers read and insert concurrently during a run.
	cache struct {
		mu      sync.RWMutex
		entries map[string]entry
	}
)

func newCache() *cache {
	return &cache{
		entries: make(map[string]entry),
	}
}

func (c *cache) get(canonical string, now time.Time) (entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[canonical]
	c.mu.RUnlock()

	if !ok {
		return entry{}, false
	}
	if now.After(e.expires) {
		c.mu.Lock()
		// Re-check under the write lock, another worker may have
		// refreshed the entry in the meantime.
		if e2, ok := c.entries[canonical]; ok && now.After(e2.expires) {
			delete(c.entries, canonical)
		}
		c.mu.Unlock()
		return entry{}, false
	}
	return e, true
}

func (c *cache) put(canonical string, key model.LocationKey, expires time.Time) {
	c.mu.Lock()
	c.entries[canonical] = entry{key: key, expires: expires}
	c.mu.Unlock()
}

func (c *cache) putNegative(canonical string, err error, expires time.Time) {
	c.mu.Lock()
	c.entries[canonical] = entry{err: err, expires: expires}
	c.mu.Unlock()
}
