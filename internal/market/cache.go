package market

import (
	"sync"
	"time"
)

// cacheEntry holds one cached value with its expiry
type cacheEntry struct {
	value   interface{}
	expires time.Time
}

// ttlCache is a small process-wide TTL cache. Concurrent reads and
// writes are safe; expired entries are dropped on read.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *ttlCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

// getStale returns the value even past its expiry. Used as a degraded
// fallback when a refresh fails.
func (c *ttlCache) getStale(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return entry.value, true
}

func (c *ttlCache) set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
