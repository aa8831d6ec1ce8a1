package router

import (
	"strings"
	"sync"
	"time"
)

type cacheKey struct {
	query  string
	intent string
}

// Cache memoises decisions by (normalized query, intent). Expired entries
// are dropped when looked up, never in the background.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[cacheKey]Decision
}

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{ttl: ttl, entries: make(map[cacheKey]Decision)}
}

func newCacheKey(query, intent string) cacheKey {
	return cacheKey{query: strings.ToLower(strings.Join(strings.Fields(query), " ")), intent: intent}
}

// Get returns the cached decision if it is younger than the TTL at now.
func (c *Cache) Get(query, intent string, now time.Time) (Decision, bool) {
	key := newCacheKey(query, intent)

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.entries[key]
	if !ok {
		return Decision{}, false
	}
	if now.Sub(d.CreatedAt) >= c.ttl {
		delete(c.entries, key)
		return Decision{}, false
	}
	return d.clone(), true
}

// Put stores d, replacing any earlier entry.
func (c *Cache) Put(query, intent string, d Decision) {
	key := newCacheKey(query, intent)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = d.clone()
}

// Len counts entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry and returns how many there were.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[cacheKey]Decision)
	return n
}
