// Package cache provides the time-boxed response cache used in front of API calls.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a cached response stays valid.
const DefaultTTL = 5 * time.Minute

// Entry holds a cached value and when it was stored.
type Entry struct {
	cachedAt time.Time
	value    any
}

// Cache provides thread-safe caching with a fixed TTL.
// Expired entries are dropped lazily when read; nothing is purged in the background.
type Cache struct {
	now     func() time.Time
	entries map[string]Entry
	mu      sync.RWMutex
	ttl     time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a new cache with the specified TTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a deterministic cache key from an endpoint name and ordered parameters.
func Key(endpoint string, params ...any) string {
	var b strings.Builder
	b.WriteString(endpoint)
	for _, p := range params {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// TTL returns the cache's entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get retrieves a value from cache if not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	if !exists {
		c.mu.RUnlock()
		return nil, false
	}

	if c.expired(entry) {
		c.mu.RUnlock()
		c.mu.Lock()
		// Double-check after lock upgrade; a writer may have refreshed the entry.
		if e, exists := c.entries[key]; exists && c.expired(e) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		slog.Debug("Cache entry expired", "component", "cache", "key", key)
		return nil, false
	}

	value := entry.value
	c.mu.RUnlock()
	return value, true
}

// Set stores a value in cache.
func (c *Cache) Set(key string, value any) {
	c.set(key, value, c.now())
}

func (c *Cache) set(key string, value any, cachedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		value:    value,
		cachedAt: cachedAt,
	}
}

// has reports whether key is held, expired or not.
func (c *Cache) has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every key containing pattern, or everything when pattern is empty.
// It returns the number of removed entries.
func (c *Cache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := len(c.entries)
		c.entries = make(map[string]Entry)
		slog.Info("Cache cleared", "component", "cache", "removed", n)
		return n
	}

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			removed++
		}
	}
	slog.Info("Cache entries cleared", "component", "cache", "pattern", pattern, "removed", removed)
	return removed
}

// Stats reports the number of entries, an approximate JSON size, and the age of the oldest entry.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	var size int
	var oldest time.Duration
	for key, entry := range c.entries {
		size += len(key)
		if b, err := json.Marshal(entry.value); err == nil {
			size += len(b)
		}
		if age := now.Sub(entry.cachedAt); age > oldest {
			oldest = age
		}
	}

	return Stats{
		TotalItems:       len(c.entries),
		ApproxSizeKB:     math.Round(float64(size)/1024*100) / 100,
		OldestAgeMinutes: math.Round(oldest.Minutes()*100) / 100,
	}
}

func (c *Cache) expired(e Entry) bool {
	return c.now().Sub(e.cachedAt) >= c.ttl
}
