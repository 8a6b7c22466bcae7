package testutil

import (
	"strings"
	"sync"

	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// MockCache implements cache.Store for testing. Entries never expire.
type MockCache struct {
	entries map[string]any
	gets    int
	sets    int
	mu      sync.RWMutex
}

// NewMockCache creates a new MockCache.
func NewMockCache() *MockCache {
	return &MockCache{
		entries: make(map[string]any),
	}
}

// Get retrieves a value from the cache.
func (m *MockCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	v, ok := m.entries[key]
	return v, ok
}

// Set stores a value in the cache.
func (m *MockCache) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sets++
	m.entries[key] = value
}

// Delete removes a single entry.
func (m *MockCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Clear removes keys containing pattern, or everything for an empty pattern.
func (m *MockCache) Clear(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k := range m.entries {
		if pattern == "" || strings.Contains(k, pattern) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Stats reports the entry count.
func (m *MockCache) Stats() cache.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return cache.Stats{TotalItems: len(m.entries)}
}

// Keys returns the stored keys.
func (m *MockCache) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Sets returns how many times Set was called.
func (m *MockCache) Sets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// MockTracker implements github.RateLimitTracker for testing.
type MockTracker struct {
	state  types.RateLimitState
	stores int
	mu     sync.Mutex
	known  bool
}

// NewMockTracker creates a tracker preloaded with state.
func NewMockTracker(state types.RateLimitState) *MockTracker {
	return &MockTracker{state: state, known: true}
}

// Load returns the tracked state.
func (m *MockTracker) Load() (types.RateLimitState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.known
}

// Store records state.
func (m *MockTracker) Store(state types.RateLimitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.known = true
	m.stores++
}

// Stores returns how many times Store was called.
func (m *MockTracker) Stores() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores
}
