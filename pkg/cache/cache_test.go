package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestNew(t *testing.T) {
	c := New(time.Hour)

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.ttl != time.Hour {
		t.Errorf("expected TTL %v, got %v", time.Hour, c.ttl)
	}
	if c.entries == nil {
		t.Error("entries map not initialized")
	}
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(0)
	if c.TTL() != DefaultTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultTTL, c.TTL())
	}
}

func TestCache_SetAndGet(t *testing.T) {
	c := New(time.Hour)

	c.Set("key1", "value1")
	val, found := c.Get("key1")
	if !found {
		t.Fatal("expected to find key1")
	}
	if val != "value1" {
		t.Errorf("expected value1, got %v", val)
	}

	val, found = c.Get("nonexistent")
	if found {
		t.Error("expected key not to be found")
	}
	if val != nil {
		t.Errorf("expected nil value, got %v", val)
	}
}

func TestCache_SameKeyWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(5*time.Minute, WithClock(clock.Now))

	data := []byte(`{"number":3}`)
	c.Set(Key("pull", "owner", "repo", 3), data)

	clock.Advance(4 * time.Minute)
	first, ok1 := c.Get(Key("pull", "owner", "repo", 3))
	second, ok2 := c.Get(Key("pull", "owner", "repo", 3))
	if !ok1 || !ok2 {
		t.Fatal("expected both reads to hit within TTL")
	}
	if string(first.([]byte)) != string(second.([]byte)) {
		t.Errorf("reads differ: %s vs %s", first, second)
	}
}

func TestCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := New(5*time.Minute, WithClock(clock.Now))

	c.Set("key1", "value1")
	clock.Advance(5 * time.Minute)

	val, found := c.Get("key1")
	if found {
		t.Error("expected key1 to be expired")
	}
	if val != nil {
		t.Errorf("expected nil value for expired key, got %v", val)
	}
}

func TestCache_SetRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	c := New(5*time.Minute, WithClock(clock.Now))

	c.Set("key1", "v1")
	clock.Advance(4 * time.Minute)
	c.Set("key1", "v2")
	clock.Advance(4 * time.Minute)

	val, found := c.Get("key1")
	if !found || val != "v2" {
		t.Errorf("expected refreshed v2, got %v (found=%v)", val, found)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		params   []any
		want     string
	}{
		{"no params", "rate_limit", nil, "rate_limit"},
		{"strings", "repo", []any{"owner", "repo"}, "repo:owner:repo"},
		{"mixed", "pulls", []any{"owner", "repo", "open", 30}, "pulls:owner:repo:open:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.endpoint, tt.params...); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(time.Hour)
	c.Set("pull:acme:api:1", 1)
	c.Set("pull:acme:api:2", 2)
	c.Set("repo:acme:web", 3)

	if n := c.Clear("acme:api"); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if _, found := c.Get("repo:acme:web"); !found {
		t.Error("expected unrelated key to survive pattern clear")
	}

	if n := c.Clear(""); n != 1 {
		t.Errorf("expected 1 removed by full clear, got %d", n)
	}
	if c.Stats().TotalItems != 0 {
		t.Error("expected empty cache after full clear")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Hour)
	c.Set("pull:acme:api:5", 1)
	c.Set("pull:acme:api:50", 2)

	c.Delete("pull:acme:api:5")

	if _, found := c.Get("pull:acme:api:5"); found {
		t.Error("expected deleted key to be gone")
	}
	if _, found := c.Get("pull:acme:api:50"); !found {
		t.Error("expected key sharing a prefix to survive")
	}
}

func TestCache_Stats(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, WithClock(clock.Now))

	if s := c.Stats(); s.TotalItems != 0 || s.ApproxSizeKB != 0 || s.OldestAgeMinutes != 0 {
		t.Errorf("expected zero stats for empty cache, got %+v", s)
	}

	c.Set("a", map[string]int{"x": 1})
	clock.Advance(3 * time.Minute)
	c.Set("b", "value")

	s := c.Stats()
	if s.TotalItems != 2 {
		t.Errorf("expected 2 items, got %d", s.TotalItems)
	}
	if s.ApproxSizeKB <= 0 {
		t.Errorf("expected positive size, got %v", s.ApproxSizeKB)
	}
	if s.OldestAgeMinutes != 3 {
		t.Errorf("expected oldest age 3 minutes, got %v", s.OldestAgeMinutes)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(time.Hour)
	const goroutines = 50
	const operations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines * 3)

	for i := range goroutines {
		go func(id int) {
			defer wg.Done()
			for j := range operations {
				c.Set(Key("k", id%10), id*operations+j)
			}
		}(i)
	}

	for i := range goroutines {
		go func(id int) {
			defer wg.Done()
			for range operations {
				c.Get(Key("k", id%10))
			}
		}(i)
	}

	for range goroutines {
		go func() {
			defer wg.Done()
			for range operations {
				c.Stats()
				c.Clear("k:1")
			}
		}()
	}

	wg.Wait()
}
