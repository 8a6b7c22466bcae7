package dashboard

import "sync"

// DefaultSessionKey is used by callers that have a single view.
const DefaultSessionKey = "default"

// Session tracks the latest analysis per view. Every request takes a new
// generation; a result whose generation has been superseded is stale and is
// never published.
type Session struct {
	generations map[string]uint64
	latest      map[string]*Analysis
	mu          sync.Mutex
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		generations: make(map[string]uint64),
		latest:      make(map[string]*Analysis),
	}
}

// Begin starts a new generation for key and returns it.
func (s *Session) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	return s.generations[key]
}

// Apply publishes a as the latest result for key if its generation is still current.
// Otherwise a is marked stale and Apply reports false.
func (s *Session) Apply(key string, a *Analysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Generation != s.generations[key] {
		a.Stale = true
		return false
	}
	s.latest[key] = a
	return true
}

// Latest returns the most recent published analysis for key.
func (s *Session) Latest(key string) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.latest[key]
	return a, ok
}
