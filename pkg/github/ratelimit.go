package github

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

const (
	// rateLimitRefreshInterval is how long a known quota is trusted without probing.
	rateLimitRefreshInterval = 2 * time.Minute
	// rateLimitThreshold is the remaining count at or below which requests are refused.
	rateLimitThreshold = 1
)

// MemoryTracker is a RateLimitTracker held in memory.
type MemoryTracker struct {
	state types.RateLimitState
	mu    sync.RWMutex
	known bool
}

// Load returns the last stored state, if any.
func (t *MemoryTracker) Load() (types.RateLimitState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.known
}

// Store replaces the tracked state.
func (t *MemoryTracker) Store(state types.RateLimitState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.known = true
}

// Decision is the outcome of a guard check.
type Decision struct {
	RateLimit   *types.RateLimitState
	CanProceed  bool
	WaitMinutes int
}

// Guard refuses hosting requests locally when the quota is exhausted.
type Guard struct {
	tracker RateLimitTracker
	probe   func(ctx context.Context) (types.RateLimitState, error)
	clock   TimeProvider
	probeMu sync.Mutex // one live probe at a time
}

// NewGuard creates a guard over tracker; probe fetches the live quota.
func NewGuard(tracker RateLimitTracker, probe func(ctx context.Context) (types.RateLimitState, error), clock TimeProvider) *Guard {
	if clock == nil {
		clock = systemClock{}
	}
	return &Guard{tracker: tracker, probe: probe, clock: clock}
}

// Check decides whether a request may be sent now.
// A state checked within the refresh interval is trusted unless it is exhausted
// and its reset has passed; otherwise the live quota is probed. Probe failures fail open.
// Concurrent callers share a single probe.
func (g *Guard) Check(ctx context.Context) Decision {
	now := g.clock.Now()
	if state, ok := g.tracker.Load(); ok && now.Sub(state.LastCheckedAt) < rateLimitRefreshInterval {
		d := evaluate(state, now)
		if !d.CanProceed || state.Remaining > rateLimitThreshold {
			return d
		}
	}

	g.probeMu.Lock()
	defer g.probeMu.Unlock()

	// Another caller may have refreshed the state while this one waited.
	if state, ok := g.tracker.Load(); ok && !state.LastCheckedAt.Before(now) {
		return evaluate(state, now)
	}

	state, err := g.probe(ctx)
	if err != nil {
		slog.Warn("Rate limit probe failed, proceeding", "component", "ratelimit", "error", err)
		return Decision{CanProceed: true}
	}
	state.LastCheckedAt = now
	g.tracker.Store(state)
	slog.Debug("Rate limit refreshed", "component", "ratelimit", "remaining", state.Remaining, "limit", state.Limit, "reset", state.ResetAt())
	return evaluate(state, now)
}

func evaluate(state types.RateLimitState, now time.Time) Decision {
	if state.Remaining <= rateLimitThreshold && now.Before(state.ResetAt()) {
		return Decision{
			CanProceed:  false,
			RateLimit:   &state,
			WaitMinutes: waitMinutes(state, now.Unix()),
		}
	}
	return Decision{CanProceed: true, RateLimit: &state}
}

// probeRateLimit fetches GET /rate_limit without touching the cache or the guard.
func (c *Client) probeRateLimit(ctx context.Context) (types.RateLimitState, error) {
	authz, err := c.authorization(ctx, "", "")
	if err != nil {
		return types.RateLimitState{}, err
	}
	resp, err := c.send(ctx, http.MethodGet, c.baseURL+"/rate_limit", authz, nil)
	if err != nil {
		return types.RateLimitState{}, err
	}
	if resp.status != http.StatusOK {
		return types.RateLimitState{}, c.statusError(resp)
	}

	var payload struct {
		Rate struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Used      int   `json:"used"`
			Reset     int64 `json:"reset"`
		} `json:"rate"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return types.RateLimitState{}, &types.Error{Kind: types.KindUpstream, Message: "unexpected rate limit response", Err: err}
	}
	return types.RateLimitState{
		Limit:             payload.Rate.Limit,
		Remaining:         payload.Rate.Remaining,
		Used:              payload.Rate.Used,
		ResetEpochSeconds: payload.Rate.Reset,
	}, nil
}

// RateLimit probes the live quota and records it.
func (c *Client) RateLimit(ctx context.Context) (types.RateLimitState, error) {
	state, err := c.probeRateLimit(ctx)
	if err != nil {
		return types.RateLimitState{}, err
	}
	state.LastCheckedAt = c.clock.Now()
	c.tracker.Store(state)
	return state, nil
}
