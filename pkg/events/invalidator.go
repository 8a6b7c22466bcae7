// Package events subscribes to pull request events and drops cached responses
// for pull requests that changed upstream.
//
//nolint:revive // Line length for logging
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/sprinkler/pkg/client"

	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/metrics"
)

const (
	eventChannelSize      = 100
	eventDedupWindow      = 5 * time.Second
	eventMapMaxSize       = 1000
	eventMapCleanupAge    = 1 * time.Hour
	connectionHealthCheck = 2 * time.Minute
	maxReconnectAttempts  = 100
	reconnectBackoff      = 30 * time.Second
	maxReconnectBackoff   = 5 * time.Minute
)

// TokenSource supplies a GitHub credential for the event service.
type TokenSource interface {
	Token(ctx context.Context, owner string) (string, error)
}

// Invalidator keeps a response cache coherent with pull request events for one organization.
type Invalidator struct {
	mu                sync.RWMutex
	lastConnectedAt   time.Time
	lastEventAt       time.Time
	store             cache.Store
	tokens            TokenSource
	client            *client.Client
	now               func() time.Time
	eventChan         chan string          // PR URLs awaiting invalidation
	lastEventMap      map[string]time.Time // last event per URL, for dedup
	stopChan          chan struct{} // recreated by every Start
	org               string
	reconnectAttempts int
	isRunning         bool
	isConnected       bool
	isStopped         bool
}

// New creates an invalidator for org that clears entries from store.
func New(org string, store cache.Store, tokens TokenSource) *Invalidator {
	return &Invalidator{
		org:          org,
		store:        store,
		tokens:       tokens,
		now:          time.Now,
		eventChan:    make(chan string, eventChannelSize),
		lastEventMap: make(map[string]time.Time),
	}
}

// Start connects to the event service and processes events until ctx is done or Stop is called.
//
//nolint:unparam // Error return kept for lifecycle symmetry with Stop
func (inv *Invalidator) Start(ctx context.Context) error {
	inv.mu.Lock()
	if inv.isRunning {
		inv.mu.Unlock()
		return nil
	}
	inv.isRunning = true
	inv.isStopped = false
	stop := make(chan struct{})
	inv.stopChan = stop
	inv.mu.Unlock()

	slog.Info("Starting cache invalidation from PR events", "component", "events", "org", inv.org)
	go inv.processEvents(ctx, stop)
	go inv.manageConnection(ctx, stop)
	go inv.monitorHealth(ctx, stop)
	return nil
}

// manageConnection restarts the event client whenever it gives up.
func (inv *Invalidator) manageConnection(ctx context.Context, stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Connection manager panic", "component", "events", "org", inv.org, "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		err := inv.connect(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}

		inv.mu.Lock()
		if err == nil {
			inv.reconnectAttempts = 0
		} else {
			inv.reconnectAttempts++
		}
		attempts := inv.reconnectAttempts
		inv.mu.Unlock()

		if attempts >= maxReconnectAttempts {
			slog.Error("Max reconnection attempts reached, event invalidation disabled", "component", "events", "org", inv.org, "attempts", attempts)
			return
		}

		backoff := min(reconnectBackoff*time.Duration(max(attempts, 1)), maxReconnectBackoff)
		slog.Warn("Event client stopped, restarting after backoff", "component", "events", "org", inv.org, "attempt", attempts, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(backoff):
		}
	}
}

// connect runs one event client until it exits.
// A fresh token is requested for every connection; installation tokens expire.
func (inv *Invalidator) connect(ctx context.Context) error {
	token, err := inv.tokens.Token(ctx, inv.org)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	config := client.Config{
		ServerURL:      "wss://" + client.DefaultServerAddress + "/ws",
		Organization:   inv.org,
		Token:          token,
		Logger:         slog.Default().With("component", "events"),
		EventTypes:     []string{"pull_request"},
		UserEventsOnly: false,
		Verbose:        false,
		NoReconnect:    false,
		OnConnect: func() {
			inv.mu.Lock()
			inv.isConnected = true
			inv.lastConnectedAt = inv.now()
			inv.mu.Unlock()
			slog.Info("Event stream connected", "component", "events", "org", inv.org)
		},
		OnDisconnect: func(err error) {
			inv.mu.Lock()
			wasConnected := inv.isConnected
			inv.isConnected = false
			inv.mu.Unlock()
			if err != nil && !errors.Is(err, context.Canceled) && wasConnected {
				slog.Warn("Event stream disconnected", "component", "events", "org", inv.org, "error", err)
			}
		},
		OnEvent: inv.handleEvent,
	}

	wsClient, err := client.New(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	inv.mu.Lock()
	if !inv.isRunning {
		inv.mu.Unlock()
		return context.Canceled
	}
	inv.client = wsClient
	inv.mu.Unlock()

	start := inv.now()
	if err := wsClient.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Event client stopped with error", "component", "events", "org", inv.org, "uptime", inv.now().Sub(start).Round(time.Second), "error", err)
		return err
	}
	return ctx.Err()
}

// monitorHealth logs connection state periodically.
func (inv *Invalidator) monitorHealth(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(connectionHealthCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			inv.mu.RLock()
			connected := inv.isConnected
			lastConnected := inv.lastConnectedAt
			inv.mu.RUnlock()

			switch {
			case connected:
				slog.Debug("Event stream healthy", "component", "events", "org", inv.org, "connected_for", inv.now().Sub(lastConnected).Round(time.Second))
			case lastConnected.IsZero():
				slog.Info("Event stream not yet connected", "component", "events", "org", inv.org)
			default:
				slog.Warn("Event stream disconnected", "component", "events", "org", inv.org, "disconnected_for", inv.now().Sub(lastConnected).Round(time.Second))
			}
		}
	}
}

// handleEvent filters, dedupes and queues a pull request event.
func (inv *Invalidator) handleEvent(event client.Event) {
	if event.Type != "pull_request" {
		return
	}
	if event.URL == "" {
		slog.Warn("Received PR event with empty URL", "component", "events")
		return
	}

	now := inv.now()
	inv.mu.Lock()
	if last, ok := inv.lastEventMap[event.URL]; ok && now.Sub(last) < eventDedupWindow {
		inv.mu.Unlock()
		return
	}
	inv.lastEventMap[event.URL] = now
	inv.lastEventAt = now
	if len(inv.lastEventMap) > eventMapMaxSize {
		cutoff := now.Add(-eventMapCleanupAge)
		for url, ts := range inv.lastEventMap {
			if ts.Before(cutoff) {
				delete(inv.lastEventMap, url)
			}
		}
	}
	inv.mu.Unlock()

	select {
	case inv.eventChan <- event.URL:
	default:
		slog.Warn("Event channel full, dropping event", "component", "events", "url", event.URL)
	}
}

func (inv *Invalidator) processEvents(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case prURL := <-inv.eventChan:
			inv.processEvent(prURL)
		}
	}
}

func (inv *Invalidator) processEvent(prURL string) {
	ref, ok := github.ExtractPRReference(prURL)
	if !ok {
		slog.Warn("Failed to parse PR URL", "component", "events", "url", prURL)
		return
	}
	if ref.Owner != inv.org {
		slog.Debug("Ignoring event for different org", "component", "events", "event_org", ref.Owner, "org", inv.org)
		return
	}
	removed := Invalidate(inv.store, ref)
	slog.Info("Invalidated cached PR data", "component", "events", "owner", ref.Owner, "repo", ref.Repo, "pr", ref.Number, "removed", removed)
}

// Invalidate removes every cached response describing the pull request ref:
// its detail, its file pages, and the pull request lists of its repository.
// It returns the number of entries removed by pattern; the detail entry is deleted by key.
func Invalidate(store cache.Store, ref github.PRReference) int {
	metrics.CacheInvalidations.Inc()
	store.Delete(cache.Key("pull", ref.Owner, ref.Repo, ref.Number))
	removed := store.Clear(cache.Key("files", ref.Owner, ref.Repo, ref.Number) + ":")
	removed += store.Clear(cache.Key("pulls", ref.Owner, ref.Repo) + ":")
	return removed
}

// Stop disconnects from the event service.
func (inv *Invalidator) Stop() {
	inv.mu.Lock()
	if !inv.isRunning {
		inv.mu.Unlock()
		return
	}
	inv.isRunning = false
	inv.isStopped = true
	wsClient := inv.client
	inv.client = nil
	stop := inv.stopChan
	inv.stopChan = nil
	inv.mu.Unlock()

	close(stop)
	if wsClient != nil {
		wsClient.Stop()
	}
	slog.Info("Event invalidation stopped", "component", "events", "org", inv.org)
}

// HealthStatus reports connection state for the health endpoint.
func (inv *Invalidator) HealthStatus() map[string]any {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	status := map[string]any{
		"org":                inv.org,
		"is_running":         inv.isRunning,
		"is_connected":       inv.isConnected,
		"reconnect_attempts": inv.reconnectAttempts,
	}
	if !inv.lastConnectedAt.IsZero() {
		status["last_connected_at"] = inv.lastConnectedAt
	}
	if !inv.lastEventAt.IsZero() {
		status["last_event_at"] = inv.lastEventAt
	}
	return status
}
