// Package github provides the GitHub REST client used by the dashboard.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
	"github.com/codeGROOVE-dev/riskboard/pkg/metrics"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "riskboard/1.0"
	acceptHeader       = "application/vnd.github.v3+json"
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	maxResponseBytes   = 10 << 20
)

// Client handles all GitHub API interactions.
type Client struct {
	cache         cache.Store
	tracker       RateLimitTracker
	httpClient    HTTPDoer
	clock         TimeProvider
	prxClient     PrxClient
	guard         *Guard
	app           *appAuth
	baseURL       string
	token         string
	userAgent     string
	retryAttempts uint
}

// Config holds configuration for creating a new GitHub client.
// Zero values select defaults; an empty Token and AppID yields an unauthenticated client.
type Config struct {
	Cache         cache.Store      // Response cache (default: in-memory, 5 minute TTL)
	Tracker       RateLimitTracker // Rate limit state holder (default: in-memory)
	HTTPClient    HTTPDoer
	Clock         TimeProvider
	BaseURL       string
	Token         string // Personal access token
	AppID         string // GitHub App ID, enables App authentication
	AppKeyPath    string // Path to the App private key
	UserAgent     string
	AppKey        []byte // App private key content, takes precedence over AppKeyPath
	HTTPTimeout   time.Duration
	RetryAttempts int // Total attempts per request; 1 disables retries
}

// New creates a GitHub client from cfg.
func New(_ context.Context, cfg Config) (*Client, error) {
	c := &Client{
		cache:      cfg.Cache,
		tracker:    cfg.Tracker,
		httpClient: cfg.HTTPClient,
		clock:      cfg.Clock,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
	}
	if c.cache == nil {
		c.cache = cache.New(cache.DefaultTTL)
	}
	if c.tracker == nil {
		c.tracker = &MemoryTracker{}
	}
	if c.httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	c.retryAttempts = 1
	if cfg.RetryAttempts > 1 {
		c.retryAttempts = uint(cfg.RetryAttempts)
	}

	switch {
	case cfg.AppID != "":
		app, err := newAppAuth(cfg.AppID, cfg.AppKey, cfg.AppKeyPath, c.clock)
		if err != nil {
			return nil, err
		}
		c.app = app
		slog.Info("Using GitHub App authentication", "component", "api", "app_id", cfg.AppID)
	case cfg.Token != "":
		if err := validateToken(cfg.Token); err != nil {
			return nil, err
		}
		c.token = cfg.Token
		slog.Info("Using personal access token authentication", "component", "api")
	default:
		slog.Info("No GitHub credentials configured, requests are unauthenticated", "component", "api")
	}

	c.guard = NewGuard(c.tracker, c.probeRateLimit, c.clock)
	return c, nil
}

// SetPrxClient sets the prx client used for CI enrichment.
func (c *Client) SetPrxClient(prxClient PrxClient) {
	c.prxClient = prxClient
}

// Authenticated reports whether a credential is configured.
func (c *Client) Authenticated() bool {
	return c.token != "" || c.app != nil
}

// Cache returns the client's response cache.
func (c *Client) Cache() cache.Store {
	return c.cache
}

// Guard returns the client's rate limit guard.
func (c *Client) Guard() *Guard {
	return c.guard
}

// response is a fully read HTTP response.
type response struct {
	header http.Header
	body   []byte
	status int
}

// serverError marks a 5xx response so the retry policy can pick it up.
type serverError struct {
	resp *response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("http %d: server error", e.resp.status)
}

// getJSON fetches path through the cache and the rate limit guard and decodes it into v.
func (c *Client) getJSON(ctx context.Context, key, owner, repo, path string, v any) error {
	raw, err := c.cachedGet(ctx, key, owner, repo, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &types.Error{Kind: types.KindUpstream, Message: "unexpected response from GitHub", Err: err}
	}
	return nil
}

func (c *Client) cachedGet(ctx context.Context, key, owner, repo, path string) (json.RawMessage, error) {
	if v, ok := c.cache.Get(key); ok {
		if raw, ok := asRaw(v); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			slog.Debug("Cache hit", "component", "cache", "key", key)
			return raw, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	if d := c.guard.Check(ctx); !d.CanProceed {
		metrics.GuardRejections.Inc()
		slog.Warn("Rate limit nearly exhausted, request refused", "component", "ratelimit", "path", path, "wait_minutes", d.WaitMinutes)
		return nil, c.rateLimitedError(d.RateLimit, d.WaitMinutes)
	}

	authz, err := c.authorization(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodGet, c.baseURL+path, authz, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, c.statusError(resp)
	}

	raw := json.RawMessage(resp.body)
	c.cache.Set(key, raw)
	return raw, nil
}

func asRaw(v any) (json.RawMessage, bool) {
	switch b := v.(type) {
	case json.RawMessage:
		return b, true
	case []byte:
		return b, true
	default:
		return nil, false
	}
}

// authorization returns the Authorization header value for a request against owner/repo.
func (c *Client) authorization(ctx context.Context, owner, repo string) (string, error) {
	switch {
	case c.app != nil && owner != "":
		token, err := c.installationToken(ctx, owner, repo)
		if err != nil {
			return "", &types.Error{
				Kind:         types.KindAuthRequired,
				Message:      "GitHub App is not installed for " + owner,
				RequiresAuth: true,
				Err:          err,
			}
		}
		return "Bearer " + token, nil
	case c.app != nil:
		jwtToken, err := c.app.currentJWT()
		if err != nil {
			return "", &types.Error{Kind: types.KindAuthRequired, Message: "failed to sign GitHub App JWT", RequiresAuth: true, Err: err}
		}
		return "Bearer " + jwtToken, nil
	case c.token != "":
		return "Bearer " + c.token, nil
	default:
		return "", nil
	}
}

// send performs one request under the retry policy. Transport failures and 5xx
// responses are retried; any other response is returned to the caller as-is.
func (c *Client) send(ctx context.Context, method, apiURL, authz string, body []byte) (*response, error) {
	slog.Debug("HTTP request", "component", "http", "method", method, "url", apiURL)
	start := c.clock.Now()

	var resp *response
	err := retry.Do(
		func() error {
			r, err := c.do(ctx, method, apiURL, authz, body)
			if err != nil {
				return err
			}
			if r.status >= http.StatusInternalServerError {
				return &serverError{resp: r}
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(initialRetryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retry attempt", "component", "http", "method", method, "url", apiURL, "attempt", n+1, "max_attempts", c.retryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	metrics.UpstreamDuration.WithLabelValues("github").Observe(c.clock.Now().Sub(start).Seconds())

	if err != nil {
		var se *serverError
		if errors.As(err, &se) {
			resp = se.resp
		} else {
			metrics.UpstreamRequests.WithLabelValues("github", "error").Inc()
			slog.Warn("HTTP request failed", "component", "http", "method", method, "url", apiURL, "error", err)
			return nil, types.NetworkError(err)
		}
	}

	metrics.UpstreamRequests.WithLabelValues("github", strconv.Itoa(resp.status)).Inc()
	slog.Debug("HTTP response", "component", "http", "method", method, "url", apiURL, "status", resp.status)
	c.observeRateLimit(resp.header)
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, apiURL, authz string, body []byte) (*response, error) {
	var bodyReader io.Reader = http.NoBody
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer drainAndCloseBody(httpResp.Body)

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

// observeRateLimit records the quota advertised in X-RateLimit-* headers.
func (c *Client) observeRateLimit(h http.Header) {
	state, ok := rateLimitFromHeader(h)
	if !ok {
		return
	}
	state.LastCheckedAt = c.clock.Now()
	c.tracker.Store(state)
	metrics.RateLimitRemaining.Set(float64(state.Remaining))
}

func rateLimitFromHeader(h http.Header) (types.RateLimitState, bool) {
	remaining := h.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return types.RateLimitState{}, false
	}
	var state types.RateLimitState
	var err error
	if state.Remaining, err = strconv.Atoi(remaining); err != nil {
		return types.RateLimitState{}, false
	}
	state.Limit = headerInt(h, "X-RateLimit-Limit")
	state.Used = headerInt(h, "X-RateLimit-Used")
	state.ResetEpochSeconds = int64(headerInt(h, "X-RateLimit-Reset"))
	return state, true
}

// headerInt parses an integer header, returning zero when absent or malformed.
func headerInt(h http.Header, name string) int {
	n, err := strconv.Atoi(h.Get(name))
	if err != nil {
		return 0
	}
	return n
}

// drainAndCloseBody drains and closes an HTTP response body to prevent resource leaks.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "component", "http", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "component", "http", "error", err)
	}
}
