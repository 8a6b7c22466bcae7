// Package analysis is the client for the backend analysis service, which serves
// generated test recommendations and risk summaries keyed by pull request ID.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/codeGROOVE-dev/riskboard/pkg/metrics"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8080"

const (
	defaultTimeout = 30 * time.Second
	apiVersion     = "v1"
	statusSuccess  = "success"
	statusError    = "error"
)

// API is the backend analysis service.
type API interface {
	RetrieveTestRecommendations(ctx context.Context, prID string) (*RecommendationsResult, error)
	RetrievePRSummary(ctx context.Context, prID string) (*SummaryResult, error)
}

// RecommendationsResult is a successful /api/v1/retrieve response.
type RecommendationsResult struct {
	Message            string                     `json:"message"`
	Files              []types.BackendFile        `json:"files"`
	AffectedComponents []types.AffectedComponent  `json:"affectedComponents"`
	Recommendations    []types.TestRecommendation `json:"recommendations"`
	Fallback           bool                       `json:"fallback"`
}

// SummaryResult is a successful /api/v1/summary/retrieve response.
type SummaryResult struct {
	Message  string                `json:"message"`
	Summary  types.AnalysisSummary `json:"summary"`
	Fallback bool                  `json:"fallback"`
}

// Config configures a Client.
type Config struct {
	Estimator *normalize.Estimator // Source of placeholder recommendation values
	BaseURL   string
	Timeout   time.Duration
	Debug     bool
}

// Client talks to the backend analysis service.
type Client struct {
	client  *resty.Client
	est     *normalize.Estimator
	baseURL string
}

var _ API = (*Client)(nil)

// envelope is the response wrapper shared by every backend endpoint.
type envelope struct {
	Status             string                    `json:"status"`
	Message            string                    `json:"message"`
	Data               json.RawMessage           `json:"data"`
	AffectedComponents []types.AffectedComponent `json:"affected_components"`
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Version", apiVersion)
	if cfg.Debug {
		client.SetDebug(true)
	}

	return &Client{client: client, est: cfg.Estimator, baseURL: baseURL}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RetrieveTestRecommendations fetches the generated tests for prID and converts them
// into recommendations.
func (c *Client) RetrieveTestRecommendations(ctx context.Context, prID string) (*RecommendationsResult, error) {
	prID = strings.TrimSpace(prID)
	if prID == "" {
		return nil, types.Validationf("PR ID cannot be empty")
	}

	env, err := c.execute("retrieve", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetBody(map[string]string{"prId": prID}).
			Post("/api/v1/retrieve")
	})
	if err != nil {
		return nil, err
	}

	var files []types.BackendFile
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &files); err != nil {
			return nil, &types.Error{Kind: types.KindUpstream, Message: "unexpected recommendations payload", Err: err}
		}
	}
	return newRecommendationsResult(env.Message, files, env.AffectedComponents, c.est), nil
}

// RetrievePRSummary fetches the aggregate analysis summary for prID.
func (c *Client) RetrievePRSummary(ctx context.Context, prID string) (*SummaryResult, error) {
	prID = strings.TrimSpace(prID)
	if prID == "" {
		return nil, types.Validationf("PR ID cannot be empty")
	}

	env, err := c.execute("summary", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetPathParam("prId", prID).
			Get("/api/v1/summary/retrieve/{prId}")
	})
	if err != nil {
		return nil, err
	}

	result := &SummaryResult{Message: env.Message}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &result.Summary); err != nil {
			return nil, &types.Error{Kind: types.KindUpstream, Message: "unexpected summary payload", Err: err}
		}
	}
	return result, nil
}

// execute sends a request and checks the envelope. It returns a Network error on
// transport failure, a *BackendError for status "error", and an Upstream error for
// anything that is not a success envelope.
func (*Client) execute(endpoint string, send func() (*resty.Response, error)) (*envelope, error) {
	start := time.Now()
	resp, err := send()
	metrics.UpstreamDuration.WithLabelValues("backend").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("backend", "error").Inc()
		slog.Warn("Backend request failed", "component", "backend", "endpoint", endpoint, "error", err)
		return nil, types.NetworkError(err)
	}
	metrics.UpstreamRequests.WithLabelValues("backend", strconv.Itoa(resp.StatusCode())).Inc()
	slog.Debug("Backend response", "component", "backend", "endpoint", endpoint, "status", resp.StatusCode())

	// Error responses share the success envelope, so the body is decoded regardless of status.
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		slog.Debug("Backend response is not JSON", "component", "backend", "endpoint", endpoint, "error", err)
		env = envelope{}
	}

	switch env.Status {
	case statusSuccess:
		return &env, nil
	case statusError:
		return nil, newBackendError(env.Message, resp.StatusCode(), resp.Body())
	default:
		slog.Warn("Unexpected backend response", "component", "backend", "endpoint", endpoint, "status", resp.StatusCode())
		return nil, &types.Error{
			Kind:       types.KindUpstream,
			Message:    "unexpected response format from analysis backend",
			StatusCode: resp.StatusCode(),
		}
	}
}

func newRecommendationsResult(msg string, files []types.BackendFile, components []types.AffectedComponent, est *normalize.Estimator) *RecommendationsResult {
	if files == nil {
		files = []types.BackendFile{}
	}
	if components == nil {
		components = []types.AffectedComponent{}
	}
	return &RecommendationsResult{
		Message:            msg,
		Files:              files,
		AffectedComponents: components,
		Recommendations:    normalize.Recommendations(files, est),
	}
}
