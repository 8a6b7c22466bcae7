package github

import (
	"context"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// HTTPDoer provides an interface for making HTTP requests.
// This allows us to mock HTTP calls in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TimeProvider provides the current time.
// This allows us to control time in tests.
type TimeProvider interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RateLimitTracker holds the last known quota of a single client.
type RateLimitTracker interface {
	Load() (types.RateLimitState, bool)
	Store(state types.RateLimitState)
}

// API defines the hosting operations the dashboard depends on.
type API interface {
	PullRequests(ctx context.Context, owner, repo, state string, perPage int) ([]PullRequest, error)
	PullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	PRFiles(ctx context.Context, owner, repo string, number int) ([]File, error)
	Repository(ctx context.Context, owner, repo string) (*Repository, error)
	RateLimit(ctx context.Context) (types.RateLimitState, error)
	CIStatus(ctx context.Context, owner, repo string, number int) (*types.CISummary, error)
}

// PrxClient defines the interface for enhanced PR data fetching.
type PrxClient interface {
	PullRequestWithReferenceTime(ctx context.Context, owner, repo string, prNumber int, referenceTime time.Time) (any, error)
}

var _ API = (*Client)(nil)
