// Package app wires the riskboard components from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/prx/pkg/prx"

	"github.com/codeGROOVE-dev/riskboard/pkg/analysis"
	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
	"github.com/codeGROOVE-dev/riskboard/pkg/config"
	"github.com/codeGROOVE-dev/riskboard/pkg/dashboard"
	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
)

// Components are the long-lived services built from a Config.
type Components struct {
	Cache    *cache.DiskCache
	GitHub   *github.Client
	Backend  analysis.API
	Analyzer *dashboard.Analyzer
}

// Options adjust how components are built.
type Options struct {
	Logger *slog.Logger
	// GHFallback asks the gh CLI for a token when none is configured.
	GHFallback bool
}

// prxClientWrapper wraps prx.Client to satisfy github.PrxClient.
type prxClientWrapper struct {
	client *prx.Client
}

// PullRequestWithReferenceTime returns the prx pull request data as any.
func (w *prxClientWrapper) PullRequestWithReferenceTime(ctx context.Context, owner, repo string, prNumber int, referenceTime time.Time) (any, error) {
	return w.client.PullRequestWithReferenceTime(ctx, owner, repo, prNumber, referenceTime)
}

// Build creates the cache, both API clients and the analyzer.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := cache.NewDiskCache(cfg.Cache.TTL, cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	token := cfg.GitHub.Token
	if token == "" && cfg.GitHub.AppID == "" && opts.GHFallback {
		if t, err := ghToken(ctx); err == nil {
			token = t
		} else {
			logger.Debug("No token from gh CLI, continuing unauthenticated", "component", "config", "error", err)
		}
	}

	gh, err := github.New(ctx, github.Config{
		Cache:         store,
		BaseURL:       cfg.GitHub.APIURL,
		Token:         token,
		AppID:         cfg.GitHub.AppID,
		AppKeyPath:    cfg.GitHub.AppKeyPath,
		HTTPTimeout:   cfg.HTTP.Timeout,
		RetryAttempts: cfg.HTTP.RetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	attachPrx(ctx, gh, cfg, logger)

	est := normalize.RandomEstimator()
	if cfg.Analysis.Seed != 0 {
		est = normalize.NewEstimator(cfg.Analysis.Seed)
	}

	var backend analysis.API = analysis.NewClient(analysis.Config{
		Estimator: est,
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.HTTP.Timeout,
		Debug:     cfg.Log.Level == "debug",
	})
	if cfg.Backend.Fallback {
		logger.Info("Sample data will be served while the analysis backend is unreachable", "component", "backend")
		backend = analysis.WithFallback(backend, est)
	}

	return &Components{
		Cache:    store,
		GitHub:   gh,
		Backend:  backend,
		Analyzer: dashboard.NewAnalyzer(gh, backend, est),
	}, nil
}

// attachPrx enables CI enrichment when a credential prx can use is available.
func attachPrx(ctx context.Context, gh *github.Client, cfg *config.Config, logger *slog.Logger) {
	if !gh.Authenticated() {
		return
	}
	owner := ""
	if cfg.GitHub.AppID != "" {
		if cfg.Events.Org == "" {
			logger.Info("CI enrichment needs EVENTS_ORG with GitHub App authentication, skipping", "component", "api")
			return
		}
		owner = cfg.Events.Org
	}
	token, err := gh.Token(ctx, owner)
	if err != nil {
		logger.Warn("Failed to get GitHub token for prx client", "component", "api", "error", err)
		return
	}
	gh.SetPrxClient(&prxClientWrapper{client: prx.NewClient(token, prx.WithLogger(logger))})
}

// ghToken retrieves the GitHub token from gh CLI.
func ghToken(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get GitHub token: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
