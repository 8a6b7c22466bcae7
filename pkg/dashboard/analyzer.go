// Package dashboard assembles the dashboard view model from the hosting API and
// the analysis backend.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/riskboard/pkg/analysis"
	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/metrics"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// Sources of an analysis, used as keys of Analysis.Errors.
const (
	SourcePullRequest     = "pullRequest"
	SourceFiles           = "files"
	SourceRepository      = "repository"
	SourceRecommendations = "recommendations"
	SourceSummary         = "summary"
	SourceCI              = "ci"
)

// FieldError is the displayable form of a failed source.
type FieldError struct {
	RateLimit    *types.RateLimitState `json:"rateLimitInfo,omitempty"`
	Kind         types.ErrorKind       `json:"kind"`
	Message      string                `json:"error"`
	Category     analysis.Category     `json:"category,omitempty"`
	WaitMinutes  int                   `json:"waitMinutes,omitempty"`
	RequiresAuth bool                  `json:"requiresAuth,omitempty"`
}

func newFieldError(err error) *FieldError {
	var be *analysis.BackendError
	if errors.As(err, &be) {
		return &FieldError{Kind: be.Kind(), Message: be.Message, Category: be.Category}
	}
	var te *types.Error
	if errors.As(err, &te) {
		return &FieldError{
			Kind:         te.Kind,
			Message:      te.Message,
			RequiresAuth: te.RequiresAuth,
			RateLimit:    te.RateLimit,
			WaitMinutes:  te.WaitMinutes,
		}
	}
	return &FieldError{Kind: types.KindUpstream, Message: err.Error()}
}

// Analysis is the dashboard view of one pull request.
// Every source is fetched independently; a failed source leaves its field empty
// and records an entry in Errors.
type Analysis struct {
	GeneratedAt     time.Time                  `json:"generatedAt"`
	PullRequest     *types.PullRequestSummary  `json:"pullRequest,omitempty"`
	Repository      *github.Repository         `json:"repository,omitempty"`
	Summary         *types.AnalysisSummary     `json:"summary,omitempty"`
	CI              *types.CISummary           `json:"ci,omitempty"`
	Errors          map[string]*FieldError     `json:"errors"`
	ID              string                     `json:"id"`
	URL             string                     `json:"url"`
	PRID            string                     `json:"prId"`
	RiskLevel       normalize.RiskLevel        `json:"riskLevel,omitempty"`
	Files           []types.FileChange         `json:"files"`
	Modules         []types.ImpactedModule     `json:"modules"`
	Recommendations []types.TestRecommendation `json:"recommendations"`
	Generation      uint64                     `json:"generation"`
	Fallback        bool                       `json:"fallback"`
	Stale           bool                       `json:"stale"`
}

// Complete reports whether every source succeeded.
func (a *Analysis) Complete() bool {
	return len(a.Errors) == 0
}

// Analyzer joins the hosting and backend clients into analyses.
type Analyzer struct {
	github  github.API
	backend analysis.API
	est     *normalize.Estimator
	session *Session
	now     func() time.Time
}

// NewAnalyzer creates an Analyzer. A nil estimator yields midpoint placeholder values.
func NewAnalyzer(gh github.API, backend analysis.API, est *normalize.Estimator) *Analyzer {
	return &Analyzer{
		github:  gh,
		backend: backend,
		est:     est,
		session: NewSession(),
		now:     time.Now,
	}
}

// Session returns the analyzer's generation tracker.
func (a *Analyzer) Session() *Session {
	return a.session
}

// Analyze runs an analysis for the default session.
func (a *Analyzer) Analyze(ctx context.Context, prURL string) (*Analysis, error) {
	return a.AnalyzeFor(ctx, DefaultSessionKey, prURL)
}

// AnalyzeFor fetches every source for prURL concurrently and merges the results.
// Only an invalid URL is returned as an error; source failures are recorded in
// Analysis.Errors. When a newer analysis for sessionKey started first, the
// result is returned with Stale set and is not published to the session.
func (a *Analyzer) AnalyzeFor(ctx context.Context, sessionKey, prURL string) (*Analysis, error) {
	prURL = strings.TrimSpace(prURL)
	ref, ok := github.ExtractPRReference(prURL)
	if !ok {
		return nil, types.Validationf("Invalid GitHub pull request URL: %q", prURL)
	}
	prID := normalize.RepositoryURL{Repo: ref.Repo, Number: ref.Number}.ID()

	gen := a.session.Begin(sessionKey)
	slog.Info("Analyzing pull request", "component", "dashboard", "owner", ref.Owner, "repo", ref.Repo, "pr", ref.Number, "generation", gen)

	var (
		wg      sync.WaitGroup
		pr      *github.PullRequest
		files   []github.File
		repo    *github.Repository
		recs    *analysis.RecommendationsResult
		summary *analysis.SummaryResult
		ci      *types.CISummary
		errs    [6]error
	)
	wg.Add(6)
	go func() {
		defer wg.Done()
		pr, errs[0] = a.github.PullRequest(ctx, ref.Owner, ref.Repo, ref.Number)
	}()
	go func() {
		defer wg.Done()
		files, errs[1] = a.github.PRFiles(ctx, ref.Owner, ref.Repo, ref.Number)
	}()
	go func() {
		defer wg.Done()
		repo, errs[2] = a.github.Repository(ctx, ref.Owner, ref.Repo)
	}()
	go func() {
		defer wg.Done()
		recs, errs[3] = a.backend.RetrieveTestRecommendations(ctx, prID)
	}()
	go func() {
		defer wg.Done()
		summary, errs[4] = a.backend.RetrievePRSummary(ctx, prID)
	}()
	go func() {
		defer wg.Done()
		ci, errs[5] = a.github.CIStatus(ctx, ref.Owner, ref.Repo, ref.Number)
	}()
	wg.Wait()

	res := &Analysis{
		ID:              uuid.New().String(),
		URL:             prURL,
		PRID:            prID,
		GeneratedAt:     a.now(),
		Generation:      gen,
		Errors:          make(map[string]*FieldError),
		Files:           []types.FileChange{},
		Recommendations: []types.TestRecommendation{},
	}
	for i, source := range []string{SourcePullRequest, SourceFiles, SourceRepository, SourceRecommendations, SourceSummary, SourceCI} {
		if errs[i] != nil {
			slog.Warn("Analysis source failed", "component", "dashboard", "source", source, "pr_id", prID, "error", errs[i])
			res.Errors[source] = newFieldError(errs[i])
		}
	}

	if pr != nil {
		s := normalize.SummarizePullRequest(pr, ref.Owner, ref.Repo)
		res.PullRequest = &s
	}
	if errs[1] == nil {
		res.Files = normalize.FilesToChanges(files)
	}
	res.Repository = repo
	res.CI = ci

	var components []types.AffectedComponent
	if recs != nil {
		if recs.Recommendations != nil {
			res.Recommendations = recs.Recommendations
		}
		components = recs.AffectedComponents
		res.Fallback = res.Fallback || recs.Fallback
	}
	res.Modules = normalize.ImpactedModules(components, res.Files, a.est)

	if summary != nil {
		sum := summary.Summary
		res.Summary = &sum
		res.Fallback = res.Fallback || summary.Fallback
		// Sample summaries never replace the heuristic.
		if res.PullRequest != nil && !summary.Fallback {
			res.PullRequest.RiskScore = sum.RiskScore
			res.PullRequest.RiskSource = types.RiskFromBackend
		}
	}

	switch {
	case res.PullRequest != nil:
		res.RiskLevel = normalize.RiskLevelFromScore(res.PullRequest.RiskScore, normalize.Scale100)
	case res.Summary != nil:
		res.RiskLevel = normalize.RiskLevelFromScore(res.Summary.RiskScore, normalize.Scale100)
	}

	outcome := "complete"
	if !res.Complete() {
		outcome = "partial"
	}
	if !a.session.Apply(sessionKey, res) {
		outcome = "stale"
		slog.Info("Discarding superseded analysis", "component", "dashboard", "pr_id", prID, "generation", gen)
	}
	metrics.Analyses.WithLabelValues(outcome).Inc()
	return res, nil
}
