package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/riskboard/pkg/analysis"
	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// fakeGitHub is a scripted github.API.
type fakeGitHub struct {
	details   map[int]*github.PullRequest
	detailErr map[int]error
	list      []github.PullRequest
	listErr   error
	files     []github.File
	filesErr  error
	repo      *github.Repository
	repoErr   error
	ci        *types.CISummary
	gate      chan struct{} // when set, PullRequest blocks until closed
	mu        sync.Mutex
	calls     int
}

func (f *fakeGitHub) PullRequests(context.Context, string, string, string, int) ([]github.PullRequest, error) {
	return f.list, f.listErr
}

func (f *fakeGitHub) PullRequest(_ context.Context, _, _ string, n int) (*github.PullRequest, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := f.detailErr[n]; err != nil {
		return nil, err
	}
	return f.details[n], nil
}

func (f *fakeGitHub) PRFiles(context.Context, string, string, int) ([]github.File, error) {
	return f.files, f.filesErr
}

func (f *fakeGitHub) Repository(context.Context, string, string) (*github.Repository, error) {
	return f.repo, f.repoErr
}

func (*fakeGitHub) RateLimit(context.Context) (types.RateLimitState, error) {
	return types.RateLimitState{}, nil
}

func (f *fakeGitHub) CIStatus(context.Context, string, string, int) (*types.CISummary, error) {
	return f.ci, nil
}

// fakeBackend is a scripted analysis.API.
type fakeBackend struct {
	recs       *analysis.RecommendationsResult
	recsErr    error
	summary    *analysis.SummaryResult
	summaryErr error
	prIDs      []string
	mu         sync.Mutex
}

func (f *fakeBackend) RetrieveTestRecommendations(_ context.Context, prID string) (*analysis.RecommendationsResult, error) {
	f.mu.Lock()
	f.prIDs = append(f.prIDs, prID)
	f.mu.Unlock()
	return f.recs, f.recsErr
}

func (f *fakeBackend) RetrievePRSummary(_ context.Context, prID string) (*analysis.SummaryResult, error) {
	f.mu.Lock()
	f.prIDs = append(f.prIDs, prID)
	f.mu.Unlock()
	return f.summary, f.summaryErr
}

const testURL = "https://github.com/acme/payments/pull/42"

func healthyGitHub() *fakeGitHub {
	return &fakeGitHub{
		details: map[int]*github.PullRequest{
			42: {Number: 42, Title: "Add refund flow", State: "open", Additions: 120, Deletions: 10, ChangedFiles: 3, User: github.User{Login: "alice"}},
		},
		files: []github.File{
			{Filename: "src/RefundService.java", Status: "modified", Additions: 2, Deletions: 1, Patch: "@@ -1,2 +1,3 @@\n-a\n+b\n+c"},
			{Filename: "src/RefundUtil.java", Status: "added", Additions: 1},
		},
		repo: &github.Repository{Name: "payments", FullName: "acme/payments"},
		ci:   &types.CISummary{Total: 2, Passed: 2},
	}
}

func TestAnalyze_MergesSources(t *testing.T) {
	gh := healthyGitHub()
	backend := &fakeBackend{
		recs: &analysis.RecommendationsResult{
			Recommendations:    []types.TestRecommendation{{ID: "api-test-1", Type: types.TestUnit}},
			AffectedComponents: []types.AffectedComponent{{Name: "Refunds", Criticality: "critical"}},
		},
		summary: &analysis.SummaryResult{Summary: types.AnalysisSummary{RiskScore: 82, TotalFiles: 2}},
	}
	a := NewAnalyzer(gh, backend, normalize.NewEstimator(1))

	res, err := a.Analyze(context.Background(), testURL)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Complete() || res.Stale || res.Fallback {
		t.Errorf("unexpected flags: errors=%v stale=%v fallback=%v", res.Errors, res.Stale, res.Fallback)
	}
	if res.PRID != "payments_42" || res.ID == "" {
		t.Errorf("ids = %q / %q", res.PRID, res.ID)
	}
	for _, id := range backend.prIDs {
		if id != "payments_42" {
			t.Errorf("backend called with %q", id)
		}
	}
	if res.PullRequest == nil || res.PullRequest.RiskScore != 82 || res.PullRequest.RiskSource != types.RiskFromBackend {
		t.Errorf("backend score should override heuristic: %+v", res.PullRequest)
	}
	if res.RiskLevel != normalize.RiskCritical {
		t.Errorf("risk level = %s", res.RiskLevel)
	}
	if len(res.Files) != 2 || len(res.Modules) != 1 || res.Modules[0].Name != "Refunds" {
		t.Errorf("files=%d modules=%+v", len(res.Files), res.Modules)
	}
	if res.CI == nil || res.CI.Passed != 2 || res.Repository == nil {
		t.Errorf("ci=%+v repo=%+v", res.CI, res.Repository)
	}
	if latest, ok := a.Session().Latest(DefaultSessionKey); !ok || latest != res {
		t.Error("analysis was not published")
	}
}

func TestAnalyze_SettlesAllSources(t *testing.T) {
	gh := healthyGitHub()
	gh.filesErr = &types.Error{Kind: types.KindRateLimited, Message: "GitHub API rate limit exceeded.", WaitMinutes: 4, RequiresAuth: true}
	gh.repoErr = &types.Error{Kind: types.KindNotFound, Message: "not found"}
	backend := &fakeBackend{
		recsErr:    &analysis.BackendError{Category: analysis.CategoryNoFiles, Message: "No files found for PR: payments_42"},
		summaryErr: types.NetworkError(errors.New("connection refused")),
	}
	a := NewAnalyzer(gh, backend, nil)

	res, err := a.Analyze(context.Background(), testURL)
	if err != nil {
		t.Fatalf("source failures must not fail the analysis: %v", err)
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected 4 source errors, got %v", res.Errors)
	}
	if fe := res.Errors[SourceFiles]; fe.Kind != types.KindRateLimited || fe.WaitMinutes != 4 || !fe.RequiresAuth {
		t.Errorf("files error = %+v", fe)
	}
	if fe := res.Errors[SourceRecommendations]; fe.Kind != types.KindNotFound || fe.Category != analysis.CategoryNoFiles {
		t.Errorf("recommendations error = %+v", fe)
	}
	if fe := res.Errors[SourceSummary]; fe.Kind != types.KindNetwork || fe.Message != "network error: connection refused" {
		t.Errorf("summary error = %+v", fe)
	}
	if res.PullRequest == nil || res.PullRequest.RiskSource != types.RiskFromHeuristic {
		t.Errorf("pull request should still be present with a heuristic score: %+v", res.PullRequest)
	}
	if res.Files == nil || res.Recommendations == nil || res.Modules == nil {
		t.Error("failed sources should leave empty collections, not nil")
	}
}

func TestAnalyze_FallbackSummaryKeepsHeuristic(t *testing.T) {
	backend := &fakeBackend{
		recs:    &analysis.RecommendationsResult{Fallback: true},
		summary: &analysis.SummaryResult{Summary: analysis.FallbackSummary(), Fallback: true},
	}
	res, err := NewAnalyzer(healthyGitHub(), backend, nil).Analyze(context.Background(), testURL)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback {
		t.Error("fallback flag not propagated")
	}
	if res.PullRequest.RiskSource != types.RiskFromHeuristic {
		t.Errorf("sample summary replaced the heuristic score: %+v", res.PullRequest)
	}
}

func TestAnalyze_InvalidURL(t *testing.T) {
	backend := &fakeBackend{}
	gh := healthyGitHub()
	_, err := NewAnalyzer(gh, backend, nil).Analyze(context.Background(), "https://github.com/acme/payments/issues/1")
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if gh.calls != 0 || len(backend.prIDs) != 0 {
		t.Error("invalid URL should not reach any API")
	}
}

func TestAnalyze_StaleGenerationDiscarded(t *testing.T) {
	slow := healthyGitHub()
	gate := make(chan struct{})
	slow.gate = gate
	a := NewAnalyzer(slow, &fakeBackend{}, nil)

	first := make(chan *Analysis, 1)
	go func() {
		res, err := a.AnalyzeFor(context.Background(), "view", testURL)
		if err != nil {
			t.Errorf("first analysis: %v", err)
		}
		first <- res
	}()

	// Wait until the first analysis holds its generation and is blocked on the hosting API.
	for {
		slow.mu.Lock()
		started := slow.calls > 0
		if started {
			slow.gate = nil
		}
		slow.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	second, err := a.AnalyzeFor(context.Background(), "view", "https://github.com/acme/payments/pull/43")
	if err != nil {
		t.Fatal(err)
	}
	close(gate)
	older := <-first

	if !older.Stale || older.Generation != 1 {
		t.Errorf("superseded analysis: stale=%v generation=%d", older.Stale, older.Generation)
	}
	if second.Stale || second.Generation != 2 {
		t.Errorf("latest analysis: stale=%v generation=%d", second.Stale, second.Generation)
	}
	if latest, _ := a.Session().Latest("view"); latest != second {
		t.Error("stale analysis overwrote the latest result")
	}
}

func TestSession(t *testing.T) {
	s := NewSession()
	g1 := s.Begin("a")
	g2 := s.Begin("a")
	other := s.Begin("b")
	if g1 != 1 || g2 != 2 || other != 1 {
		t.Fatalf("generations = %d, %d, %d", g1, g2, other)
	}

	old := &Analysis{Generation: g1}
	if s.Apply("a", old) || !old.Stale {
		t.Error("older generation should be rejected and marked stale")
	}
	if _, ok := s.Latest("a"); ok {
		t.Error("nothing should be published yet")
	}

	cur := &Analysis{Generation: g2}
	if !s.Apply("a", cur) || cur.Stale {
		t.Error("current generation should be applied")
	}
	if got, _ := s.Latest("a"); got != cur {
		t.Error("Latest did not return the applied analysis")
	}
}
