package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/codeGROOVE-dev/riskboard/pkg/analysis"
	"github.com/codeGROOVE-dev/riskboard/pkg/dashboard"
	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/internal/testutil"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

type stubGitHub struct {
	prs     []github.PullRequest
	listErr error
	state   types.RateLimitState
}

func (s *stubGitHub) PullRequests(context.Context, string, string, string, int) ([]github.PullRequest, error) {
	return s.prs, s.listErr
}

func (s *stubGitHub) PullRequest(_ context.Context, _, _ string, n int) (*github.PullRequest, error) {
	for i := range s.prs {
		if s.prs[i].Number == n {
			return &s.prs[i], nil
		}
	}
	return nil, &types.Error{Kind: types.KindNotFound, Message: "not found"}
}

func (*stubGitHub) PRFiles(context.Context, string, string, int) ([]github.File, error) {
	return []github.File{}, nil
}

func (*stubGitHub) Repository(context.Context, string, string) (*github.Repository, error) {
	return &github.Repository{Name: "payments"}, nil
}

func (s *stubGitHub) RateLimit(context.Context) (types.RateLimitState, error) {
	return s.state, nil
}

func (*stubGitHub) CIStatus(context.Context, string, string, int) (*types.CISummary, error) {
	return nil, nil
}

type stubBackend struct {
	recs *analysis.RecommendationsResult
	err  error
}

func (s *stubBackend) RetrieveTestRecommendations(context.Context, string) (*analysis.RecommendationsResult, error) {
	return s.recs, s.err
}

func (*stubBackend) RetrievePRSummary(context.Context, string) (*analysis.SummaryResult, error) {
	return &analysis.SummaryResult{Summary: types.AnalysisSummary{RiskScore: 40}}, nil
}

func newTestServer(gh *stubGitHub, backend *stubBackend, store *testutil.MockCache) *Server {
	gin.SetMode(gin.TestMode)
	return New(Deps{
		Analyzer: dashboard.NewAnalyzer(gh, backend, nil),
		GitHub:   gh,
		Backend:  backend,
		Cache:    store,
		Health:   func() map[string]any { return map[string]any{"is_connected": true} },
	})
}

func serve(t *testing.T, s *Server, method, target string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON from %s: %v", target, err)
		}
	}
	return w.Code, body
}

func samplePRs() []github.PullRequest {
	return []github.PullRequest{
		{Number: 1, Title: "Fix login", State: "open", User: github.User{Login: "alice"}},
		{Number: 2, Title: "Database migration", State: "open", Additions: 900, ChangedFiles: 20, User: github.User{Login: "bob"}},
		{Number: 3, Title: "Draft docs", State: "open", Draft: true, User: github.User{Login: "alice"}},
	}
}

func TestAnalysisEndpoint(t *testing.T) {
	s := newTestServer(&stubGitHub{prs: samplePRs()}, &stubBackend{recs: &analysis.RecommendationsResult{}}, testutil.NewMockCache())

	code, body := serve(t, s, http.MethodGet, "/api/v1/analysis?url=https://github.com/acme/payments/pull/1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["prId"] != "payments_1" {
		t.Errorf("prId = %v", body["prId"])
	}
	pr, ok := body["pullRequest"].(map[string]any)
	if !ok || pr["riskSource"] != "backend" || pr["riskScore"] != float64(40) {
		t.Errorf("pullRequest = %v", body["pullRequest"])
	}

	code, body = serve(t, s, http.MethodGet, "/api/v1/analysis?url=not-a-pr")
	if code != http.StatusBadRequest || body["kind"] != string(types.KindValidation) {
		t.Errorf("invalid URL: status %d body %v", code, body)
	}
	code, _ = serve(t, s, http.MethodGet, "/api/v1/analysis")
	if code != http.StatusBadRequest {
		t.Errorf("missing url: status %d", code)
	}
}

func TestPullsEndpoint(t *testing.T) {
	s := newTestServer(&stubGitHub{prs: samplePRs()}, &stubBackend{}, testutil.NewMockCache())

	code, body := serve(t, s, http.MethodGet, "/api/v1/repos/acme/payments/pulls?tab=open&search=ALICE")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	prs, ok := body["pullRequests"].([]any)
	if !ok || len(prs) != 1 {
		t.Fatalf("pullRequests = %v", body["pullRequests"])
	}
	stats, ok := body["stats"].(map[string]any)
	if !ok || stats["totalPRs"] != float64(3) || stats["draftPRs"] != float64(1) || stats["highRiskPRs"] != float64(1) {
		t.Errorf("stats should cover the whole list: %v", stats)
	}

	code, _ = serve(t, s, http.MethodGet, "/api/v1/repos/acme/payments/pulls?per_page=abc")
	if code != http.StatusBadRequest {
		t.Errorf("bad per_page: status %d", code)
	}
}

func TestPullsEndpoint_RateLimited(t *testing.T) {
	gh := &stubGitHub{listErr: &types.Error{Kind: types.KindRateLimited, Message: "GitHub API rate limit exceeded.", WaitMinutes: 3, RequiresAuth: true}}
	s := newTestServer(gh, &stubBackend{}, testutil.NewMockCache())

	code, body := serve(t, s, http.MethodGet, "/api/v1/repos/acme/payments/pulls")
	if code != http.StatusTooManyRequests {
		t.Errorf("status = %d", code)
	}
	if body["waitMinutes"] != float64(3) || body["requiresAuth"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	recs := []types.TestRecommendation{
		{ID: "r1", Title: "Charge card", Type: types.TestUnit, Priority: types.LevelLow},
		{ID: "r2", Title: "Reject email", Type: types.TestUnit, Priority: types.LevelHigh},
		{ID: "r3", Title: "Checkout", Type: types.TestE2E, Priority: types.LevelHigh},
		{ID: "r4", Title: "Refund", Type: types.TestUnit, Priority: types.LevelMedium},
	}
	s := newTestServer(&stubGitHub{}, &stubBackend{recs: &analysis.RecommendationsResult{Recommendations: recs, Fallback: true}}, testutil.NewMockCache())

	code, body := serve(t, s, http.MethodGet, "/api/v1/recommendations?url=https://github.com/acme/payments/pull/3&page_size=2")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 2 || body["total"] != float64(3) || body["fallback"] != true {
		t.Fatalf("unexpected page %v", body)
	}
	if first, ok := items[0].(map[string]any); !ok || first["id"] != "r2" {
		t.Errorf("expected high priority unit test first, got %v", items[0])
	}

	_, body = serve(t, s, http.MethodGet, "/api/v1/recommendations?url=https://gitlab.com/acme/payments/-/merge_requests/3&type=all&page=2&page_size=3")
	if items, ok := body["items"].([]any); !ok || len(items) != 1 || body["prId"] != "payments_3" {
		t.Errorf("unexpected second page %v", body)
	}

	code, _ = serve(t, s, http.MethodGet, "/api/v1/recommendations?url=nope")
	if code != http.StatusBadRequest {
		t.Errorf("invalid url: status %d", code)
	}
}

func TestRecommendationsEndpoint_BackendError(t *testing.T) {
	backend := &stubBackend{err: &analysis.BackendError{Category: analysis.CategoryNoFiles, Message: "No files found for PR: payments_3", StatusCode: 404}}
	s := newTestServer(&stubGitHub{}, backend, testutil.NewMockCache())

	code, body := serve(t, s, http.MethodGet, "/api/v1/recommendations?url=https://github.com/acme/payments/pull/3")
	if code != http.StatusNotFound || body["category"] != string(analysis.CategoryNoFiles) {
		t.Errorf("status %d body %v", code, body)
	}
}

func TestCacheAndRateLimitEndpoints(t *testing.T) {
	store := testutil.NewMockCache()
	store.Set("pull:acme:payments:1", []byte("{}"))
	store.Set("repo:acme:payments", []byte("{}"))
	gh := &stubGitHub{state: types.RateLimitState{Limit: 5000, Remaining: 4999}}
	s := newTestServer(gh, &stubBackend{}, store)

	_, body := serve(t, s, http.MethodGet, "/api/v1/cache/stats")
	if body["totalItems"] != float64(2) {
		t.Errorf("stats = %v", body)
	}
	_, body = serve(t, s, http.MethodDelete, "/api/v1/cache?pattern=pull:")
	if body["removed"] != float64(1) {
		t.Errorf("clear = %v", body)
	}
	_, body = serve(t, s, http.MethodGet, "/api/v1/ratelimit")
	if body["remaining"] != float64(4999) {
		t.Errorf("ratelimit = %v", body)
	}
	code, body := serve(t, s, http.MethodGet, "/healthz")
	if code != http.StatusOK || body["status"] != "ok" || body["events"] == nil {
		t.Errorf("healthz = %d %v", code, body)
	}
	code, _ = serve(t, s, http.MethodGet, "/metrics")
	if code != http.StatusOK {
		t.Errorf("metrics status = %d", code)
	}
}
