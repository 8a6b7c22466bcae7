package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

func TestListPullRequests_DetailFallback(t *testing.T) {
	gh := &fakeGitHub{
		list: []github.PullRequest{
			{Number: 1, Title: "Small fix", State: "open", User: github.User{Login: "alice"}},
			{Number: 2, Title: "Large rewrite", State: "open", User: github.User{Login: "bob"}},
			{Number: 3, Title: "Draft idea", State: "open", Draft: true, User: github.User{Login: "carol"}},
		},
		details: map[int]*github.PullRequest{
			1: {Number: 1, Title: "Small fix", State: "open", Additions: 5, ChangedFiles: 1, User: github.User{Login: "alice"}},
			3: {Number: 3, Title: "Draft idea", State: "open", Draft: true, Additions: 700, ChangedFiles: 12, User: github.User{Login: "carol"}},
		},
		detailErr: map[int]error{
			2: &types.Error{Kind: types.KindRateLimited, Message: "rate limited"},
		},
	}
	a := NewAnalyzer(gh, &fakeBackend{}, nil)

	list, err := a.ListPullRequests(context.Background(), "acme", "payments", "open", 30)
	if err != nil {
		t.Fatalf("ListPullRequests: %v", err)
	}
	if len(list.PullRequests) != 3 || list.DetailErrors != 1 {
		t.Fatalf("got %d pull requests with %d detail errors", len(list.PullRequests), list.DetailErrors)
	}

	second := list.PullRequests[1]
	if second.Number != 2 || second.Title != "Large rewrite" || second.Author.Username != "bob" {
		t.Errorf("failed detail should keep list data: %+v", second)
	}
	if list.PullRequests[0].Additions != 5 {
		t.Errorf("detail data not used: %+v", list.PullRequests[0])
	}
	// 3.0 + 2.0 volume + 1.5 files + 0.5 draft
	if got := list.PullRequests[2].RiskScore; got != 70 {
		t.Errorf("draft risk score = %v, want 70", got)
	}

	want := types.DashboardStats{TotalPRs: 3, OpenPRs: 2, DraftPRs: 1, HighRiskPRs: 1, AverageRiskScore: 43}
	if list.Stats != want {
		t.Errorf("stats = %+v, want %+v", list.Stats, want)
	}
}

func TestListPullRequests_ListError(t *testing.T) {
	gh := &fakeGitHub{listErr: &types.Error{Kind: types.KindNotFound, Message: "not found"}}
	_, err := NewAnalyzer(gh, &fakeBackend{}, nil).ListPullRequests(context.Background(), "acme", "gone", "open", 30)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListPullRequests_Empty(t *testing.T) {
	list, err := NewAnalyzer(&fakeGitHub{}, &fakeBackend{}, nil).ListPullRequests(context.Background(), "acme", "payments", "open", 30)
	if err != nil {
		t.Fatal(err)
	}
	if list.PullRequests == nil || len(list.PullRequests) != 0 || list.Stats.TotalPRs != 0 {
		t.Errorf("unexpected empty list %+v", list)
	}
}
