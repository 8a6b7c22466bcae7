package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

const maxDetailFetches = 5

// PullRequestList is the dashboard's pull request table.
type PullRequestList struct {
	PullRequests []types.PullRequestSummary `json:"pullRequests"`
	Stats        types.DashboardStats       `json:"stats"`
	// DetailErrors counts pull requests shown with list-level data only.
	DetailErrors int `json:"detailErrors"`
}

// ListPullRequests lists pull requests and enriches each with its detail
// resource, which carries the change counts the list omits. A failed detail
// fetch keeps the list entry. Only a failure of the list itself is returned.
func (a *Analyzer) ListPullRequests(ctx context.Context, owner, repo, state string, perPage int) (*PullRequestList, error) {
	prs, err := a.github.PullRequests(ctx, owner, repo, state, perPage)
	if err != nil {
		return nil, err
	}

	out := make([]types.PullRequestSummary, len(prs))
	failed := make([]bool, len(prs))
	sem := make(chan struct{}, maxDetailFetches)
	var wg sync.WaitGroup
	for i := range prs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := &prs[i]
			detail, err := a.github.PullRequest(ctx, owner, repo, item.Number)
			if err != nil {
				slog.Debug("Using list data for pull request", "component", "dashboard", "owner", owner, "repo", repo, "pr", item.Number, "error", err)
				failed[i] = true
				detail = item
			}
			out[i] = normalize.SummarizePullRequest(detail, owner, repo)
		}(i)
	}
	wg.Wait()

	list := &PullRequestList{PullRequests: out, Stats: normalize.Stats(out)}
	for _, f := range failed {
		if f {
			list.DetailErrors++
		}
	}
	if list.DetailErrors > 0 {
		slog.Warn("Some pull request details could not be fetched", "component", "dashboard", "owner", owner, "repo", repo, "failed", list.DetailErrors, "total", len(prs))
	}
	return list, nil
}
