package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
)

// Repository is the GitHub repository resource.
type Repository struct {
	Owner           User   `json:"owner"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	DefaultBranch   string `json:"default_branch"`
	HTMLURL         string `json:"html_url"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	OpenIssuesCount int    `json:"open_issues_count"`
	Private         bool   `json:"private"`
}

// Repository fetches repository metadata.
func (c *Client) Repository(ctx context.Context, owner, repo string) (*Repository, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}

	slog.Info("Fetching repository", "component", "api", "owner", owner, "repo", repo)
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	var r Repository
	if err := c.getJSON(ctx, cache.Key("repo", owner, repo), owner, repo, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
