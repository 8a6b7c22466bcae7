package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/riskboard/pkg/cache"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// PR-related constants.
const (
	perPageLimit   = 100 // GitHub API per_page limit
	defaultPerPage = 30
	maxFilePages   = 30 // GitHub stops listing files after 3000
)

// User is a GitHub account as embedded in API responses.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type,omitempty"`
}

// Branch is a pull request head or base reference.
type Branch struct {
	Repo *struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repo"`
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// Label is an issue label.
type Label struct {
	Name string `json:"name"`
}

// PullRequest is the GitHub pull request resource.
type PullRequest struct {
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MergedAt     *time.Time `json:"merged_at"`
	User         User       `json:"user"`
	Head         Branch     `json:"head"`
	Base         Branch     `json:"base"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	State        string     `json:"state"`
	HTMLURL      string     `json:"html_url"`
	Labels       []Label    `json:"labels"`
	ID           int64      `json:"id"`
	Number       int        `json:"number"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	Merged       bool       `json:"merged"`
	Draft        bool       `json:"draft"`
}

// File is one entry of a pull request's changed-file list.
type File struct {
	SHA       string `json:"sha"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Patch     string `json:"patch,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

func validateRepo(owner, repo string) error {
	if owner == "" || repo == "" {
		return types.Validationf("owner and repository are required")
	}
	return nil
}

// PullRequests lists pull requests of owner/repo in the given state (open, closed, all).
func (c *Client) PullRequests(ctx context.Context, owner, repo, state string, perPage int) ([]PullRequest, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	if state == "" {
		state = "open"
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, perPageLimit)

	q := url.Values{}
	q.Set("state", state)
	q.Set("per_page", strconv.Itoa(perPage))
	path := fmt.Sprintf("/repos/%s/%s/pulls?%s", url.PathEscape(owner), url.PathEscape(repo), q.Encode())

	slog.Info("Fetching pull requests", "component", "api", "owner", owner, "repo", repo, "state", state)
	var prs []PullRequest
	if err := c.getJSON(ctx, cache.Key("pulls", owner, repo, state, perPage), owner, repo, path, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// PullRequest fetches a single pull request.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	if number <= 0 {
		return nil, types.Validationf("invalid pull request number %d", number)
	}

	slog.Info("Fetching pull request", "component", "api", "owner", owner, "repo", repo, "pr", number)
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", url.PathEscape(owner), url.PathEscape(repo), number)
	var pr PullRequest
	if err := c.getJSON(ctx, cache.Key("pull", owner, repo, number), owner, repo, path, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// PRFiles fetches the changed files of a pull request, following pagination.
func (c *Client) PRFiles(ctx context.Context, owner, repo string, number int) ([]File, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	if number <= 0 {
		return nil, types.Validationf("invalid pull request number %d", number)
	}

	slog.Info("Fetching pull request files", "component", "api", "owner", owner, "repo", repo, "pr", number)
	var all []File
	for page := 1; page <= maxFilePages; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d",
			url.PathEscape(owner), url.PathEscape(repo), number, perPageLimit, page)
		var files []File
		if err := c.getJSON(ctx, cache.Key("files", owner, repo, number, page), owner, repo, path, &files); err != nil {
			if page > 1 {
				slog.Warn("Failed to fetch additional file page, returning partial list", "component", "api", "pr", number, "page", page, "error", err)
				return all, nil
			}
			return nil, err
		}
		all = append(all, files...)
		if len(files) < perPageLimit {
			break
		}
	}
	return all, nil
}
