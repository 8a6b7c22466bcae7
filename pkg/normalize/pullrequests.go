package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// HighRiskThreshold is the 0-100 score at which a pull request counts as high risk.
const HighRiskThreshold = 70

// SummarizePullRequest converts a GitHub pull request into the dashboard summary.
// The risk score comes from RiskScoreHeuristic, converted to the 0-100 scale.
func SummarizePullRequest(pr *github.PullRequest, owner, repo string) types.PullRequestSummary {
	if pr == nil {
		return types.PullRequestSummary{}
	}

	status := types.StatusOpen
	switch {
	case pr.Merged || pr.MergedAt != nil:
		status = types.StatusMerged
	case pr.State == "closed":
		status = types.StatusClosed
	}

	displayName := pr.User.Name
	if displayName == "" {
		displayName = pr.User.Login
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.Name)
	}

	score := RiskScoreHeuristic(RiskInput{
		Title:        pr.Title,
		Body:         pr.Body,
		Additions:    pr.Additions,
		Deletions:    pr.Deletions,
		ChangedFiles: pr.ChangedFiles,
		Draft:        pr.Draft,
	})

	return types.PullRequestSummary{
		ID:          fmt.Sprintf("%s_%d", repo, pr.Number),
		URL:         pr.HTMLURL,
		Number:      pr.Number,
		Title:       pr.Title,
		Description: pr.Body,
		Author: types.Author{
			Username:    pr.User.Login,
			DisplayName: displayName,
			AvatarURL:   pr.User.AvatarURL,
		},
		Status:       status,
		CreatedAt:    pr.CreatedAt,
		UpdatedAt:    pr.UpdatedAt,
		SourceBranch: pr.Head.Ref,
		TargetBranch: pr.Base.Ref,
		Repository: types.RepositoryRef{
			Name:     repo,
			Owner:    owner,
			FullName: owner + "/" + repo,
			Platform: types.PlatformGitHub,
		},
		RiskScore:    types.FromLegacyScale(score),
		RiskSource:   types.RiskFromHeuristic,
		Draft:        pr.Draft,
		Additions:    pr.Additions,
		Deletions:    pr.Deletions,
		ChangedFiles: pr.ChangedFiles,
		Labels:       labels,
	}
}

// Tab is a pull request list view.
type Tab string

// List tabs.
const (
	TabAll      Tab = "all"
	TabOpen     Tab = "open"
	TabDraft    Tab = "draft"
	TabHighRisk Tab = "high-risk"
)

// PRFilter selects pull requests. Zero fields match everything.
type PRFilter struct {
	Search string
	Status types.PRStatus
	Author string
	Tab    Tab
}

// FilterPullRequests returns the pull requests matching f, in order.
// Search is case-insensitive over title and author.
func FilterPullRequests(prs []types.PullRequestSummary, f PRFilter) []types.PullRequestSummary {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := []types.PullRequestSummary{}
	for i := range prs {
		pr := &prs[i]
		if term != "" &&
			!strings.Contains(strings.ToLower(pr.Title), term) &&
			!strings.Contains(strings.ToLower(pr.Author.Username), term) &&
			!strings.Contains(strings.ToLower(pr.Author.DisplayName), term) {
			continue
		}
		if f.Status != "" && pr.Status != f.Status {
			continue
		}
		if f.Author != "" && !strings.EqualFold(pr.Author.Username, f.Author) {
			continue
		}
		switch f.Tab {
		case TabOpen:
			if pr.Status != types.StatusOpen || pr.Draft {
				continue
			}
		case TabDraft:
			if !pr.Draft {
				continue
			}
		case TabHighRisk:
			if pr.RiskScore < HighRiskThreshold {
				continue
			}
		default:
		}
		out = append(out, *pr)
	}
	return out
}

// Stats aggregates a pull request list. The average risk score is rounded to a whole number.
func Stats(prs []types.PullRequestSummary) types.DashboardStats {
	s := types.DashboardStats{TotalPRs: len(prs)}
	if len(prs) == 0 {
		return s
	}
	var total float64
	for i := range prs {
		pr := &prs[i]
		if pr.Status == types.StatusOpen && !pr.Draft {
			s.OpenPRs++
		}
		if pr.Draft {
			s.DraftPRs++
		}
		if pr.RiskScore >= HighRiskThreshold {
			s.HighRiskPRs++
		}
		total += pr.RiskScore
	}
	s.AverageRiskScore = math.Round(total / float64(len(prs)))
	return s
}
