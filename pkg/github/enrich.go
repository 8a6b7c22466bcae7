package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// prxData is the subset of a prx pull request result used for the CI view.
type prxData struct {
	PullRequest struct {
		MergeableState string `json:"mergeable_state"`
	} `json:"pull_request"`
	Events []struct {
		Kind    string `json:"kind"`
		Outcome string `json:"outcome"`
	} `json:"events"`
}

// CIStatus summarizes check runs and status checks of a pull request.
// It returns nil without error when no prx client is configured.
func (c *Client) CIStatus(ctx context.Context, owner, repo string, number int) (*types.CISummary, error) {
	if c.prxClient == nil {
		return nil, nil //nolint:nilnil // no enrichment source is not an error
	}

	result, err := c.prxClient.PullRequestWithReferenceTime(ctx, owner, repo, number, c.clock.Now())
	if err != nil {
		slog.Warn("Failed to fetch CI data", "component", "api", "owner", owner, "repo", repo, "pr", number, "error", err)
		return nil, fmt.Errorf("fetching CI data: %w", err)
	}

	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding prx result: %w", err)
	}
	var data prxData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decoding prx result: %w", err)
	}
	return summarizeChecks(data), nil
}

func summarizeChecks(data prxData) *types.CISummary {
	s := &types.CISummary{MergeableState: data.PullRequest.MergeableState}
	for _, e := range data.Events {
		if e.Kind != "check_run" && e.Kind != "status_check" {
			continue
		}
		s.Total++
		switch strings.ToLower(e.Outcome) {
		case "success", "neutral", "skipped":
			s.Passed++
		case "failure", "error", "cancelled", "timed_out", "action_required":
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}
