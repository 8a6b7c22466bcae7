package github

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// statusError maps a non-2xx GitHub response to a *types.Error.
func (c *Client) statusError(resp *response) *types.Error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(resp.body, &payload) //nolint:errcheck // message is optional

	switch {
	case resp.status == http.StatusUnauthorized:
		return &types.Error{
			Kind:         types.KindAuthRequired,
			Message:      "Authentication required. Provide a valid GitHub personal access token.",
			StatusCode:   resp.status,
			RequiresAuth: true,
		}
	case resp.status == http.StatusTooManyRequests,
		resp.status == http.StatusForbidden && isRateLimited(resp.header, payload.Message):
		state, _ := rateLimitFromHeader(resp.header)
		state.LastCheckedAt = c.clock.Now()
		e := c.rateLimitedError(&state, waitMinutes(state, c.clock.Now().Unix()))
		e.StatusCode = resp.status
		return e
	case resp.status == http.StatusForbidden:
		return &types.Error{
			Kind:         types.KindAuthRequired,
			Message:      "Access forbidden. Check that the token has the repo or public_repo scope.",
			StatusCode:   resp.status,
			RequiresAuth: true,
		}
	case resp.status == http.StatusNotFound:
		return &types.Error{
			Kind:       types.KindNotFound,
			Message:    "Pull request or repository not found. Check the URL, or provide a token for private repositories.",
			StatusCode: resp.status,
		}
	case resp.status == http.StatusUnprocessableEntity:
		return &types.Error{
			Kind:       types.KindValidation,
			Message:    "Invalid request. Check the pull request URL format.",
			StatusCode: resp.status,
		}
	case resp.status >= http.StatusInternalServerError:
		return &types.Error{
			Kind:       types.KindUpstream,
			Message:    fmt.Sprintf("GitHub is unavailable (status %d). Retry later.", resp.status),
			StatusCode: resp.status,
		}
	default:
		msg := fmt.Sprintf("GitHub API error: %d", resp.status)
		if payload.Message != "" {
			msg += " - " + payload.Message
		}
		return &types.Error{Kind: types.KindUpstream, Message: msg, StatusCode: resp.status}
	}
}

func isRateLimited(h http.Header, message string) bool {
	return strings.Contains(strings.ToLower(message), "rate limit") || h.Get("X-RateLimit-Remaining") == "0"
}

// rateLimitedError builds the RateLimited error, with remediation that depends on
// whether the client has a credential configured.
func (c *Client) rateLimitedError(state *types.RateLimitState, wait int) *types.Error {
	msg := "GitHub API rate limit exceeded."
	if wait > 0 {
		msg += fmt.Sprintf(" Try again in %d minute(s).", wait)
	}
	if !c.Authenticated() {
		msg += " Provide a GitHub token for a higher limit."
	}
	return &types.Error{
		Kind:         types.KindRateLimited,
		Message:      msg,
		RateLimit:    state,
		WaitMinutes:  wait,
		RequiresAuth: !c.Authenticated(),
	}
}

// waitMinutes returns the whole minutes until the quota resets, rounded up.
func waitMinutes(state types.RateLimitState, nowUnix int64) int {
	secs := state.ResetEpochSeconds - nowUnix
	if secs <= 0 {
		return 0
	}
	return int(math.Ceil(float64(secs) / 60))
}
