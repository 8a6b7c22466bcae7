package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

var (
	pullURLPattern  = regexp.MustCompile(`^https?://([^/]+)/([\w.-]+)/([\w.-]+)/pull/(\d+)`)
	mergeURLPattern = regexp.MustCompile(`^https?://([^/]+)/([\w.-]+)/([\w.-]+)(?:/.*)?/merge_requests/(\d+)`)
)

// RepositoryURL is a parsed pull or merge request URL.
type RepositoryURL struct {
	Platform types.Platform
	Host     string
	Owner    string
	Repo     string
	Number   int
}

// ParseRepositoryURL parses a pull request URL (".../owner/repo/pull/N") or a
// merge request URL (".../owner/repo/-/merge_requests/N"). It reports false for anything else.
func ParseRepositoryURL(raw string) (RepositoryURL, bool) {
	raw = strings.TrimSpace(raw)
	if m := pullURLPattern.FindStringSubmatch(raw); m != nil {
		return newRepositoryURL(m, types.PlatformGitHub)
	}
	if m := mergeURLPattern.FindStringSubmatch(raw); m != nil {
		return newRepositoryURL(m, types.PlatformGitLab)
	}
	return RepositoryURL{}, false
}

func newRepositoryURL(m []string, platform types.Platform) (RepositoryURL, bool) {
	n, err := strconv.Atoi(m[4])
	if err != nil {
		return RepositoryURL{}, false
	}
	if strings.Contains(m[1], "gitlab") {
		platform = types.PlatformGitLab
	}
	return RepositoryURL{Platform: platform, Host: m[1], Owner: m[2], Repo: m[3], Number: n}, true
}

// ID returns the backend identifier of the pull request, "repo_number".
func (u RepositoryURL) ID() string {
	return fmt.Sprintf("%s_%d", u.Repo, u.Number)
}

// PRID returns the backend identifier for a pull or merge request URL.
func PRID(raw string) (string, bool) {
	u, ok := ParseRepositoryURL(raw)
	if !ok {
		return "", false
	}
	return u.ID(), true
}
