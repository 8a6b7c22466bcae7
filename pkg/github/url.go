package github

import (
	"regexp"
	"strconv"
)

var prURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// PRReference identifies a pull request on GitHub.
type PRReference struct {
	Owner  string
	Repo   string
	Number int
}

// ExtractPRReference extracts the owner, repository and number from a GitHub pull request URL.
// It reports false when the URL does not match.
func ExtractPRReference(prURL string) (PRReference, bool) {
	m := prURLPattern.FindStringSubmatch(prURL)
	if m == nil {
		return PRReference{}, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil || n <= 0 {
		return PRReference{}, false
	}
	return PRReference{Owner: m[1], Repo: m[2], Number: n}, true
}
