package normalize

import "regexp"

const (
	baseRiskScore = 3.0
	minRiskScore  = 1.0
	maxRiskScore  = 10.0
)

// RiskInput is the pull request data the heuristic looks at.
type RiskInput struct {
	Title        string
	Body         string
	Additions    int
	Deletions    int
	ChangedFiles int
	Draft        bool
}

type keywordWeight struct {
	pattern *regexp.Regexp
	weight  float64
}

var riskKeywords = []keywordWeight{
	{regexp.MustCompile(`(?i)\bwip\b|work in progress`), 0.5},
	{regexp.MustCompile(`(?i)do[ -]not[ -]merge|\bdnm\b`), 0.5},
	{regexp.MustCompile(`(?i)\bbreaking\b|\bmajor\b`), 1.0},
	{regexp.MustCompile(`(?i)security|\bauth|vulnerab|\bcve-`), 1.0},
	{regexp.MustCompile(`(?i)database|migration|\bschema\b|\bsql\b`), 1.0},
	{regexp.MustCompile(`(?i)\b(ai|ml|llm)\b|machine learning|\bmodel\b`), 0.5},
}

// RiskScoreHeuristic estimates pull request risk on the 0-10 scale when the backend has no score.
// The result is in [1, 10] and never decreases as the change volume grows.
func RiskScoreHeuristic(in RiskInput) float64 {
	score := baseRiskScore

	switch volume := in.Additions + in.Deletions; {
	case volume > 500:
		score += 2.0
	case volume > 200:
		score += 1.0
	case volume > 100:
		score += 0.5
	}

	switch {
	case in.ChangedFiles > 10:
		score += 1.5
	case in.ChangedFiles > 5:
		score += 0.5
	}

	text := in.Title + "\n" + in.Body
	for _, k := range riskKeywords {
		if k.pattern.MatchString(text) {
			score += k.weight
		}
	}

	if in.Draft {
		score += 0.5
	}

	return min(max(score, minRiskScore), maxRiskScore)
}

// Scale is the range a risk score is expressed in.
type Scale int

// Score scales.
const (
	Scale100 Scale = iota // internal 0-100 scale
	Scale10               // legacy 0-10 display scale
)

// RiskLevel is the display bucket of a risk score.
type RiskLevel string

// Risk levels.
const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high-risk"
	RiskMedium   RiskLevel = "medium-risk"
	RiskLow      RiskLevel = "low-risk"
)

// RiskLevelFromScore buckets score; the 0-10 scale has no critical bucket.
func RiskLevelFromScore(score float64, scale Scale) RiskLevel {
	if scale == Scale10 {
		switch {
		case score >= 8:
			return RiskHigh
		case score >= 6:
			return RiskMedium
		default:
			return RiskLow
		}
	}
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
