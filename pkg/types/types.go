// Package types contains the dashboard view model shared across packages.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

import "time"

// Platform identifies the code hosting provider a pull request lives on.
type Platform string

// Supported hosting platforms.
const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// PRStatus is the display status of a pull request.
type PRStatus string

// Pull request statuses.
const (
	StatusOpen   PRStatus = "open"
	StatusClosed PRStatus = "closed"
	StatusMerged PRStatus = "merged"
)

// RiskSource records where a pull request's risk score came from.
type RiskSource string

// Risk score sources.
const (
	RiskFromHeuristic RiskSource = "heuristic"
	RiskFromBackend   RiskSource = "backend"
)

// Author is the display identity of a pull request author.
type Author struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// RepositoryRef identifies the repository a pull request belongs to.
type RepositoryRef struct {
	Name     string   `json:"name"`
	Owner    string   `json:"owner"`
	FullName string   `json:"fullName"`
	Platform Platform `json:"platform"`
}

// PullRequestSummary is the normalized pull request shown on the dashboard.
// RiskScore is always on the 0-100 scale; use LegacyScore for the 0-10 display.
type PullRequestSummary struct {
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Author       Author        `json:"author"`
	Repository   RepositoryRef `json:"repository"`
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       PRStatus      `json:"status"`
	SourceBranch string        `json:"sourceBranch"`
	TargetBranch string        `json:"targetBranch"`
	RiskSource   RiskSource    `json:"riskSource"`
	Labels       []string      `json:"labels,omitempty"`
	RiskScore    float64       `json:"riskScore"`
	Number       int           `json:"number"`
	Additions    int           `json:"additions"`
	Deletions    int           `json:"deletions"`
	ChangedFiles int           `json:"changedFiles"`
	Draft        bool          `json:"draft"`
}

// LegacyScore returns the risk score on the 0-10 display scale.
func (pr *PullRequestSummary) LegacyScore() float64 {
	return ToLegacyScale(pr.RiskScore)
}

// ToLegacyScale converts a 0-100 score to the 0-10 scale, rounded to one decimal.
func ToLegacyScale(score float64) float64 {
	return float64(int(score+0.5)) / 10
}

// FromLegacyScale converts a 0-10 score to the 0-100 scale.
func FromLegacyScale(score float64) float64 {
	return score * 10
}

// ChangeType classifies a single line-level change.
type ChangeType string

// Change types.
const (
	ChangeAddition     ChangeType = "addition"
	ChangeDeletion     ChangeType = "deletion"
	ChangeModification ChangeType = "modification"
)

// ChangeLine is one entry of a reconstructed diff.
type ChangeLine struct {
	Type       ChangeType `json:"type"`
	Content    string     `json:"content,omitempty"`
	OldContent string     `json:"oldContent,omitempty"`
	NewContent string     `json:"newContent,omitempty"`
	Context    string     `json:"context"`
	LineNumber int        `json:"lineNumber"`
}

// FileChange is a changed file with its reconstructed line changes.
// Estimated is set when Changes were synthesized because no patch was available.
type FileChange struct {
	FileName  string       `json:"fileName"`
	FilePath  string       `json:"filePath"`
	Status    string       `json:"status"`
	Changes   []ChangeLine `json:"changes"`
	ID        int          `json:"id"`
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
	Estimated bool         `json:"estimated"`
}

// Level is a coarse high/medium/low rating.
type Level string

// Levels.
const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// ModuleMetrics are the per-module change metrics.
type ModuleMetrics struct {
	LinesChanged       int `json:"linesChanged"`
	FunctionsModified  int `json:"functionsModified"`
	TestCoverageImpact int `json:"testCoverageImpact"`
}

// ImpactedModule is a unit of the codebase affected by a pull request.
type ImpactedModule struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	RiskLevel      Level         `json:"riskLevel"`
	Description    string        `json:"description"`
	ComponentType  string        `json:"componentType,omitempty"`
	BusinessImpact string        `json:"businessImpact,omitempty"`
	FilePath       string        `json:"filePath,omitempty"`
	AffectedFiles  []string      `json:"affectedFiles"`
	Dependencies   []string      `json:"dependencies"`
	RiskFactors    []string      `json:"riskFactors"`
	Metrics        ModuleMetrics `json:"metrics"`
	Confidence     float64       `json:"confidence"`
	Estimated      bool          `json:"estimated"`
}

// TestType is the kind of recommended test.
type TestType string

// Test types.
const (
	TestUnit        TestType = "unit"
	TestIntegration TestType = "integration"
	TestE2E         TestType = "e2e"
)

// EstimatedEffort is the expected cost of writing a test.
type EstimatedEffort struct {
	Complexity Level `json:"complexity"`
	Hours      int   `json:"hours"`
}

// Coverage describes the coverage gap a test addresses.
type Coverage struct {
	CurrentCoverage int `json:"currentCoverage"`
	TargetCoverage  int `json:"targetCoverage"`
	Gap             int `json:"gap"`
}

// TestCode is generated test source.
type TestCode struct {
	Language  string `json:"language"`
	Framework string `json:"framework"`
	Code      string `json:"code"`
}

// TestRecommendation is a generated test suggestion for a pull request.
type TestRecommendation struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Type            TestType        `json:"type"`
	Priority        Level           `json:"priority"`
	Description     string          `json:"description"`
	Rationale       string          `json:"rationale"`
	EstimatedTime   string          `json:"estimatedTime"`
	TestCode        TestCode        `json:"testCode"`
	TestCategories  []string        `json:"testCategories"`
	RelatedFiles    []string        `json:"relatedFiles"`
	EstimatedEffort EstimatedEffort `json:"estimatedEffort"`
	Coverage        Coverage        `json:"coverage"`
	Confidence      float64         `json:"confidence"`
}

// AnalysisSummary is the backend's aggregate view of a pull request.
// RiskScore is on the 0-100 scale.
type AnalysisSummary struct {
	SummaryData       map[string]any `json:"summaryData,omitempty"`
	Complexity        string         `json:"complexity,omitempty"`
	OverallAssessment string         `json:"overallAssessment"`
	RiskScore         float64        `json:"riskScore"`
	TestCoverage      float64        `json:"testCoverage"`
	TotalFiles        int            `json:"totalFiles"`
	LinesChanged      int            `json:"linesChanged"`
}

// CISummary is the check status rollup shown in the CI/CD view.
type CISummary struct {
	MergeableState string `json:"mergeableState,omitempty"`
	Total          int    `json:"total"`
	Passed         int    `json:"passed"`
	Failed         int    `json:"failed"`
	Pending        int    `json:"pending"`
}

// DashboardStats aggregates a list of pull requests.
type DashboardStats struct {
	AverageRiskScore float64 `json:"averageRiskScore"`
	TotalPRs         int     `json:"totalPRs"`
	OpenPRs          int     `json:"openPRs"`
	DraftPRs         int     `json:"draftPRs"`
	HighRiskPRs      int     `json:"highRiskPRs"`
}

// RateLimitState is the last known hosting API quota.
type RateLimitState struct {
	LastCheckedAt     time.Time `json:"lastCheckedAt"`
	Limit             int       `json:"limit"`
	Remaining         int       `json:"remaining"`
	Used              int       `json:"used"`
	ResetEpochSeconds int64     `json:"reset"`
}

// ResetAt returns the reset time as a time.Time.
func (s RateLimitState) ResetAt() time.Time {
	return time.Unix(s.ResetEpochSeconds, 0)
}

// BackendFile is one file entry returned by the analysis backend.
// Older backends send the generated tests under content or test_cases.
type BackendFile struct {
	ID            string `json:"id"`
	TestCases     string `json:"testCases,omitempty"`
	Content       string `json:"content,omitempty"`
	TestCasesFlat string `json:"test_cases,omitempty"`
}

// Code returns the first non-empty test source of the entry.
func (f BackendFile) Code() string {
	switch {
	case f.TestCases != "":
		return f.TestCases
	case f.TestCasesFlat != "":
		return f.TestCasesFlat
	default:
		return f.Content
	}
}

// AffectedComponent is a backend-identified unit of code impacted by a pull request.
type AffectedComponent struct {
	Name           string   `json:"name"`
	FilePath       string   `json:"file_path,omitempty"`
	ComponentType  string   `json:"component_type,omitempty"`
	Criticality    string   `json:"criticality"`
	BusinessImpact string   `json:"business_impact,omitempty"`
	Description    string   `json:"description,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	LinesChanged   int      `json:"lines_changed,omitempty"`
}
