package normalize

import (
	"cmp"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

var testMethodPattern = regexp.MustCompile(`(?:public\s+void|def|func|it\(|test\()\s*['"]?([Tt]est\w+)`)

// Recommendations converts backend file entries into unit test recommendations.
func Recommendations(files []types.BackendFile, est *Estimator) []types.TestRecommendation {
	out := make([]types.TestRecommendation, 0, len(files))
	for i, f := range files {
		fileName := f.ID
		if fileName == "" {
			fileName = fmt.Sprintf("file-%d", i)
		}
		code := f.Code()
		priority := testPriority(code)
		language, framework := testToolchain(fileName)
		hours := est.Int(1, 4)

		out = append(out, types.TestRecommendation{
			ID:       fmt.Sprintf("api-test-%d", i+1),
			Title:    testTitle(code, fileName),
			Type:     types.TestUnit,
			Priority: priority,
			EstimatedEffort: types.EstimatedEffort{
				Hours:      hours,
				Complexity: priority,
			},
			Confidence:  est.Float(0.7, 1.0),
			Description: fmt.Sprintf("Generated test case for %s module", strings.TrimSuffix(fileName, path.Ext(fileName))),
			Rationale:   fmt.Sprintf("This test ensures proper functionality and error handling for the %s component", fileName),
			Coverage: types.Coverage{
				CurrentCoverage: est.Int(40, 69),
				TargetCoverage:  est.Int(80, 99),
				Gap:             est.Int(10, 39),
			},
			TestCategories: CategoriesForTest(code, fileName),
			TestCode:       types.TestCode{Language: language, Framework: framework, Code: code},
			RelatedFiles:   []string{fileName},
			EstimatedTime:  fmt.Sprintf("%d hours", hours),
		})
	}
	return out
}

// testTitle turns "testProcessPayment_ValidInput" into "Process Payment Valid Input".
func testTitle(code, fileName string) string {
	m := testMethodPattern.FindStringSubmatch(code)
	if m == nil {
		return "Test for " + fileName
	}
	name := m[1][len("test"):]

	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_':
			b.WriteByte(' ')
		case unicode.IsUpper(r) && i > 0:
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	title := strings.Join(strings.Fields(b.String()), " ")
	if title == "" {
		return "Test for " + fileName
	}
	return title
}

func testPriority(code string) types.Level {
	switch {
	case strings.Contains(code, "Exception"), strings.Contains(code, "Failure"):
		return types.LevelHigh
	case strings.Contains(code, "Valid"), strings.Contains(code, "Success"):
		return types.LevelLow
	default:
		return types.LevelMedium
	}
}

func testToolchain(fileName string) (language, framework string) {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".py":
		return "python", "pytest"
	case ".ts", ".tsx":
		return "typescript", "jest"
	case ".js", ".jsx":
		return "javascript", "jest"
	case ".go":
		return "go", "testing"
	default:
		return "java", "junit"
	}
}

// CategoriesForTest derives category tags from generated test code and its file extension.
func CategoriesForTest(code, fileName string) []string {
	rules := []struct {
		category string
		terms    []string
	}{
		{"error-handling", []string{"Exception", "assertThrows"}},
		{"positive-testing", []string{"Valid", "Success"}},
		{"negative-testing", []string{"Invalid", "Failure"}},
		{"database-testing", []string{"Database", "Connection"}},
		{"business-logic", []string{"Payment", "Transaction"}},
		{"input-validation", []string{"User", "Validation"}},
	}

	categories := []string{}
	for _, r := range rules {
		for _, term := range r.terms {
			if strings.Contains(code, term) {
				categories = append(categories, r.category)
				break
			}
		}
	}
	if ext := strings.TrimPrefix(path.Ext(fileName), "."); ext != "" {
		categories = append(categories, strings.ToLower(ext)+"-testing")
	}
	if len(categories) == 0 {
		return []string{"unit-testing"}
	}
	return categories
}

// RecommendationFilter selects recommendations. Zero fields match everything.
type RecommendationFilter struct {
	Search string
	Type   types.TestType
}

// FilterRecommendations returns the recommendations matching f, in order.
// Search is case-insensitive over title, description and categories.
func FilterRecommendations(recs []types.TestRecommendation, f RecommendationFilter) []types.TestRecommendation {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := []types.TestRecommendation{}
	for i := range recs {
		r := &recs[i]
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if term != "" && !matchesRecommendation(r, term) {
			continue
		}
		out = append(out, *r)
	}
	return out
}

func matchesRecommendation(r *types.TestRecommendation, term string) bool {
	if strings.Contains(strings.ToLower(r.Title), term) || strings.Contains(strings.ToLower(r.Description), term) {
		return true
	}
	for _, c := range r.TestCategories {
		if strings.Contains(strings.ToLower(c), term) {
			return true
		}
	}
	return false
}

// SortField names a recommendation sort key.
type SortField string

// Sort keys.
const (
	SortPriority      SortField = "priority"
	SortConfidence    SortField = "confidence"
	SortEstimatedTime SortField = "estimatedTime"
	SortCoverage      SortField = "coverage"
	SortTitle         SortField = "title"
)

var priorityRank = map[types.Level]int{types.LevelHigh: 3, types.LevelMedium: 2, types.LevelLow: 1}

// SortRecommendations returns a sorted copy. Unknown fields sort by title.
func SortRecommendations(recs []types.TestRecommendation, field SortField, desc bool) []types.TestRecommendation {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b types.TestRecommendation) int {
		var c int
		switch field {
		case SortPriority:
			c = cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority])
		case SortConfidence:
			c = cmp.Compare(a.Confidence, b.Confidence)
		case SortEstimatedTime:
			c = cmp.Compare(a.EstimatedEffort.Hours, b.EstimatedEffort.Hours)
		case SortCoverage:
			c = cmp.Compare(a.Coverage.Gap, b.Coverage.Gap)
		default:
			c = strings.Compare(a.Title, b.Title)
		}
		if desc {
			return -c
		}
		return c
	})
	return out
}

// Paginate returns the 1-based page of items. Out-of-range pages are empty.
func Paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 {
		return []T{}
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}
