package normalize

import (
	"fmt"
	"path"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

const componentConfidence = 0.9

// ImpactedModules builds the impacted-module list for a pull request.
// Backend affected components are used exclusively when present; otherwise one
// module is inferred per unique file name, with estimated confidence and metrics.
func ImpactedModules(components []types.AffectedComponent, files []types.FileChange, est *Estimator) []types.ImpactedModule {
	if len(components) > 0 {
		return modulesFromComponents(components)
	}
	return modulesFromFiles(files, est)
}

func modulesFromComponents(components []types.AffectedComponent) []types.ImpactedModule {
	out := make([]types.ImpactedModule, 0, len(components))
	for i, c := range components {
		name := c.Name
		if name == "" {
			name = strings.TrimSuffix(path.Base(c.FilePath), path.Ext(c.FilePath))
		}
		level := criticalityLevel(c.Criticality)

		factors := []string{}
		if c.BusinessImpact != "" {
			factors = append(factors, c.BusinessImpact)
		}
		if c.Criticality != "" {
			factors = append(factors, "Criticality: "+c.Criticality)
		}

		affected := []string{}
		if c.FilePath != "" {
			affected = append(affected, c.FilePath)
		}
		deps := c.Dependencies
		if deps == nil {
			deps = []string{}
		}

		desc := c.Description
		if desc == "" {
			desc = fmt.Sprintf("%s identified as affected by this change", name)
		}

		out = append(out, types.ImpactedModule{
			ID:             fmt.Sprintf("component-%d", i+1),
			Name:           name,
			RiskLevel:      level,
			Confidence:     componentConfidence,
			Description:    desc,
			AffectedFiles:  affected,
			Dependencies:   deps,
			RiskFactors:    factors,
			ComponentType:  c.ComponentType,
			BusinessImpact: c.BusinessImpact,
			FilePath:       c.FilePath,
			Metrics:        types.ModuleMetrics{LinesChanged: c.LinesChanged},
		})
	}
	return out
}

func criticalityLevel(criticality string) types.Level {
	switch strings.ToLower(strings.TrimSpace(criticality)) {
	case "critical", "high":
		return types.LevelHigh
	case "low", "minor":
		return types.LevelLow
	default:
		return types.LevelMedium
	}
}

func modulesFromFiles(files []types.FileChange, est *Estimator) []types.ImpactedModule {
	out := []types.ImpactedModule{}
	seen := make(map[string]int)

	for _, f := range files {
		name := f.FileName
		if name == "" {
			name = path.Base(f.FilePath)
		}
		if name == "" || name == "." {
			continue
		}
		if idx, ok := seen[name]; ok {
			m := &out[idx]
			m.AffectedFiles = append(m.AffectedFiles, f.FilePath)
			m.Metrics.LinesChanged += f.Additions + f.Deletions
			continue
		}
		seen[name] = len(out)

		level := fileRiskLevel(name)
		out = append(out, types.ImpactedModule{
			ID:            fmt.Sprintf("module-%d", len(out)+1),
			Name:          strings.TrimSuffix(name, path.Ext(name)),
			RiskLevel:     level,
			Confidence:    est.Float(0.7, 1.0),
			Description:   fmt.Sprintf("Changes in %s", f.FilePath),
			AffectedFiles: []string{f.FilePath},
			Dependencies:  []string{},
			RiskFactors:   fileRiskFactors(level),
			FilePath:      f.FilePath,
			Metrics: types.ModuleMetrics{
				LinesChanged:       f.Additions + f.Deletions,
				FunctionsModified:  est.Int(1, 5),
				TestCoverageImpact: est.Int(-10, 10),
			},
			Estimated: true,
		})
	}
	return out
}

func fileRiskLevel(name string) types.Level {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "service"), strings.Contains(lower, "controller"):
		return types.LevelHigh
	case strings.Contains(lower, "test"), strings.Contains(lower, "util"), strings.Contains(lower, "helper"):
		return types.LevelLow
	default:
		return types.LevelMedium
	}
}

func fileRiskFactors(level types.Level) []string {
	switch level {
	case types.LevelHigh:
		return []string{"Core business logic modified", "Request handling path changed"}
	case types.LevelLow:
		return []string{"Supporting code changed"}
	default:
		return []string{"Application code modified"}
	}
}
