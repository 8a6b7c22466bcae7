// Package main implements a CLI that prints the risk dashboard for a pull request or repository.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/riskboard/pkg/app"
	"github.com/codeGROOVE-dev/riskboard/pkg/config"
	"github.com/codeGROOVE-dev/riskboard/pkg/dashboard"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

var (
	envFile  = flag.String("env", config.DefaultEnvFile, "Path to an optional .env file")
	verbose  = flag.Bool("v", false, "Verbose output with detailed diagnostics")
	jsonOut  = flag.Bool("json", false, "Print JSON instead of text")
	state    = flag.String("state", "open", "Pull request state for list (open, closed, all)")
	perPage  = flag.Int("per-page", 30, "Maximum pull requests to list")
	maxRecs  = flag.Int("recs", 5, "Maximum test recommendations to print")
	legacy   = flag.Bool("legacy-scale", false, "Print risk scores on the 0-10 scale")
	deadline = flag.Duration("timeout", 2*time.Minute, "Overall command timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  analyze <pr-url>     Risk analysis of one pull request\n")
		fmt.Fprintf(os.Stderr, "  list <owner/repo>    Pull requests of a repository with risk scores\n")
		fmt.Fprintf(os.Stderr, "  ratelimit            Remaining GitHub API quota\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s analyze https://github.com/owner/repo/pull/123\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -state all list owner/repo\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *deadline)
	defer cancel()

	c, err := app.Build(ctx, cfg, app.Options{Logger: logger, GHFallback: true})
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, c, os.Stdout, flag.Arg(0), flag.Args()[1:]); err != nil {
		slog.Error("Command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *app.Components, w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "analyze":
		if len(args) != 1 {
			return errors.New("analyze takes exactly one pull request URL")
		}
		res, err := c.Analyzer.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(w, res)
		}
		printAnalysis(w, res)
		return nil

	case "list":
		if len(args) != 1 {
			return errors.New("list takes exactly one owner/repo")
		}
		owner, repo, ok := strings.Cut(args[0], "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return types.Validationf("invalid repository %q (expected owner/repo)", args[0])
		}
		list, err := c.Analyzer.ListPullRequests(ctx, owner, repo, *state, *perPage)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(w, list)
		}
		printList(w, list)
		return nil

	case "ratelimit":
		rl, err := c.GitHub.RateLimit(ctx)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(w, rl)
		}
		fmt.Fprintf(w, "Remaining: %d/%d (resets %s)\n", rl.Remaining, rl.Limit, rl.ResetAt().Format(time.RFC3339))
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func score(s float64) string {
	if *legacy {
		return fmt.Sprintf("%.1f/10", types.ToLegacyScale(s))
	}
	return fmt.Sprintf("%.0f/100", s)
}

func printAnalysis(w io.Writer, a *dashboard.Analysis) {
	if pr := a.PullRequest; pr != nil {
		fmt.Fprintf(w, "\nPull Request: %s #%d\n", pr.Repository.FullName, pr.Number)
		fmt.Fprintf(w, "   Title: %s\n", pr.Title)
		fmt.Fprintf(w, "   Author: %s\n", pr.Author.Username)
		fmt.Fprintf(w, "   Status: %s\n", pr.Status)
		if pr.Draft {
			fmt.Fprintf(w, "   Draft: yes\n")
		}
		fmt.Fprintf(w, "   Risk: %s (%s, from %s)\n", score(pr.RiskScore), a.RiskLevel, pr.RiskSource)
		fmt.Fprintf(w, "   Changes: +%d -%d in %d files\n", pr.Additions, pr.Deletions, pr.ChangedFiles)
	}
	if a.CI != nil {
		fmt.Fprintf(w, "   Checks: %d passed, %d failed, %d pending\n", a.CI.Passed, a.CI.Failed, a.CI.Pending)
	}
	if a.Summary != nil {
		fmt.Fprintf(w, "\nSummary: %s\n", a.Summary.OverallAssessment)
	}

	if len(a.Modules) > 0 {
		fmt.Fprintf(w, "\nImpacted modules:\n")
		for i := range a.Modules {
			m := &a.Modules[i]
			fmt.Fprintf(w, "   %-30s %-6s %d lines\n", m.Name, m.RiskLevel, m.Metrics.LinesChanged)
		}
	}

	if len(a.Recommendations) > 0 {
		recs := normalize.SortRecommendations(a.Recommendations, normalize.SortPriority, true)
		n := min(*maxRecs, len(recs))
		fmt.Fprintf(w, "\nTop %d of %d test recommendations:\n", n, len(recs))
		for i := range recs[:n] {
			r := &recs[i]
			fmt.Fprintf(w, "%d. [%s] %s (%s %s)\n", i+1, r.Priority, r.Title, r.TestCode.Language, r.TestCode.Framework)
		}
	}

	if a.Fallback {
		fmt.Fprintf(w, "\nNote: analysis backend unreachable, sample data shown.\n")
	}
	for source, e := range a.Errors {
		fmt.Fprintf(w, "Unavailable %s: %s\n", source, e.Message)
	}
}

func printList(w io.Writer, l *dashboard.PullRequestList) {
	for i := range l.PullRequests {
		pr := &l.PullRequests[i]
		draft := ""
		if pr.Draft {
			draft = " (draft)"
		}
		fmt.Fprintf(w, "#%-6d %-9s %-10s @%-16s %s%s\n", pr.Number, score(pr.RiskScore), pr.Status, pr.Author.Username, pr.Title, draft)
	}
	s := l.Stats
	fmt.Fprintf(w, "\n%d pull requests, %d open, %d draft, %d high risk, average risk %s\n",
		s.TotalPRs, s.OpenPRs, s.DraftPRs, s.HighRiskPRs, score(s.AverageRiskScore))
	if l.DetailErrors > 0 {
		fmt.Fprintf(w, "%d pull requests shown without change counts\n", l.DetailErrors)
	}
}
