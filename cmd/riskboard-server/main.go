// Package main serves the risk dashboard JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeGROOVE-dev/riskboard/pkg/app"
	"github.com/codeGROOVE-dev/riskboard/pkg/config"
	"github.com/codeGROOVE-dev/riskboard/pkg/events"
	"github.com/codeGROOVE-dev/riskboard/pkg/server"
)

var envFile = flag.String("env", config.DefaultEnvFile, "Path to an optional .env file")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Serves the pull request risk dashboard API.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_TOKEN                - Personal access token\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_ID               - GitHub App ID\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_KEY_PATH         - Path to GitHub App private key file\n")
		fmt.Fprintf(os.Stderr, "  BACKEND_BASE_URL            - Analysis backend (default: http://localhost:8080)\n")
		fmt.Fprintf(os.Stderr, "  BACKEND_FALLBACK            - Serve sample data while the backend is down\n")
		fmt.Fprintf(os.Stderr, "  EVENTS_ORG                  - Invalidate cached pull requests on events for this org\n")
		fmt.Fprintf(os.Stderr, "  SERVER_PORT                 - HTTP server port (default: 8081)\n")
	}
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		slog.Error("Invalid log level", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c, err := app.Build(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}

	deps := server.Deps{
		Analyzer: c.Analyzer,
		GitHub:   c.GitHub,
		Backend:  c.Backend,
		Cache:    c.Cache,
	}

	if cfg.Events.Org != "" {
		inv := events.New(cfg.Events.Org, c.Cache, c.GitHub)
		if err := inv.Start(ctx); err != nil {
			slog.Error("Failed to start event invalidation", "org", cfg.Events.Org, "error", err)
		} else {
			defer inv.Stop()
			deps.Health = inv.HealthStatus
		}
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           server.New(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTP.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr, "backend", cfg.Backend.BaseURL, "authenticated", c.GitHub.Authenticated())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
