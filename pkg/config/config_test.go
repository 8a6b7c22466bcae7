package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.APIURL != "https://api.github.com" || cfg.Backend.BaseURL != "http://localhost:8080" {
		t.Errorf("unexpected URLs: %+v %+v", cfg.GitHub, cfg.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute || cfg.HTTP.Timeout != 30*time.Second || cfg.HTTP.RetryAttempts != 1 {
		t.Errorf("unexpected transport defaults: %+v %+v", cfg.Cache, cfg.HTTP)
	}
	if cfg.Backend.Fallback {
		t.Error("fallback must be opt-in")
	}
	if cfg.ServerAddr() != "0.0.0.0:8081" {
		t.Errorf("ServerAddr() = %s", cfg.ServerAddr())
	}
	if level, err := cfg.SlogLevel(); err != nil || level != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_example")
	t.Setenv("BACKEND_BASE_URL", "https://analysis.internal")
	t.Setenv("BACKEND_FALLBACK", "true")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("HTTP_RETRY_ATTEMPTS", "3")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("EVENTS_ORG", "acme")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANALYSIS_SEED", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.Token != "ghp_example" || cfg.Backend.BaseURL != "https://analysis.internal" || !cfg.Backend.Fallback {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Cache.TTL != 90*time.Second || cfg.HTTP.RetryAttempts != 3 || cfg.Server.Port != 9000 {
		t.Errorf("unexpected values %+v %+v %+v", cfg.Cache, cfg.HTTP, cfg.Server)
	}
	if cfg.Events.Org != "acme" || cfg.Analysis.Seed != 42 {
		t.Errorf("events=%+v analysis=%+v", cfg.Events, cfg.Analysis)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("level = %v", level)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "EVENTS_ORG=from-file\nSERVER_PORT=7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// Variables already in the environment take precedence over the file.
	t.Setenv("SERVER_PORT", "7100")
	// Register cleanup for the variable the file introduces.
	t.Setenv("EVENTS_ORG", "")
	if err := os.Unsetenv("EVENTS_ORG"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Events.Org != "from-file" {
		t.Errorf("events org = %q, want value from file", cfg.Events.Org)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, environment should win", cfg.Server.Port)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("a missing env file should not be an error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"app without key", map[string]string{"GITHUB_APP_ID": "123"}, "GITHUB_APP_KEY_PATH"},
		{"relative backend", map[string]string{"BACKEND_BASE_URL": "analysis:8080/api"}, "BACKEND_BASE_URL"},
		{"bad api url", map[string]string{"GITHUB_API_URL": "ftp://github.example.com"}, "GITHUB_API_URL"},
		{"zero ttl", map[string]string{"CACHE_TTL": "0s"}, "CACHE_TTL"},
		{"too many retries", map[string]string{"HTTP_RETRY_ATTEMPTS": "50"}, "HTTP_RETRY_ATTEMPTS"},
		{"port", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"log level", map[string]string{"LOG_LEVEL": "chatty"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
