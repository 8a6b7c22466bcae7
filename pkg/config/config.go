// Package config loads riskboard configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present; variables already set in the environment win.
const DefaultEnvFile = ".env"

const maxRetryAttempts = 10

// Config is the complete riskboard configuration.
type Config struct {
	GitHub   GitHubConfig   `mapstructure:"github"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Cache    CacheConfig    `mapstructure:"cache"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Server   ServerConfig   `mapstructure:"server"`
	Events   EventsConfig   `mapstructure:"events"`
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// GitHubConfig holds hosting API credentials. All of them are optional.
type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	AppID      string `mapstructure:"app_id"`
	AppKeyPath string `mapstructure:"app_key_path"`
	APIURL     string `mapstructure:"api_url"`
}

// BackendConfig locates the analysis backend.
type BackendConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Fallback bool   `mapstructure:"fallback"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Dir string        `mapstructure:"dir"`
	TTL time.Duration `mapstructure:"ttl"`
}

// HTTPConfig contains transport settings shared by both API clients.
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
}

// ServerConfig contains JSON API server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// EventsConfig enables event-driven cache invalidation for one organization.
type EventsConfig struct {
	Org string `mapstructure:"org"`
}

// LogConfig contains logger preferences.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AnalysisConfig controls placeholder values. A zero seed draws a fresh sequence per process.
type AnalysisConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// Load reads envFile (if it exists) into the environment and builds a validated Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if envMap, err := godotenv.Read(envFile); err == nil {
			for k, val := range envMap {
				if _, exists := os.LookupEnv(k); !exists {
					_ = os.Setenv(k, val) //nolint:errcheck // keys come from a parsed .env file
				}
			}
			slog.Debug("Loaded env file", "component", "config", "path", envFile, "keys", len(envMap))
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.fallback", false)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.dir", "")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.retry_attempts", 1)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("analysis.seed", 0)
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"github.token",
		"github.app_id",
		"github.app_key_path",
		"github.api_url",
		"backend.base_url",
		"backend.fallback",
		"cache.ttl",
		"cache.dir",
		"http.timeout",
		"http.retry_attempts",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"events.org",
		"log.level",
		"analysis.seed",
	}
	for _, k := range keys {
		_ = v.BindEnv(k) //nolint:errcheck // BindEnv only fails without a key
	}
}

// Validate checks the configuration for values the clients cannot work with.
func (c *Config) Validate() error {
	if c.GitHub.AppID != "" && c.GitHub.AppKeyPath == "" {
		return errors.New("GITHUB_APP_KEY_PATH is required when GITHUB_APP_ID is set")
	}
	if err := validateURL("GITHUB_API_URL", c.GitHub.APIURL); err != nil {
		return err
	}
	if err := validateURL("BACKEND_BASE_URL", c.Backend.BaseURL); err != nil {
		return err
	}
	if c.Cache.TTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.HTTP.RetryAttempts < 1 || c.HTTP.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("HTTP_RETRY_ATTEMPTS must be between 1 and %d", maxRetryAttempts)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("SERVER_PORT out of range")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
