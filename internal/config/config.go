package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	Env      string `yaml:"env"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	// DatabaseURL is the SQLite DSN (file path plus query options).
	DatabaseURL string `yaml:"database_url"`
	AdminAPIKey string `yaml:"admin_api_key"`

	// DraftsPath is the badger directory for in-progress drafts.
	DraftsPath string `yaml:"drafts_path"`
	DraftTTL   string `yaml:"draft_ttl"`

	// RedisURL switches the security stores to Redis when set.
	RedisURL string `yaml:"redis_url"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CSRF      CSRFConfig      `yaml:"csrf"`
	Wizard    WizardConfig    `yaml:"wizard"`

	// SweepSchedule is a cron spec for the periodic cleanup job.
	SweepSchedule string `yaml:"sweep_schedule"`
}

type RateLimitConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

type CSRFConfig struct {
	TTL        string `yaml:"ttl"`
	MaxTokens  int    `yaml:"max_tokens"`
	KeepTokens int    `yaml:"keep_tokens"`
}

type WizardConfig struct {
	SaveAttempts   int    `yaml:"save_attempts"`
	SaveBackoff    string `yaml:"save_backoff"`
	SubmitCooldown string `yaml:"submit_cooldown"`
}

// Default returns a config with every optional value filled in. DatabaseURL
// and AdminAPIKey are left empty on purpose: they must be supplied.
func Default() *Config {
	return &Config{
		Env:           "development",
		Addr:          ":8080",
		LogLevel:      "info",
		DraftsPath:    "drafts",
		DraftTTL:      "720h",
		SweepSchedule: "@every 5m",
		RateLimit: RateLimitConfig{
			Limit:  5,
			Window: "1m",
		},
		CSRF: CSRFConfig{
			TTL:        "1h",
			MaxTokens:  1000,
			KeepTokens: 500,
		},
		Wizard: WizardConfig{
			SaveAttempts:   3,
			SaveBackoff:    "200ms",
			SubmitCooldown: "3s",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.AdminAPIKey = v
	}
	if v := os.Getenv("DRAFTS_PATH"); v != "" {
		c.DraftsPath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
}

// Validate fails on missing required values and unparsable durations.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("database_url (DATABASE_URL) is required"))
	}
	if strings.TrimSpace(c.AdminAPIKey) == "" {
		errs = append(errs, errors.New("admin_api_key (ADMIN_API_KEY) is required"))
	}
	for name, v := range map[string]string{
		"draft_ttl":              c.DraftTTL,
		"rate_limit.window":      c.RateLimit.Window,
		"csrf.ttl":               c.CSRF.TTL,
		"wizard.save_backoff":    c.Wizard.SaveBackoff,
		"wizard.submit_cooldown": c.Wizard.SubmitCooldown,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, errors.New("rate_limit.limit must be positive"))
	}
	if c.CSRF.KeepTokens <= 0 || c.CSRF.KeepTokens > c.CSRF.MaxTokens {
		errs = append(errs, errors.New("csrf.keep_tokens must be in 1..max_tokens"))
	}
	if c.Wizard.SaveAttempts <= 0 {
		errs = append(errs, errors.New("wizard.save_attempts must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) RateWindow() time.Duration     { return mustDuration(c.RateLimit.Window) }
func (c *Config) TokenTTL() time.Duration       { return mustDuration(c.CSRF.TTL) }
func (c *Config) DraftLifetime() time.Duration  { return mustDuration(c.DraftTTL) }
func (c *Config) SaveBackoff() time.Duration    { return mustDuration(c.Wizard.SaveBackoff) }
func (c *Config) SubmitCooldown() time.Duration { return mustDuration(c.Wizard.SubmitCooldown) }

// mustDuration is only used on values Validate has already accepted.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
