package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FailsFastWithoutRequiredValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "ADMIN_API_KEY")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
env: production
database_url: file.db
admin_api_key: from-file
rate_limit:
  limit: 10
  window: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file.db", cfg.DatabaseURL)
	assert.Equal(t, "from-env", cfg.AdminAPIKey)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.RateWindow())
	assert.True(t, cfg.IsProduction())
	// untouched defaults survive the partial file
	assert.Equal(t, 3, cfg.Wizard.SaveAttempts)
	assert.Equal(t, time.Hour, cfg.TokenTTL())
}

func TestValidate_RejectsBadDurations(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "x.db"
	cfg.AdminAPIKey = "k"
	cfg.RateLimit.Window = "soon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit.window")
}

func TestValidate_KeepTokensBound(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "x.db"
	cfg.AdminAPIKey = "k"
	cfg.CSRF.KeepTokens = cfg.CSRF.MaxTokens + 1

	require.Error(t, cfg.Validate())
}
