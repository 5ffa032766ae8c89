package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reillywatson/impact/internal/errors"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("IMPACT_GITHUB_TOKEN", "")
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10.0, cfg.GitHub.RateLimit)
	assert.Equal(t, 4, cfg.GitHub.Workers)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, "text", cfg.Report.Format)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().GitHub, cfg.GitHub)
	assert.Equal(t, filepath.Join(home, ".impact", "cache"), cfg.Cache.Directory)
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
github:
  token: file-token
  workers: 8
cache:
  backend: bolt
  directory: ~/impact-cache
report:
  metrics: [cycle_time, review_leverage]
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.GitHub.Token)
	assert.Equal(t, 8, cfg.GitHub.Workers)
	assert.Equal(t, 10.0, cfg.GitHub.RateLimit)
	assert.Equal(t, "bolt", cfg.Cache.Backend)
	assert.Equal(t, []string{"cycle_time", "review_leverage"}, cfg.Report.Metrics)
	assert.Equal(t, "json", cfg.Report.Format)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "impact-cache"), cfg.Cache.Directory)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("IMPACT_LOG_LEVEL", "debug")
	t.Setenv("GITHUB_TOKEN", "env-token")

	cfg, err := Load(writeConfig(t, "log:\n  format: json\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "env-token", cfg.GitHub.Token)
}

func TestPrefixedTokenWins(t *testing.T) {
	isolate(t)
	t.Setenv("IMPACT_GITHUB_TOKEN", "prefixed")
	t.Setenv("GITHUB_TOKEN", "plain")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.GitHub.Token)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "cache:\n  backend: redis\n"},
		{"unknown format", "report:\n  format: xml\n"},
		{"zero workers", "github:\n  workers: 0\n"},
		{"negative rate", "github:\n  rate_limit: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfig))
		})
	}
}

func TestUnreadableFile(t *testing.T) {
	isolate(t)
	_, err := Load(writeConfig(t, "github: [unterminated\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfig))
}
