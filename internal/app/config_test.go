package app

import (
	"os"
	"path/filepath"
	"testing"

	"robotrenamer/internal/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
orchestrator:
  server: orchestrator.example.com
  port: 443
  safe: true
  tenant: Default
  user: admin
  password: from-file
csv:
  file: robots.csv
  from: 3
  count: all
units:
  match: contains
prod: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "orchestrator.example.com", cfg.Orchestrator.Server)
	assert.True(t, cfg.Orchestrator.Safe)
	assert.Equal(t, 3, cfg.CSV.From)
	assert.Equal(t, records.All, cfg.CSV.Count)
	assert.Equal(t, "contains", cfg.Units.Match)
	assert.True(t, cfg.UnitsEnabled())
	assert.False(t, cfg.DryRun())
	assert.Equal(t, 30, cfg.Orchestrator.TimeoutSeconds)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, "update.log", cfg.Log.File)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverridesPassword(t *testing.T) {
	t.Setenv(EnvPassword, "from-env")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Orchestrator.Password)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "units:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.CSV.From)
	assert.Equal(t, records.Count(1), cfg.CSV.Count)
	assert.False(t, cfg.UnitsEnabled())
	assert.True(t, cfg.DryRun())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "csv:\n  count: lots\n"))
	require.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Config{}
	cfg.Units.Match = "fuzzy"
	cfg.Verify.Mode = "hash"
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"orchestrator.server", "csv.file", "fuzzy", "hash"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg = Config{}
	cfg.Orchestrator.Server = "host"
	cfg.Orchestrator.Token = "token"
	cfg.CSV.File = "robots.csv"
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
}
