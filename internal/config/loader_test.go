package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/config"
)

const minimalYAML = "source:\n  base_url: https://api.example.com/repos/org/configs\n"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".dtefd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_MinimalFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultSourceBranch, cfg.Source.Branch)
	assert.Equal(t, config.DefaultStoreRoot, cfg.Store.Root)
	assert.Equal(t, config.DefaultBatchLimit, cfg.Scheduler.BatchLimit)
	assert.Equal(t, config.DefaultQueueConcurrency, cfg.Queue.Concurrency)
	assert.Equal(t, config.DefaultBackfillConcurrency, cfg.Backfill.FetchConcurrency)
	assert.Equal(t, config.DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, config.DefaultDiagnosticsAddr, cfg.Telemetry.DiagnosticsAddr)
	assert.True(t, cfg.Pipeline.UseCache)

	assert.Equal(t, 7*24*time.Hour, cfg.FreshnessWindow())
	assert.Equal(t, time.Hour, cfg.TickInterval())
	assert.Equal(t, time.Minute, cfg.FirstFireDelay())
	assert.Equal(t, 15*time.Second, cfg.DrainWait())
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	content := minimalYAML + `
scheduler:
  freshness_window: 48h
  batch_limit: 25
queue:
  concurrency: 5
  drain_wait: 30s
store:
  compress_artifacts: true
`

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.FreshnessWindow())
	assert.Equal(t, 25, cfg.Scheduler.BatchLimit)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.DrainWait())
	assert.True(t, cfg.Store.CompressArtifacts)
}

func TestLoadConfig_MissingSourceURLRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "store:\n  root: /tmp/data\n"))
	require.ErrorIs(t, err, config.ErrMissingSourceURL)
}

func TestLoadConfig_BadDurationRejected(t *testing.T) {
	t.Parallel()

	content := minimalYAML + "queue:\n  drain_wait: soon\n"

	_, err := config.LoadConfig(writeConfig(t, content))
	require.ErrorIs(t, err, config.ErrInvalidDuration)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("DTEFD_SOURCE_BASE_URL", "https://api.example.com/repos/org/other")
	t.Setenv("DTEFD_QUEUE_CONCURRENCY", "7")

	cfg, err := config.LoadConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/repos/org/other", cfg.Source.BaseURL)
	assert.Equal(t, 7, cfg.Queue.Concurrency)
}

func TestValidate_NegativeConcurrencyRejected(t *testing.T) {
	t.Parallel()

	content := minimalYAML + "queue:\n  concurrency: 0\n"

	_, err := config.LoadConfig(writeConfig(t, content))
	require.ErrorIs(t, err, config.ErrInvalidConcurrency)
}

func TestLoadConfig_BadLogLevelRejected(t *testing.T) {
	t.Parallel()

	content := minimalYAML + "telemetry:\n  log_level: loud\n"

	_, err := config.LoadConfig(writeConfig(t, content))
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}

func TestLogLevel_Parsed(t *testing.T) {
	t.Parallel()

	content := minimalYAML + "telemetry:\n  log_level: warn\n"

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}
