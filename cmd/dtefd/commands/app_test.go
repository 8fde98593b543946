package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/observability"
)

func writeAppConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	content := "source:\n  base_url: https://api.example.com/repos/org/configs\nstore:\n  root: " + dir + "\n"

	path := filepath.Join(dir, ".dtefd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestBuildApp_WiresComponents(t *testing.T) {
	a, err := buildApp(writeAppConfig(t), observability.ModeCLI)
	require.NoError(t, err)

	assert.NotNil(t, a.store)
	assert.NotNil(t, a.source)
	assert.NotNil(t, a.updater)
	assert.NotNil(t, a.backfil)
	assert.NotNil(t, a.logger)

	sched := a.buildScheduler(&inlineSink{ctx: t.Context()})
	assert.NotNil(t, sched)
}

func TestBuildApp_BadConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".dtefd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  root: /tmp\n"), 0o600))

	_, err := buildApp(path, observability.ModeCLI)
	require.Error(t, err)
}
