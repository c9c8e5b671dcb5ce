package config

import (
	"benwidget/internal/relay"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathsForTest(t *testing.T) Paths {
	t.Helper()

	paths, err := pathsUnder(filepath.Join(t.TempDir(), "ben"))
	require.NoError(t, err)
	return paths
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	paths := pathsForTest(t)

	settings, err := Load(paths)
	require.NoError(t, err)

	assert.Equal(t, relay.DefaultEngineID, settings.Engine.ID)
	assert.Equal(t, relay.DefaultChannelName, settings.Engine.Channel)
	assert.Equal(t, 64, settings.Engine.QueueSize)
	assert.Equal(t, paths.SpoolDir, settings.Spool.Dir)
	assert.Equal(t, "info", settings.Log.Level)
	assert.True(t, settings.Journal.Enabled)
	assert.Empty(t, settings.Player.Tracks)

	assert.DirExists(t, paths.SpoolDir)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	paths := pathsForTest(t)
	body := []byte(`
engine:
  channel: other_channel
log:
  level: debug
journal:
  enabled: false
player:
  tracks:
    - /music/a.flac
    - /music/b.flac
`)
	require.NoError(t, os.WriteFile(paths.ConfigFile, body, 0o644))

	t.Setenv(EnvConfigFile, "")
	t.Setenv("BEN_ENGINE_ID", "env_engine")

	settings, err := Load(paths)
	require.NoError(t, err)

	assert.Equal(t, "env_engine", settings.Engine.ID)
	assert.Equal(t, "other_channel", settings.Engine.Channel)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.False(t, settings.Journal.Enabled)
	assert.Equal(t, []string{"/music/a.flac", "/music/b.flac"}, settings.Player.Tracks)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	paths := pathsForTest(t)
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("engine:\n  id: custom\n"), 0o644))
	t.Setenv(EnvConfigFile, custom)

	settings, err := Load(paths)
	require.NoError(t, err)
	assert.Equal(t, "custom", settings.Engine.ID)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	paths := pathsForTest(t)
	require.NoError(t, os.WriteFile(paths.ConfigFile, []byte("engine: [unterminated"), 0o644))

	_, err := Load(paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidateRequiresEngineID(t *testing.T) {
	err := Settings{Engine: EngineSettings{Channel: "c"}, Spool: SpoolSettings{Dir: "d"}}.Validate()
	assert.EqualError(t, err, "engine.id is required")
}
