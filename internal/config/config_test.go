package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nohands", cfg.App.ID)
	assert.Equal(t, 2*time.Second, cfg.Idle.QueryTimeout.Duration)
}

func TestLoadFromMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	original := Default()
	original.App.ID = "nohands-test"
	original.Window.Renderer = []string{"/usr/bin/true", "{url}"}
	original.Idle.QueryTimeout = Duration{500 * time.Millisecond}
	original.Logging.Level = "debug"

	require.NoError(t, original.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty id", func(c *Config) { c.App.ID = "" }},
		{"empty renderer", func(c *Config) { c.Window.Renderer = nil }},
		{"bad listen", func(c *Config) { c.Content.Listen = "nope" }},
		{"zero idle timeout", func(c *Config) { c.Idle.QueryTimeout = Duration{} }},
		{"zero burst", func(c *Config) { c.IPC.Burst = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("NOHANDS_ENV", "Development")
	t.Setenv("NOHANDS_DEV_SERVER_URL", "http://localhost:8080")
	t.Setenv("NOHANDS_IS_TEST", "true")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.True(t, env.Development())
	assert.True(t, env.UseDevServer())
	assert.True(t, env.IsTest)
}

func TestLoadEnvDefaultsToBuildMode(t *testing.T) {
	t.Setenv("NOHANDS_ENV", "")
	t.Setenv("NOHANDS_DEV_SERVER_URL", "http://localhost:8080")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, env.Mode)
	assert.False(t, env.UseDevServer(), "production never loads the dev server")
}

func TestLoadEnvRejectsUnknownMode(t *testing.T) {
	t.Setenv("NOHANDS_ENV", "staging")

	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestGetPathsOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOHANDS_CONFIG_DIR", dir)

	paths, err := GetPaths()
	require.NoError(t, err)
	assert.Equal(t, dir, paths.ConfigDir)
	assert.Equal(t, filepath.Join(dir, "config.toml"), paths.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "store.json"), paths.StoreFile)
	assert.NotEmpty(t, paths.SocketPath)

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.ProfileDir)
}
