// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, configVersion, cfg.Version)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Health.TimeoutSeconds)
	assert.False(t, cfg.AllowCycles)
	assert.False(t, cfg.MultiTenant)
	assert.Empty(t, cfg.SQLitePath, "default path should be empty (resolved at runtime)")
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("MEMORY_BACKEND", "cloud")
	t.Setenv("MEMORY_SQLITE_PATH", "/custom/path/graph.db")
	t.Setenv("MEMORY_ALLOW_CYCLES", "true")
	t.Setenv("MEMORY_MULTI_TENANT_MODE", "yes")
	t.Setenv("MEMORY_LOG_LEVEL", "DEBUG")
	t.Setenv("HEALTH_TIMEOUT_SECONDS", "12")
	t.Setenv("MEMORYGRAPH_API_URL", "https://api.example.com")
	t.Setenv("MEMORYGRAPH_API_KEY", "secret")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "cloud", cfg.Backend)
	assert.Equal(t, "/custom/path/graph.db", cfg.SQLitePath)
	assert.True(t, cfg.AllowCycles)
	assert.True(t, cfg.MultiTenant)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 12, cfg.Health.TimeoutSeconds)
	assert.Equal(t, "https://api.example.com", cfg.Cloud.APIURL)
	assert.Equal(t, "secret", cfg.Cloud.APIKey)
}

func TestConfigYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	yaml := `version: 1
backend: sqlite
sqlite_path: /tmp/test.db
allow_cycles: true
log_level: WARN
health:
  timeout_seconds: 3
`
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0600))

	// Set the env var so LoadConfig finds our file.
	t.Setenv("MEMORYGRAPH_CONFIG_PATH", configPath)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "/tmp/test.db", cfg.SQLitePath)
	assert.True(t, cfg.AllowCycles)
	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Health.TimeoutSeconds)
}

func TestConfigEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\nbackend: sqlite\nlog_level: ERROR\n"), 0600))

	t.Setenv("MEMORYGRAPH_CONFIG_PATH", configPath)
	t.Setenv("MEMORY_LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("MEMORY_BACKEND", "cassandra")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigRejectsUnbundledBackend(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\nbackend: neo4j\n"), 0600))

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bundled")
}

func TestConfigRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 99\nbackend: sqlite\n"), 0600))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.SQLitePath = "/data/graph.db"
	require.NoError(t, SaveConfig(configPath, cfg))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.SQLitePath, loaded.SQLitePath)
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
	}
	for level, want := range cases {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.slogLevel())
	}
}
