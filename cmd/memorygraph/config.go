// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/memorygraph/pkg/storage"
)

const (
	configVersion   = 1
	configDirName   = ".memorygraph"
	configFileName  = "config.yaml"
	defaultDBName   = "memorygraph.db"
	defaultBackend  = "sqlite"
	defaultLogLevel = "INFO"
)

// Config is the memorygraph configuration file format.
type Config struct {
	Version     int         `yaml:"version"`
	Backend     string      `yaml:"backend"`
	SQLitePath  string      `yaml:"sqlite_path,omitempty"`
	AllowCycles bool        `yaml:"allow_cycles"`
	MultiTenant bool        `yaml:"multi_tenant"`
	LogLevel    string      `yaml:"log_level"`
	Health      HealthCfg   `yaml:"health"`
	Cloud       CloudConfig `yaml:"cloud,omitempty"`
}

// HealthCfg bounds the backend health probe used by status and stats.
type HealthCfg struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CloudConfig holds credentials for the hosted backend.
type CloudConfig struct {
	APIURL         string `yaml:"api_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version:  configVersion,
		Backend:  defaultBackend,
		LogLevel: defaultLogLevel,
		Health:   HealthCfg{TimeoutSeconds: 5},
	}
}

// LoadConfig reads the configuration file. Resolution order:
//  1. the explicit path argument (from --config)
//  2. the MEMORYGRAPH_CONFIG_PATH environment variable
//  3. .memorygraph/config.yaml in the working directory or any parent
//  4. ~/.memorygraph/config.yaml
//
// Environment variables override file values in all cases.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MEMORYGRAPH_CONFIG_PATH")
	}
	if path == "" {
		path = findConfigFile()
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.Version > configVersion {
			return nil, fmt.Errorf("config %s has version %d, this binary supports up to %d", path, cfg.Version, configVersion)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile walks from the working directory toward the root
// looking for .memorygraph/config.yaml, then falls back to the home
// directory. Returns "" when nothing is found.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, configDirName, configFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(home, configDirName, configFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func (c *Config) applyEnvOverrides() {
	c.Backend = getEnv("MEMORY_BACKEND", c.Backend)
	c.SQLitePath = getEnv("MEMORY_SQLITE_PATH", c.SQLitePath)
	c.LogLevel = getEnv("MEMORY_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("MEMORY_ALLOW_CYCLES"); v != "" {
		c.AllowCycles = parseBool(v)
	}
	if v := os.Getenv("MEMORY_MULTI_TENANT_MODE"); v != "" {
		c.MultiTenant = parseBool(v)
	}
	if v := os.Getenv("HEALTH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Health.TimeoutSeconds = n
		}
	}
	c.Cloud.APIURL = getEnv("MEMORYGRAPH_API_URL", c.Cloud.APIURL)
	c.Cloud.APIKey = getEnv("MEMORYGRAPH_API_KEY", c.Cloud.APIKey)
	if v := os.Getenv("MEMORYGRAPH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cloud.TimeoutSeconds = n
		}
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Backend) {
	case "sqlite", "cloud":
	case "neo4j", "memgraph", "falkor":
		return fmt.Errorf("backend %q is recognized but not bundled in this build; use sqlite or cloud", c.Backend)
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Health.TimeoutSeconds <= 0 {
		c.Health.TimeoutSeconds = 5
	}
	return nil
}

// SaveConfig writes the configuration to path, creating the directory
// if needed. The file may hold API keys, so it is not world readable.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath is where `memorygraph init` writes the config.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// openBackend constructs the storage backend the config selects.
func openBackend(cfg *Config) (storage.Backend, string, error) {
	switch strings.ToLower(cfg.Backend) {
	case "cloud":
		b, err := storage.NewCloudBackend(storage.CloudConfig{
			APIURL:  cfg.Cloud.APIURL,
			APIKey:  cfg.Cloud.APIKey,
			Timeout: time.Duration(cfg.Cloud.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, "", err
		}
		return b, "cloud", nil
	default:
		b, err := storage.NewSQLiteBackend(storage.SQLiteConfig{Path: cfg.SQLitePath})
		if err != nil {
			return nil, "", err
		}
		return b, "sqlite", nil
	}
}

// slogLevel maps the configured log level onto slog.
func (c *Config) slogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger. MCP mode owns stdout for the
// protocol stream, so logs always go to stderr.
func newLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.slogLevel(),
	}))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
