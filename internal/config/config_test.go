package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
)

func writeConfig(t *testing.T, doc map[string]interface{}) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "menuscan.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "/api/health", cfg.Server.HealthPath)
	assert.Equal(t, "/api/menus", cfg.Endpoints.Menus)
	assert.Equal(t, "/api/menu-items", cfg.Endpoints.Items)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.ProbeInterval)
	assert.Equal(t, "probe", cfg.Connectivity.Mode)
	assert.Zero(t, cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ProviderClaude, cfg.Extract.Provider)
	assert.Equal(t, 1000, cfg.Extract.MaxTokens)
	assert.Equal(t, "*.{jpg,jpeg,png,webp}", cfg.Capture.Pattern)
	assert.Equal(t, "127.0.0.1:8090", cfg.API.Addr)
}

func TestLoad_file(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"data_dir": "/var/lib/menuscan",
		"server": map[string]interface{}{
			"base_url": "https://menus.example.com",
		},
		"sync": map[string]interface{}{
			"interval": "90s",
		},
		"connectivity": map[string]interface{}{
			"mode": "online",
		},
		"http": map[string]interface{}{
			"timeout": "15s",
		},
	})

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/menuscan", cfg.DataDir)
	assert.Equal(t, "https://menus.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "online", cfg.Connectivity.Mode)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "/api/health", cfg.Server.HealthPath, "unset keys keep defaults")
}

func TestLoad_envOverridesFile(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"server": map[string]interface{}{"base_url": "https://file.example.com"},
	})
	t.Setenv("MENUSCAN_SERVER_BASE_URL", "https://env.example.com")
	t.Setenv("MENUSCAN_EXTRACT_API_KEY", "sk-test")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "sk-test", cfg.Extract.APIKey)
}

func TestLoad_flagsOverrideEverything(t *testing.T) {
	t.Setenv("MENUSCAN_DATA_DIR", "/from/env")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--data-dir", "/from/flag", "--log-level", "debug"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)

	assert.True(t, apperrors.Is(err, apperrors.ErrConfig))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero sync interval", func(c *Config) { c.Sync.Interval = 0 }},
		{"negative probe interval", func(c *Config) { c.Connectivity.ProbeInterval = -time.Second }},
		{"negative timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }},
		{"unknown mode", func(c *Config) { c.Connectivity.Mode = "sometimes" }},
		{"unknown provider", func(c *Config) { c.Extract.Provider = "llama" }},
		{"zero max tokens", func(c *Config) { c.Extract.MaxTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, apperrors.Is(err, apperrors.ErrConfig), "got %v", err)
		})
	}

	assert.NoError(t, valid().Validate())
}
