// Package config loads menuscan settings from a YAML file, MENUSCAN_* environment
// variables and command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. MENUSCAN_SERVER_BASE_URL.
const EnvPrefix = "MENUSCAN"

// Config is the resolved configuration.
type Config struct {
	DataDir      string             `mapstructure:"data_dir"`
	Server       ServerConfig       `mapstructure:"server"`
	Endpoints    EndpointsConfig    `mapstructure:"endpoints"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Extract      ExtractConfig      `mapstructure:"extract"`
	Capture      CaptureConfig      `mapstructure:"capture"`
	API          APIConfig          `mapstructure:"api"`
}

// ServerConfig locates the remote sync server.
type ServerConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	HealthPath string `mapstructure:"health_path"`
}

// EndpointsConfig holds the server collection paths uploads are sent to.
type EndpointsConfig struct {
	Menus string `mapstructure:"menus"`
	Items string `mapstructure:"items"`
}

// SyncConfig controls the periodic drain.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ConnectivityConfig controls how reachability is determined.
type ConnectivityConfig struct {
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	Mode          string        `mapstructure:"mode"`
}

// HTTPConfig configures the outbound HTTP client. A zero Timeout means none.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ExtractConfig selects the vision provider used for menu extraction.
type ExtractConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// CaptureConfig configures the image inbox. An empty InboxDir disables it.
type CaptureConfig struct {
	InboxDir string `mapstructure:"inbox_dir"`
	Pattern  string `mapstructure:"pattern"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// Extraction providers.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// SetDefaults registers every key with its default so env overrides apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.health_path", "/api/health")
	v.SetDefault("endpoints.menus", "/api/menus")
	v.SetDefault("endpoints.items", "/api/menu-items")
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("connectivity.probe_interval", 30*time.Second)
	v.SetDefault("connectivity.mode", "probe")
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("extract.provider", ProviderClaude)
	v.SetDefault("extract.model", "")
	v.SetDefault("extract.api_key", "")
	v.SetDefault("extract.base_url", "")
	v.SetDefault("extract.max_tokens", 1000)
	v.SetDefault("capture.inbox_dir", "")
	v.SetDefault("capture.pattern", "*.{jpg,jpeg,png,webp}")
	v.SetDefault("api.addr", "127.0.0.1:8090")
}

// Load reads configuration. configFile may be empty; flags may be nil. Flags
// that were set override the file and environment.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, "failed to read config file", err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("data-dir"); f != nil {
			if err := v.BindPFlag("data_dir", f); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrConfig, "failed to bind flag", err)
			}
		}
		if f := flags.Lookup("log-level"); f != nil {
			if err := v.BindPFlag("log.level", f); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrConfig, "failed to bind flag", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfig, "failed to decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return apperrors.New(apperrors.ErrConfig, "data_dir must not be empty")
	}
	if c.Sync.Interval <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, "sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, "connectivity.probe_interval must be positive, got %s", c.Connectivity.ProbeInterval)
	}
	if c.HTTP.Timeout < 0 {
		return apperrors.Newf(apperrors.ErrConfig, "http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	switch c.Connectivity.Mode {
	case "probe", "online", "offline":
	default:
		return apperrors.Newf(apperrors.ErrConfig, "unknown connectivity.mode %q", c.Connectivity.Mode)
	}
	switch c.Extract.Provider {
	case ProviderClaude, ProviderOpenAI:
	default:
		return apperrors.Newf(apperrors.ErrConfig, "unknown extract.provider %q", c.Extract.Provider)
	}
	if c.Extract.MaxTokens <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, "extract.max_tokens must be positive, got %d", c.Extract.MaxTokens)
	}
	return nil
}
