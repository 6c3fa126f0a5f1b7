// Package config loads the Authentication Engine's configuration from a
// YAML file plus environment variable overrides, in the viper-backed style
// of the teacher's internal/config/config.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for an authentication engine
// instance.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Engine   EngineConfig   `mapstructure:"engine"`
	RealmMap RealmMapConfig `mapstructure:"realm_map"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// ServerConfig holds the reference HTTP adapter's listener settings.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// EngineConfig mirrors the engine settings table (spec §6): cache sizing,
// TTLs, the background task interval, lockout defaults, and auth-event
// logging toggles.
type EngineConfig struct {
	RealmMapLoadInterval time.Duration `mapstructure:"realm_map_load_interval"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	MaxCacheSize         int           `mapstructure:"max_cache_size"`
	NakCacheTTL          time.Duration `mapstructure:"nak_cache_ttl"`
	MaxNakCacheSize      int           `mapstructure:"max_nak_cache_size"`
	CacheFlushInterval   time.Duration `mapstructure:"cache_flush_interval"`
	BkTaskInterval       time.Duration `mapstructure:"bk_task_interval"`
	LogAuthSuccess       bool          `mapstructure:"log_auth_success"`
	LogAuthFailure       bool          `mapstructure:"log_auth_failure"`
	LockoutCount         int           `mapstructure:"lockout_count"`
	LockoutThreshold     time.Duration `mapstructure:"lockout_threshold"`
	LockoutTime          time.Duration `mapstructure:"lockout_time"`
}

// RealmMapConfig describes which Realm Map Provider to open and how (spec
// §4.2): ProviderType selects File/Config/ODBC (or a custom registration),
// ConfigHandle is the provider-specific source descriptor (a path, an
// inline realm list, or a "connectionString$$query" pair for ODBC).
type RealmMapConfig struct {
	ProviderType string `mapstructure:"provider_type"`
	ConfigHandle string `mapstructure:"config_handle"`
}

// SyncConfig configures the Cluster Sync Adapter's Redis transport and the
// distributed lock used to serialize realm-map reloads across peers.
type SyncConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Channel       string `mapstructure:"channel"`

	ReloadLockEnabled bool          `mapstructure:"reload_lock_enabled"`
	ReloadLockKey     string        `mapstructure:"reload_lock_key"`
	ReloadLockTTL     time.Duration `mapstructure:"reload_lock_ttl"`
}

// Load reads configuration from configPath (if non-empty and present),
// overlays environment variables (dots replaced with underscores, e.g.
// ENGINE_CACHE_TTL), and validates the result.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	// Engine defaults match spec §6's settings table exactly.
	viper.SetDefault("engine.realm_map_load_interval", "10m")
	viper.SetDefault("engine.cache_ttl", "10m")
	viper.SetDefault("engine.max_cache_size", 100000)
	viper.SetDefault("engine.nak_cache_ttl", "15m")
	viper.SetDefault("engine.max_nak_cache_size", 100000)
	viper.SetDefault("engine.cache_flush_interval", "1m")
	viper.SetDefault("engine.bk_task_interval", "5s")
	viper.SetDefault("engine.log_auth_success", true)
	viper.SetDefault("engine.log_auth_failure", true)
	viper.SetDefault("engine.lockout_count", 5)
	viper.SetDefault("engine.lockout_threshold", "1m")
	viper.SetDefault("engine.lockout_time", "5m")

	viper.SetDefault("realm_map.provider_type", "File")
	viper.SetDefault("realm_map.config_handle", "")

	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.redis_addr", "localhost:6379")
	viper.SetDefault("sync.redis_db", 0)
	viper.SetDefault("sync.channel", "authengine:sync")
	viper.SetDefault("sync.reload_lock_enabled", false)
	viper.SetDefault("sync.reload_lock_key", "authengine:realmmap-reload")
	viper.SetDefault("sync.reload_lock_ttl", "30s")
}

// Validate checks the loaded configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.RealmMap.ProviderType == "" {
		return fmt.Errorf("realm_map.provider_type cannot be empty")
	}
	if c.Engine.MaxCacheSize < 0 || c.Engine.MaxNakCacheSize < 0 {
		return fmt.Errorf("engine cache sizes cannot be negative")
	}
	if c.Engine.BkTaskInterval <= 0 {
		return fmt.Errorf("engine.bk_task_interval must be positive")
	}
	if c.Sync.Enabled && c.Sync.RedisAddr == "" {
		return fmt.Errorf("sync.redis_addr is required when sync.enabled is true")
	}
	return nil
}

// IsDevelopment reports whether the log format implies a local/dev run
// (mirrors the teacher's App.Environment check, simplified since this
// service has no separate app/environment section).
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Log.Format, "text")
}
