// Package config loads the ctxoffload command-line configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/youssefsiam38/ctxoffload/compaction"
)

// Config represents the full ctxoffload CLI configuration
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	GCS        GCSConfig        `mapstructure:"gcs" yaml:"gcs"`
	Compaction CompactionConfig `mapstructure:"compaction" yaml:"compaction"`
	Tools      ToolsConfig      `mapstructure:"tools" yaml:"tools"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic" yaml:"anthropic"`
}

// StorageConfig selects where payloads are written
type StorageConfig struct {
	URI     string `mapstructure:"uri" yaml:"uri"`
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	Backend string `mapstructure:"backend" yaml:"backend"` // blob backend: none, memory, postgres or gcs
}

// DatabaseConfig configures the postgres blob backend
type DatabaseConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Driver string `mapstructure:"driver" yaml:"driver"` // pgx or database-sql
	Table  string `mapstructure:"table" yaml:"table"`
}

// GCSConfig configures the gcs blob backend
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// CompactionConfig contains compaction defaults
type CompactionConfig struct {
	Boundary        string   `mapstructure:"boundary" yaml:"boundary"`
	ReaderToolNames []string `mapstructure:"reader_tool_names" yaml:"reader_tool_names"`
}

// ToolsConfig contains read/search tool settings
type ToolsConfig struct {
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AnthropicConfig enables exact token counting
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// Backend names
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
)

// Database driver names
const (
	DriverPgx         = "pgx"
	DriverDatabaseSQL = "database-sql"
)

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		switch {
		case cfg.Database.URL != "":
			cfg.Storage.Backend = BackendPostgres
		case cfg.GCS.Bucket != "":
			cfg.Storage.Backend = BackendGCS
		default:
			cfg.Storage.Backend = BackendNone
		}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgx
	}

	if cfg.Compaction.Boundary == "" {
		cfg.Compaction.Boundary = string(compaction.BoundarySinceLastText)
	}

	if cfg.Tools.Timeout == "" {
		cfg.Tools.Timeout = "30s"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validBackends := map[string]bool{BackendNone: true, BackendMemory: true, BackendPostgres: true, BackendGCS: true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s (must be none, memory, postgres, or gcs)", c.Storage.Backend)
	}

	if c.Storage.Backend == BackendPostgres && c.Database.URL == "" {
		return fmt.Errorf("database url is required for the postgres backend")
	}

	if c.Storage.Backend == BackendGCS && c.GCS.Bucket == "" {
		return fmt.Errorf("gcs bucket is required for the gcs backend")
	}

	if c.Database.Driver != "" && c.Database.Driver != DriverPgx && c.Database.Driver != DriverDatabaseSQL {
		return fmt.Errorf("invalid database driver: %s (must be pgx or database-sql)", c.Database.Driver)
	}

	if _, err := compaction.ParseBoundary(c.Compaction.Boundary); err != nil {
		return fmt.Errorf("invalid compaction boundary: %w", err)
	}

	for _, name := range c.Compaction.ReaderToolNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("reader tool names must not be empty")
		}
	}

	if c.Tools.Timeout != "" {
		d, err := time.ParseDuration(c.Tools.Timeout)
		if err != nil {
			return fmt.Errorf("invalid tools timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("tools timeout must not be negative")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Log.Level != "" && !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

// Boundary returns the parsed compaction boundary
func (c *Config) Boundary() compaction.Boundary {
	b, _ := compaction.ParseBoundary(c.Compaction.Boundary)
	return b
}

// ToolTimeout returns the parsed tool timeout, zero when unset or invalid
func (c *Config) ToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Redacted returns a copy with secrets masked, suitable for printing
func (c *Config) Redacted() Config {
	out := *c
	out.Compaction.ReaderToolNames = append([]string(nil), c.Compaction.ReaderToolNames...)
	if out.Anthropic.APIKey != "" {
		out.Anthropic.APIKey = "****"
	}
	if out.Database.URL != "" {
		out.Database.URL = redactURL(out.Database.URL)
	}
	return out
}

// redactURL masks the password of a connection URL
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return raw
	}
	return scheme + "://" + user + ":****@" + host
}

// Keys lists every configuration key, so that environment variables are seen
// by Unmarshal even when no config file sets them
var Keys = []string{
	"storage.uri", "storage.base_dir", "storage.backend",
	"database.url", "database.driver", "database.table",
	"gcs.bucket", "gcs.credentials_file",
	"compaction.boundary", "compaction.reader_tool_names",
	"tools.timeout",
	"log.level", "log.format",
	"anthropic.api_key", "anthropic.model",
}

// BindEnv binds every key to its CTXOFFLOAD_ environment variable on v,
// for example storage.uri to CTXOFFLOAD_STORAGE_URI
func BindEnv(v *viper.Viper, prefix string) error {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
