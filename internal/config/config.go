// Package config loads Arbor settings from defaults, an optional YAML file
// and ARBOR_* environment variables, in that order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/authoring"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "ARBOR_"

// Content backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendLoam   = "loam"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

var (
	contentBackends  = []string{BackendMemory, BackendFile, BackendLoam, BackendRedis, BackendSQLite}
	progressBackends = []string{BackendMemory, BackendFile, BackendRedis, BackendSQLite}
)

// Config is the complete runtime configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Library   string          `yaml:"library" env:"LIBRARY"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	SQLite    SQLiteConfig    `yaml:"sqlite" envPrefix:"SQLITE_"`
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Authoring AuthoringConfig `yaml:"authoring" envPrefix:"AUTHORING_"`
	Reading   ReadingConfig   `yaml:"reading" envPrefix:"READING_"`
	Security  SecurityConfig  `yaml:"security" envPrefix:"SECURITY_"`
}

// StorageConfig selects where content and progress live.
type StorageConfig struct {
	// Content is one of memory, file, loam, redis or sqlite.
	Content string `yaml:"content" env:"CONTENT"`
	// Progress is one of memory, file, redis or sqlite.
	Progress string `yaml:"progress" env:"PROGRESS"`
	// SessionsDir holds file-backed progress.
	SessionsDir string `yaml:"sessionsDir" env:"SESSIONS_DIR"`
}

// RedisConfig configures the redis adapter.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	Prefix   string        `yaml:"prefix" env:"PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
	// Lock enables the distributed session lock.
	Lock bool `yaml:"lock" env:"LOCK"`
}

// SQLiteConfig configures the sqlite adapter.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Port int `yaml:"port" env:"PORT"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// AuthoringConfig configures editors.
type AuthoringConfig struct {
	QuietPeriod time.Duration `yaml:"quietPeriod" env:"QUIET_PERIOD"`
}

// ReadingConfig configures reading sessions.
type ReadingConfig struct {
	HistoryCap    int           `yaml:"historyCap" env:"HISTORY_CAP"`
	TextSpeed     time.Duration `yaml:"textSpeed" env:"TEXT_SPEED"`
	AutoplayDelay time.Duration `yaml:"autoplayDelay" env:"AUTOPLAY_DELAY"`
	Autoplay      bool          `yaml:"autoplay" env:"AUTOPLAY"`
}

// Pacing returns the reading defaults as session pacing.
func (r ReadingConfig) Pacing() runtime.Pacing {
	return runtime.Pacing{
		TextSpeed:     r.TextSpeed,
		AutoplayDelay: r.AutoplayDelay,
		Autoplay:      r.Autoplay,
	}
}

// SecurityConfig configures progress encryption and masking.
type SecurityConfig struct {
	// ProgressKey is a base64 AES-256 key. Empty stores progress in clear.
	ProgressKey string `yaml:"progressKey" env:"PROGRESS_KEY"`
	// FallbackKeys are older base64 keys still accepted for decryption.
	FallbackKeys []string `yaml:"fallbackKeys" env:"FALLBACK_KEYS" envSeparator:","`
	// MaskVariables are patterns of variable names masked before storage.
	MaskVariables []string `yaml:"maskVariables" env:"MASK_VARIABLES" envSeparator:","`
}

// Keys decodes the configured encryption keys. It returns nil keys when
// encryption is disabled.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.ProgressKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(s.ProgressKey)
	if err != nil {
		return nil, nil, fmt.Errorf("progress key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		b, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		fallback = append(fallback, b)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(b))
	}
	return b, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Library: ".",
		Storage: StorageConfig{
			Content:     BackendLoam,
			Progress:    BackendFile,
			SessionsDir: ".arbor/sessions",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "arbor:",
		},
		SQLite:    SQLiteConfig{Path: "arbor.db"},
		HTTP:      HTTPConfig{Port: 8080},
		Log:       LogConfig{Level: "info", Format: "text"},
		Authoring: AuthoringConfig{QuietPeriod: authoring.DefaultQuietPeriod},
		Reading:   ReadingConfig{HistoryCap: runtime.DefaultHistoryCap},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadWith(path string, environ map[string]string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.Version != 1 {
			return nil, fmt.Errorf("unsupported config version: %d", cfg.Version)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(contentBackends, c.Storage.Content) {
		errs = append(errs, fmt.Errorf("unknown content backend %q", c.Storage.Content))
	}
	if !slices.Contains(progressBackends, c.Storage.Progress) {
		errs = append(errs, fmt.Errorf("unknown progress backend %q", c.Storage.Progress))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTP.Port))
	}
	if c.Reading.TextSpeed < 0 || c.Reading.AutoplayDelay < 0 {
		errs = append(errs, errors.New("pacing durations must not be negative"))
	}
	if _, _, err := c.Security.Keys(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
