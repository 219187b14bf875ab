// Package config loads pagebuilder configuration from defaults, a YAML file
// and PAGEBUILDER_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pagebuilder/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGEBUILDER_"

// Config is the complete pagebuilder configuration.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Editor      EditorConfig      `yaml:"editor"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Events      EventsConfig      `yaml:"events"`
	Log         LogConfig         `yaml:"log"`
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	// Driver is one of sqlite, postgres, mysql, redis, mongo.
	Driver string `yaml:"driver"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
	// DSN is the postgres or mysql connection string. A literal {password}
	// is replaced with the resolved secret.
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	// PasswordSecret names the secret holding the backend password.
	PasswordSecret string `yaml:"password_secret"`
}

// Backend drivers that are not SQL.
const (
	DriverRedis = "redis"
	DriverMongo = "mongo"
)

// EditorConfig holds editing and autosave policy.
type EditorConfig struct {
	MaxHistory       int           `yaml:"max_history"`
	MaxVersions      int           `yaml:"max_versions"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	AutosaveEnabled  bool          `yaml:"autosave_enabled"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// MaintenanceConfig schedules housekeeping jobs.
type MaintenanceConfig struct {
	VersionPruneSchedule string `yaml:"version_prune_schedule"`
}

// EventsConfig configures event publishing. Events are only logged when
// NATSURL is empty.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultDataDir is where the sqlite database lives by default.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagebuilder"
	}
	return filepath.Join(home, ".local", "share", "pagebuilder")
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:        storage.DriverSQLite,
			Path:          filepath.Join(DefaultDataDir(), "pages.db"),
			RedisAddr:     "localhost:6379",
			MongoDatabase: "pagebuilder",
		},
		Editor: EditorConfig{
			MaxHistory:       50,
			MaxVersions:      storage.DefaultMaxVersions,
			AutosaveInterval: 30 * time.Second,
			AutosaveEnabled:  true,
			WriteTimeout:     10 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			VersionPruneSchedule: "@every 1h",
		},
		Events: EventsConfig{
			SubjectPrefix: "pagebuilder",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case storage.DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case storage.DriverPostgres, storage.DriverMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for %s", c.Storage.Driver)
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for redis")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" || c.Storage.MongoDatabase == "" {
			return fmt.Errorf("storage.mongo_uri and storage.mongo_database are required for mongo")
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}
	if c.Editor.MaxHistory <= 0 {
		return fmt.Errorf("editor.max_history must be positive")
	}
	if c.Editor.MaxVersions <= 0 {
		return fmt.Errorf("editor.max_versions must be positive")
	}
	if c.Editor.AutosaveInterval <= 0 {
		return fmt.Errorf("editor.autosave_interval must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from PAGEBUILDER_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_PATH", &c.Storage.Path)
	str("STORAGE_DSN", &c.Storage.DSN)
	str("REDIS_ADDR", &c.Storage.RedisAddr)
	str("MONGO_URI", &c.Storage.MongoURI)
	str("MONGO_DATABASE", &c.Storage.MongoDatabase)
	str("PASSWORD_SECRET", &c.Storage.PasswordSecret)
	str("PRUNE_SCHEDULE", &c.Maintenance.VersionPruneSchedule)
	str("NATS_URL", &c.Events.NATSURL)
	str("NATS_SUBJECT_PREFIX", &c.Events.SubjectPrefix)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v := getenv(EnvPrefix + "REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Storage.RedisDB = n
	}
	if v := getenv(EnvPrefix + "MAX_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_HISTORY: %w", EnvPrefix, err)
		}
		c.Editor.MaxHistory = n
	}
	if v := getenv(EnvPrefix + "MAX_VERSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_VERSIONS: %w", EnvPrefix, err)
		}
		c.Editor.MaxVersions = n
	}
	if v := getenv(EnvPrefix + "AUTOSAVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sAUTOSAVE_INTERVAL: %w", EnvPrefix, err)
		}
		c.Editor.AutosaveInterval = d
	}
	if v := getenv(EnvPrefix + "AUTOSAVE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sAUTOSAVE_ENABLED: %w", EnvPrefix, err)
		}
		c.Editor.AutosaveEnabled = b
	}
	return nil
}

// Load layers defaults, the file at path (skipped when empty) and the
// environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
