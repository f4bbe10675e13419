package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Storage driver names accepted in [storage].driver
const (
	StorageDriverFS     = "fs"
	StorageDriverSQLite = "sqlite"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Executor ExecutorConfig `toml:"executor"`
	Workers  WorkersConfig  `toml:"workers"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StorageConfig selects the blob store driver and the transient file location.
type StorageConfig struct {
	Driver    string `toml:"driver"`
	BlobDir   string `toml:"blob_dir"`
	TempDir   string `toml:"temp_dir"`
	ChunkSize int    `toml:"chunk_size"`
}

// ExecutorConfig contains yt-dlp invocation settings.
type ExecutorConfig struct {
	Binary         string        `toml:"binary"`
	FFmpegLocation string        `toml:"ffmpeg_location"`
	AudioFormat    string        `toml:"audio_format"`
	AudioQuality   string        `toml:"audio_quality"`
	Timeout        time.Duration `toml:"timeout"`
}

// WorkersConfig sizes the conversion worker pool.
type WorkersConfig struct {
	Count     int     `toml:"count"`
	QueueSize int     `toml:"queue_size"`
	RateLimit float64 `toml:"rate_limit"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads a TOML configuration file from the specified path and overlays it on [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with environment variables.
//
// PORT is honoured for compatibility with hosting platforms; YTAUDIO_PORT wins when both are set.
func (c *Config) ApplyEnv() error {
	for _, key := range []string{"PORT", "YTAUDIO_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a port", ErrInvalidConfig, key, v)
			}
			c.Server.Port = port
		}
	}
	if v := os.Getenv("YTAUDIO_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("YTAUDIO_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("YTAUDIO_TEMP_DIR"); v != "" {
		c.Storage.TempDir = v
	}
	if v := os.Getenv("YTAUDIO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	case c.Storage.TempDir == "":
		return fmt.Errorf("%w: storage.temp_dir is empty", ErrInvalidConfig)
	case c.Workers.Count <= 0:
		return fmt.Errorf("%w: workers.count must be positive", ErrInvalidConfig)
	case c.Workers.QueueSize < 0:
		return fmt.Errorf("%w: workers.queue_size must not be negative", ErrInvalidConfig)
	case c.Executor.AudioFormat == "":
		return fmt.Errorf("%w: executor.audio_format is empty", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case StorageDriverFS:
		if c.Storage.BlobDir == "" {
			return fmt.Errorf("%w: storage.blob_dir is required for the fs driver", ErrInvalidConfig)
		}
	case StorageDriverSQLite:
		if c.Storage.ChunkSize <= 0 {
			return fmt.Errorf("%w: storage.chunk_size must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	return nil
}
