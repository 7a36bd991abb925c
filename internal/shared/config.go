package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// MinPollInterval is the smallest per-job poll interval accepted by the edit surface, in seconds.
const MinPollInterval = 10

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Sync     SyncConfig     `toml:"sync"`
	HTTP     HTTPConfig     `toml:"http"`
	Artwork  ArtworkConfig  `toml:"artwork"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SyncConfig seeds the persisted sync settings and sets the scheduler clock.
type SyncConfig struct {
	Enabled         bool `toml:"enabled"`
	DefaultInterval int  `toml:"default_interval"`
	TickInterval    int  `toml:"tick_interval"`
}

// HTTPConfig contains timeouts (seconds) for requests to the playlist server.
type HTTPConfig struct {
	UserAgent      string `toml:"user_agent"`
	Timeout        int    `toml:"timeout"`
	TriggerTimeout int    `toml:"trigger_timeout"`
	ArtworkTimeout int    `toml:"artwork_timeout"`
}

// ArtworkConfig sizes the artwork caches and the fetch rate limiter.
type ArtworkConfig struct {
	CacheSize         int     `toml:"cache_size"`
	NegativeCacheSize int     `toml:"negative_cache_size"`
	RateLimit         float64 `toml:"rate_limit"`
	Burst             int     `toml:"burst"`
}

// ServerConfig contains settings for the daemon status server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
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

// Validate reports the first configuration value that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	case c.Sync.DefaultInterval < MinPollInterval:
		return fmt.Errorf("%w: sync.default_interval must be at least %d", ErrInvalidConfig, MinPollInterval)
	case c.Sync.TickInterval < 1:
		return fmt.Errorf("%w: sync.tick_interval must be positive", ErrInvalidConfig)
	case c.HTTP.Timeout < 1 || c.HTTP.TriggerTimeout < 1 || c.HTTP.ArtworkTimeout < 1:
		return fmt.Errorf("%w: http timeouts must be positive", ErrInvalidConfig)
	case c.Artwork.CacheSize < 1 || c.Artwork.NegativeCacheSize < 1:
		return fmt.Errorf("%w: artwork cache sizes must be positive", ErrInvalidConfig)
	}
	return nil
}

// TickDuration returns the scheduler base clock period.
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.Sync.TickInterval) * time.Second
}

// Addr returns the host:port the status server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Seconds converts a config value expressed in seconds to a [time.Duration].
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
