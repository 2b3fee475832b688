// Package config holds runtime configuration for pxedeck services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`

	// Logging
	LogLevel     string `yaml:"log_level"`
	ColorEnabled bool   `yaml:"color_enabled"`

	// HTTP server
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	// Scheduler
	PollInterval time.Duration `yaml:"poll_interval"`

	// Imaging agent endpoint; when empty, deployment starts are only logged
	ImagingAgentURL string `yaml:"imaging_agent_url"`

	// Broadcaster
	EventBufferSize int `yaml:"event_buffer_size"`

	// Observer reconnect policy
	ObserverBackoffBase time.Duration `yaml:"observer_backoff_base"`
	ObserverMaxAttempts int           `yaml:"observer_max_attempts"`

	// Environment provider for testing
	env EnvProvider
}

// GetDefaultDataDir returns the default pxedeck data directory following
// the XDG Base Directory specification.
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

func getDefaultDataDirWithEnv(env EnvProvider) string {
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "pxedeck")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "pxedeck")
}

// NewConfig creates a configuration from defaults, an optional YAML file and
// environment variable overrides, in that order of precedence (low to high).
func NewConfig(configPath string) (*Config, error) {
	return NewConfigWithEnv(&DefaultEnvProvider{}, configPath)
}

// NewConfigWithEnv creates a configuration with a custom environment provider (for testing)
func NewConfigWithEnv(env EnvProvider, configPath string) (*Config, error) {
	c := &Config{env: env}

	c.setDefaults()

	if configPath != "" {
		if err := c.loadFromFile(configPath); err != nil {
			return nil, err
		}
	}

	c.loadFromEnv()
	c.derivePaths()

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// NewConfigForCLI creates a configuration for CLI usage with an optional
// data directory override.
func NewConfigForCLI(cliDataDir string) (*Config, error) {
	c := &Config{env: &DefaultEnvProvider{}}

	c.setDefaults()
	c.loadFromEnv()

	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}

	c.derivePaths()

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 8080
	c.PollInterval = 5 * time.Second
	c.EventBufferSize = 64
	c.ObserverBackoffBase = time.Second
	c.ObserverMaxAttempts = 8
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if v := c.env.Getenv("PXEDECK_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("PXEDECK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("PXEDECK_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	if v := c.env.Getenv("PXEDECK_HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v := c.env.Getenv("PXEDECK_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := c.env.Getenv("PXEDECK_IMAGING_AGENT_URL"); v != "" {
		c.ImagingAgentURL = v
	}
	if v := c.env.Getenv("PXEDECK_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := c.env.Getenv("PXEDECK_EVENT_BUFFER_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.EventBufferSize = size
		}
	}
	if v := c.env.Getenv("PXEDECK_OBSERVER_BACKOFF_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ObserverBackoffBase = d
		}
	}
	if v := c.env.Getenv("PXEDECK_OBSERVER_MAX_ATTEMPTS"); v != "" {
		if attempts, err := strconv.Atoi(v); err == nil {
			c.ObserverMaxAttempts = attempts
		}
	}
}

// derivePaths calculates dependent paths from the base DataDir
func (c *Config) derivePaths() {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "pxedeck.db")
	}
}

// validate ensures configuration values are valid
func (c *Config) validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, or error)", c.LogLevel)
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.PollInterval)
	}

	if c.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.EventBufferSize)
	}

	if c.ObserverBackoffBase <= 0 {
		return fmt.Errorf("observer backoff base must be positive, got: %v", c.ObserverBackoffBase)
	}
	if c.ObserverMaxAttempts <= 0 {
		return fmt.Errorf("observer max attempts must be positive, got: %d", c.ObserverMaxAttempts)
	}

	return nil
}
