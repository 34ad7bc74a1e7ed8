package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Browser  BrowserConfig  `yaml:"browser"`
	Download DownloadConfig `yaml:"download"`
	Frames   FramesConfig   `yaml:"frames"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9321"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"10m"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	BasePath  string `yaml:"base_path" envconfig:"STORAGE_PATH" default:"/data/grabs"`
	IndexPath string `yaml:"index_path" envconfig:"STORAGE_INDEX_PATH" default:"/data/grabs/archive.db"`
}

// BrowserConfig holds browsing session configuration.
type BrowserConfig struct {
	// ProfileDir is the Chrome user data directory carrying the
	// authenticated session. Login itself is outside this service.
	ProfileDir     string        `yaml:"profile_dir" envconfig:"BROWSER_PROFILE_DIR"`
	Headless       bool          `yaml:"headless" envconfig:"BROWSER_HEADLESS" default:"true"`
	NavTimeout     time.Duration `yaml:"nav_timeout" envconfig:"BROWSER_NAV_TIMEOUT" default:"30s"`
	SettleWindow   time.Duration `yaml:"settle_window" envconfig:"BROWSER_SETTLE_WINDOW" default:"5s"`
	PlayWaitWindow time.Duration `yaml:"play_wait_window" envconfig:"BROWSER_PLAY_WAIT_WINDOW" default:"4s"`
}

// DownloadConfig holds video download configuration.
type DownloadConfig struct {
	Timeout     time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT" default:"60s"`
	UserAgent   string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
	// MaxAttempts bounds whole-pipeline retries at the API layer.
	// The pipeline itself never retries.
	MaxAttempts int           `yaml:"max_attempts" envconfig:"DOWNLOAD_MAX_ATTEMPTS" default:"1"`
	RetryDelay  time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"5s"`
}

// FramesConfig holds frame extraction defaults.
type FramesConfig struct {
	// DefaultCount is used when a request does not specify a frame count.
	// 0 disables frame extraction.
	DefaultCount int `yaml:"default_count" envconfig:"FRAMES_DEFAULT_COUNT" default:"0"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("DOWNLOAD_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
