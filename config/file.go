package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pevans/confpapers/scraper"
	"gopkg.in/yaml.v3"
)

// LogConfig represents logging configuration from config file.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// TransportConfig represents HTTP client configuration from config file.
type TransportConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rate_limit"`
	Burst      int           `yaml:"burst"`
	MaxRetries *int          `yaml:"max_retries"` // 0 disables retries
	RetryWait  time.Duration `yaml:"retry_wait"`
	UserAgent  string        `yaml:"user_agent"`
}

// FileConfig represents the structure of ~/.confpapers/config.yaml.
type FileConfig struct {
	Output      string          `yaml:"output"`
	Ledger      string          `yaml:"ledger"`
	Parallel    int             `yaml:"parallel"`
	MetricsFile string          `yaml:"metrics_file"`
	Log         LogConfig       `yaml:"log"`
	Transport   TransportConfig `yaml:"transport"`
	Sites       scraper.Sites   `yaml:"sites"`
}

// Dir returns ~/.confpapers.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".confpapers"), nil
}

// LoadConfigFile loads configuration from ~/.confpapers/config.yaml.
// Returns nil if the file doesn't exist (not an error). Returns error if the
// file exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfigFileFrom(filepath.Join(dir, "config.yaml"))
	if os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}
	return cfg, err
}

// LoadConfigFileFrom loads configuration from an explicit path. Unlike
// LoadConfigFile a missing file is an error.
func LoadConfigFileFrom(configPath string) (*FileConfig, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}
