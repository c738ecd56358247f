// Package config loads the optional wardstock configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Every field is optional; command
// line flags and environment variables take precedence.
type Config struct {
	APIURL    string        `yaml:"api_url"`
	StateDir  string        `yaml:"state_dir"`
	CacheDir  string        `yaml:"cache_dir"`
	Cache     bool          `yaml:"cache"`
	Timeout   time.Duration `yaml:"timeout"`
	Telemetry bool          `yaml:"telemetry"`
}

// DefaultPath returns ~/.wardstock/config.yaml, or an empty string when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wardstock", "config.yaml")
}

// Load reads and validates the file at path. A missing file returns an
// error matching fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil {
			return fmt.Errorf("api_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("api_url: unsupported scheme %q", u.Scheme)
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}
