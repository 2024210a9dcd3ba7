// Package config loads the sparsevec CLI settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	idxapi "github.com/viant/sparsevec/index"
)

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	// Level is debug, info, warn or error; empty disables logging.
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Dataset  string         `yaml:"dataset,omitempty"`
	Metric   string         `yaml:"metric,omitempty"`
	K        int            `yaml:"k,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "sparsevec.db"},
		Metric:   idxapi.MetricL2.String(),
		K:        10,
		Log:      LogConfig{Format: "text"},
	}
}

// Load reads path, returning Default when the file does not exist. Missing
// fields keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := idxapi.ParseMetric(c.Metric); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.K < 0 {
		return fmt.Errorf("config: k must be >= 0, got %d", c.K)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.Log.Format)
	}
	return nil
}
