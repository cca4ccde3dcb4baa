package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the ng configuration file.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
	// Color forces color on or off.  Unset means color on terminals.
	Color *bool `yaml:"color"`
	// SetPrefix is the member key prefix of collections that scenarios
	// create.
	SetPrefix string `yaml:"setPrefix"`
	// Debug lists debug toggles to enable.
	Debug []string `yaml:"debug"`
}

// LoadConfig loads a configuration file in YAML format.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "warn",
	}
}
