/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
// Package config loads and saves the YAML configuration that
// parameterizes a buffer tree instance: its construction parameters,
// the monitoring server's bind address, and logging verbosity.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents a buffer tree instance's configuration.
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Tree    Tree    `yaml:"tree"`
	Monitor Monitor `yaml:"monitor"`
	Logging Logging `yaml:"logging"`
}

// Tree contains the construction parameters: the key-space size,
// branching factor, page size and buffer size, and the flush worker
// pool size.
type Tree struct {
	N          uint64 `yaml:"n"`
	B          int    `yaml:"b"`
	PageSize   int64  `yaml:"page_size"`
	BufferSize int64  `yaml:"buffer_size"`
	Workers    int    `yaml:"workers"`
	QueueDepth int    `yaml:"queue_depth"`
	Reset      bool   `yaml:"reset"`
}

// Monitor contains the HTTP monitoring server's bind configuration.
type Monitor struct {
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
	Enabled bool   `yaml:"enabled"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Tree: Tree{
			N:          1 << 20,
			B:          8,
			PageSize:   4096,
			BufferSize: 1 << 20,
			Workers:    4,
			QueueDepth: 64,
		},
		Monitor: Monitor{
			Bind:    "127.0.0.1",
			Port:    8080,
			Enabled: true,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Resolve a relative path to an absolute one
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure
// permissions.
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration to configPath,
// overriding the data directory when dataDir is non-empty. It does not
// check whether a file already exists there; an existing file is
// overwritten.
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the
// current platform.
func GetDefaultConfigPath() string {
	// Use OS-specific default locations
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./buffertree.yaml"
	}

	// For Linux/macOS, use ~/.config/buffertree/config.yaml
	configDir := filepath.Join(homeDir, ".config", "buffertree")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// Validate checks that every construction parameter is in range before
// the configuration is handed to pkg/tree.
func (c *Config) Validate() error {
	if c.Tree.B < 2 {
		return fmt.Errorf("tree.b must be >= 2, got %d", c.Tree.B)
	}
	if c.Tree.N < 1 {
		return fmt.Errorf("tree.n must be >= 1, got %d", c.Tree.N)
	}
	if c.Tree.PageSize <= 0 {
		return fmt.Errorf("tree.page_size must be positive, got %d", c.Tree.PageSize)
	}
	if c.Tree.Workers < 1 {
		return fmt.Errorf("tree.workers must be >= 1, got %d", c.Tree.Workers)
	}
	return nil
}
