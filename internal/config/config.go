// Package config loads the clickart configuration file.
//
// Config is stored at $XDG_CONFIG_HOME/clickart/config.yaml (defaults to
// ~/.config/clickart/config.yaml). A missing file yields the defaults,
// not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the endpoints and local settings of the pipeline.
type Config struct {
	UploadURL     string `yaml:"upload-url"`
	UploadKey     string `yaml:"upload-key"`
	GenerateURL   string `yaml:"generate-url"`
	GenerateToken string `yaml:"generate-token"`
	CanvasSize    int    `yaml:"canvas-size"`
	ListenPort    int    `yaml:"listen-port"`
	StorePath     string `yaml:"store-path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CanvasSize: 512,
		ListenPort: 8787,
		StorePath:  filepath.Join(dataDir(), "clickart.db"),
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/clickart/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "clickart", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "clickart", "config.yaml")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "clickart")
}

// Load reads the config file at path, or Path() when path is empty.
// Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path (Path() when empty), creating
// directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
