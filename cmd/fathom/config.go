package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// cliConfig is the optional YAML configuration. Every field has a working
// default so the file can be absent.
type cliConfig struct {
	LogLevel   string `yaml:"log_level"`
	ProfileDir string `yaml:"profile_dir"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fathom.yaml")
}

// loadConfig reads the config file at path. A missing default file is fine;
// a missing explicit file is an error.
func loadConfig(path string, explicit bool) (*cliConfig, error) {
	cfg := &cliConfig{LogLevel: "warn"}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path comes from the user
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c *cliConfig) slogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
