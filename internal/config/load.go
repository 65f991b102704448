package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working and config dirs.
const FileName = "pointbake.yaml"

// Load loads configuration with priority: defaults < file < flags.
// f may be nil when no flags were registered.
func Load(f *Flags) (*Config, error) {
	cfg := Default()

	configPath := ""
	if f != nil {
		configPath = f.Config
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg, f)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make every job fail.
func (c *Config) Validate() error {
	if c.Placement.Target < 1 {
		return fmt.Errorf("placement.target must be at least 1, got %d", c.Placement.Target)
	}
	if c.Placement.Threshold < 0 {
		return fmt.Errorf("placement.threshold must not be negative, got %d", c.Placement.Threshold)
	}
	if c.Placement.Iterations < 1 {
		return fmt.Errorf("placement.iterations must be at least 1, got %d", c.Placement.Iterations)
	}
	if c.Runner.Interval < 0 {
		return fmt.Errorf("runner.interval must not be negative, got %v", c.Runner.Interval)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		FileName,
		filepath.Join(ConfigDir(), FileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "pointbake")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "pointbake")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "pointbake")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "pointbake")
	}
}

// loadFromFile merges a YAML file over the existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
