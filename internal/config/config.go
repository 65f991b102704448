// Package config handles pointbake configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all tool settings.
type Config struct {
	Scene     SceneConfig     `yaml:"scene"`
	Placement PlacementConfig `yaml:"placement"`
	Export    ExportConfig    `yaml:"export"`
	Runner    RunnerConfig    `yaml:"runner"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SceneConfig locates the scene manifest.
type SceneConfig struct {
	Manifest string `yaml:"manifest"`
}

// PlacementConfig holds point distribution settings.
type PlacementConfig struct {
	Target        int    `yaml:"target"`
	Threshold     int    `yaml:"threshold"`
	Iterations    int    `yaml:"iterations"`
	Seed          uint64 `yaml:"seed"`
	MaxCandidates int    `yaml:"max_candidates"`
}

// ExportConfig holds 3CPF export settings.
type ExportConfig struct {
	Output string `yaml:"output"`
}

// RunnerConfig controls how long-running jobs are stepped.
type RunnerConfig struct {
	// Interval pauses between steps; zero runs them back to back.
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scene: SceneConfig{
			Manifest: "scene.yaml",
		},
		Placement: PlacementConfig{
			Target:        1000,
			Threshold:     10,
			Iterations:    16,
			Seed:          0,
			MaxCandidates: 2_000_000,
		},
		Export: ExportConfig{
			Output: defaultOutput(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultOutput() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "frame_data.3cpf"
	}
	return filepath.Join(home, "frame_data.3cpf")
}
