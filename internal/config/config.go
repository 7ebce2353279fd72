// Package config loads agentdeck settings from a TOML file with environment
// overrides. The settings file only selects and tunes backends; session data
// always lives wherever the backend itself put it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// BackendSettings tunes one backend's store resolution.
type BackendSettings struct {
	Dir string `toml:"dir"` // storage root override (gemini, opencode, codex)
	DB  string `toml:"db"`  // database path override (crush)
}

// Config represents the agentdeck configuration.
type Config struct {
	Backend string `toml:"backend"` // active backend name
	Debug   bool   `toml:"debug"`

	Gemini   BackendSettings `toml:"gemini"`
	Opencode BackendSettings `toml:"opencode"`
	Crush    BackendSettings `toml:"crush"`
	Codex    BackendSettings `toml:"codex"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: "gemini",
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/agentdeck/config.toml
func ConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "agentdeck", "config.toml")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "agentdeck", "config.toml")
}

// Load reads the config file, falling back to defaults when it does not
// exist. Environment variables win over file values:
//
//	AGENTDECK_BACKEND       active backend name
//	AGENTDECK_GEMINI_DIR    gemini storage root
//	AGENTDECK_OPENCODE_DIR  opencode storage root
//	AGENTDECK_CRUSH_DB      crush database path
//	AGENTDECK_CODEX_DIR     codex storage root
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := ConfigPath()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGENTDECK_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("AGENTDECK_GEMINI_DIR"); v != "" {
		cfg.Gemini.Dir = v
	}
	if v := os.Getenv("AGENTDECK_OPENCODE_DIR"); v != "" {
		cfg.Opencode.Dir = v
	}
	if v := os.Getenv("AGENTDECK_CRUSH_DB"); v != "" {
		cfg.Crush.DB = v
	}
	if v := os.Getenv("AGENTDECK_CODEX_DIR"); v != "" {
		cfg.Codex.Dir = v
	}
}
