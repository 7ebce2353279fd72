package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := ConfigPath(); got != filepath.Join("/xdg", "agentdeck", "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/tester")
	if got := ConfigPath(); got != filepath.Join("/home/tester", ".config", "agentdeck", "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "gemini" {
		t.Errorf("default backend = %q, want gemini", cfg.Backend)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "agentdeck"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "backend = \"codex\"\ndebug = true\n\n[crush]\ndb = \"/data/crush.db\"\n"
	if err := os.WriteFile(filepath.Join(dir, "agentdeck", "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "codex" || !cfg.Debug {
		t.Errorf("file values not loaded: %+v", cfg)
	}
	if cfg.Crush.DB != "/data/crush.db" {
		t.Errorf("crush db = %q", cfg.Crush.DB)
	}
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "agentdeck"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agentdeck", "config.toml"),
		[]byte("backend = \"codex\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTDECK_BACKEND", "opencode")
	t.Setenv("AGENTDECK_OPENCODE_DIR", "/data/opencode")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "opencode" {
		t.Errorf("env override lost: backend = %q", cfg.Backend)
	}
	if cfg.Opencode.Dir != "/data/opencode" {
		t.Errorf("opencode dir = %q", cfg.Opencode.Dir)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "agentdeck"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agentdeck", "config.toml"),
		[]byte("backend = [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("expected parse error for malformed config")
	}
}
