// ABOUTME: Tests for CLI config loading and validation.
// ABOUTME: Covers defaults, env var expansion, and rejection of bad values.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[bridge]
manifests = "/etc/fold-bridge/backends"
database = "/var/lib/fold-bridge/bridge.db"

[timeouts]
call_seconds = 30
probe_seconds = 5

[logging]
level = "debug"
format = "json"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bridge.Manifests != "/etc/fold-bridge/backends" {
		t.Errorf("unexpected manifests dir: %s", cfg.Bridge.Manifests)
	}
	if cfg.Bridge.Database != "/var/lib/fold-bridge/bridge.db" {
		t.Errorf("unexpected database path: %s", cfg.Bridge.Database)
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Errorf("unexpected call timeout: %s", cfg.CallTimeout())
	}
	if cfg.ProbeTimeout() != 5*time.Second {
		t.Errorf("unexpected probe timeout: %s", cfg.ProbeTimeout())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bridge.Manifests != "backends" {
		t.Errorf("unexpected default manifests dir: %s", cfg.Bridge.Manifests)
	}
	if cfg.CallTimeout() != 0 {
		t.Errorf("expected zero call timeout, got %s", cfg.CallTimeout())
	}
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv("BRIDGE_DATA", "/srv/bridge")
	path := writeConfig(t, `
[bridge]
manifests = "${BRIDGE_DATA}/backends"
database = "${BRIDGE_DATA}/bridge.db"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bridge.Manifests != "/srv/bridge/backends" {
		t.Errorf("env var not expanded: %s", cfg.Bridge.Manifests)
	}
	if cfg.Bridge.Database != "/srv/bridge/bridge.db" {
		t.Errorf("env var not expanded: %s", cfg.Bridge.Database)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty manifests", "[bridge]\nmanifests = \"\"\n"},
		{"negative call timeout", "[timeouts]\ncall_seconds = -1\n"},
		{"negative probe timeout", "[timeouts]\nprobe_seconds = -5\n"},
		{"bad toml", "[bridge\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
