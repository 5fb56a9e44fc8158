// ABOUTME: Configuration loading for the fold-bridge CLI.
// ABOUTME: Loads TOML config from XDG path with environment variable expansion.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Bridge   BridgeConfig   `toml:"bridge"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Logging  LoggingConfig  `toml:"logging"`
}

type BridgeConfig struct {
	// Manifests is the directory scanned for backend manifests.
	Manifests string `toml:"manifests"`
	// Database is the call log path; empty disables call recording.
	Database string `toml:"database"`
}

type TimeoutsConfig struct {
	CallSeconds  int `toml:"call_seconds"`
	ProbeSeconds int `toml:"probe_seconds"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// defaultConfig returns the config used when no file exists on disk.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Manifests: "backends",
		},
	}
}

// configPath returns the path to the bridge config file.
// Priority: FOLD_BRIDGE_CONFIG env var > XDG_CONFIG_HOME/fold-bridge/bridge.toml
// > ~/.config/fold-bridge/bridge.toml
func configPath() string {
	if envPath := os.Getenv("FOLD_BRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "bridge.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fold-bridge", "bridge.toml")
}

// loadConfig reads config from the given path, expanding environment
// variables. A missing file yields the defaults rather than an error so the
// CLI works out of the box.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := defaultConfig()
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that config fields are present and sane.
func (c *Config) Validate() error {
	if c.Bridge.Manifests == "" {
		return fmt.Errorf("bridge.manifests is required")
	}
	if c.Timeouts.CallSeconds < 0 {
		return fmt.Errorf("timeouts.call_seconds must not be negative")
	}
	if c.Timeouts.ProbeSeconds < 0 {
		return fmt.Errorf("timeouts.probe_seconds must not be negative")
	}
	return nil
}

// CallTimeout returns the configured call timeout, or zero for the default.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Timeouts.CallSeconds) * time.Second
}

// ProbeTimeout returns the configured probe timeout, or zero for the default.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Timeouts.ProbeSeconds) * time.Second
}
