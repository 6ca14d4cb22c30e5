// Package config provides project configuration management.
//
// This package handles reading and writing .weft/config.yaml files,
// resolving the daemon endpoint, and tracking machine-local state in
// ~/.weft/state.json.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfig represents the .weft/config.yaml file.
type ProjectConfig struct {
	// User identifies the local participant to the daemon.
	User UserConfig `yaml:"user"`

	// Daemon selects how to reach the local weftd endpoint.
	Daemon DaemonConfig `yaml:"daemon,omitempty"`

	// Attach controls which files `weft attach` tracks.
	Attach AttachConfig `yaml:"attach,omitempty"`

	// Trace configures span export for latency debugging.
	Trace TraceConfig `yaml:"trace,omitempty"`
}

// UserConfig identifies the local participant.
type UserConfig struct {
	// ID is the stable participant ID. Generated by `weft init`.
	ID string `yaml:"id"`

	// Name is the display name shown to peers (optional).
	Name string `yaml:"name,omitempty"`
}

// DaemonConfig selects the daemon endpoint.
//
// Both fields are optional. Resolution order is documented on
// DaemonEndpoint; when neither is set the default socket path is used.
type DaemonConfig struct {
	// URL is a ws:// or wss:// endpoint, mainly for development
	// against a TCP daemon.
	URL string `yaml:"url,omitempty"`

	// Socket is the path to the weftd unix socket.
	Socket string `yaml:"socket,omitempty"`
}

// AttachConfig controls file eligibility for `weft attach`.
type AttachConfig struct {
	// Ignore is a list of glob patterns matched against paths relative
	// to the attach root. Dot-prefixed paths are always skipped.
	Ignore []string `yaml:"ignore,omitempty"`

	// MaxFileSize is the largest file attach will track, in bytes.
	// Zero means the built-in default.
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`
}

// TraceConfig configures OTLP trace output.
type TraceConfig struct {
	// File is the path traces are appended to as OTLP JSON lines.
	// Empty disables tracing unless --trace-file is passed.
	File string `yaml:"file,omitempty"`
}

// Validate checks that the configuration is usable.
//
// Returns:
//   - error: Validation error or nil if valid
func (c *ProjectConfig) Validate() error {
	if c.User.ID == "" {
		return fmt.Errorf("user.id is empty (run 'weft init')")
	}
	if u := c.Daemon.URL; u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		return fmt.Errorf("daemon.url must be a ws:// or wss:// URL, got %q", u)
	}
	return nil
}

// LoadProjectConfig loads a project configuration from a file.
//
// Parameters:
//   - path: Path to the config.yaml file
//
// Returns:
//   - *ProjectConfig: The loaded configuration
//   - error: Any error that occurred during loading
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Guarantee the slice is never nil so callers don't need defensive checks
	if cfg.Attach.Ignore == nil {
		cfg.Attach.Ignore = []string{}
	}

	return &cfg, nil
}

// WriteProjectConfig writes a project configuration to a file.
//
// Parameters:
//   - path: Path to write the config.yaml file
//   - cfg: The configuration to write
//
// Returns:
//   - error: Any error that occurred during writing
func WriteProjectConfig(path string, cfg *ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Add header comment
	header := "# Weft configuration\n# Generated by: weft init\n\n"
	content := header + string(data)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
