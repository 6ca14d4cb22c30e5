// Package config provides on-disk path resolution for the weft CLI.
//
// This file resolves where the project configuration, the daemon socket,
// and the machine-local state file live, honoring environment overrides
// so development setups can point at a non-default daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// WeftDirName is the per-project configuration directory.
	WeftDirName = ".weft"

	// ConfigFileName is the project configuration file inside WeftDirName.
	ConfigFileName = "config.yaml"

	// SocketFileName is the daemon's unix socket filename.
	SocketFileName = "weftd.sock"

	// StateFileName is the machine-local state file inside ~/.weft.
	StateFileName = "state.json"
)

// ConfigPath returns the path to .weft/config.yaml under a project root.
//
// Parameters:
//   - root: The project root directory
//
// Returns:
//   - string: The config file path
func ConfigPath(root string) string {
	return filepath.Join(root, WeftDirName, ConfigFileName)
}

// FindProjectRoot walks up from the given directory looking for a .weft/
// directory.
//
// Returns the first ancestor (or the directory itself) that contains a
// .weft/ subdirectory.
//
// Parameters:
//   - dir: Starting directory to search from.
//
// Returns:
//   - string: The project root path containing .weft/.
//   - error: Error if no .weft/ directory is found before reaching /.
func FindProjectRoot(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	current := absDir
	for {
		weftDir := filepath.Join(current, WeftDirName)
		if info, err := os.Stat(weftDir); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no .weft/ directory found (searched from %s to /)", absDir)
		}
		current = parent
	}
}

// DefaultSocketPath returns the path where weftd listens by default.
//
// Resolution order:
//  1. $WEFT_SOCKET
//  2. $XDG_RUNTIME_DIR/weft/weftd.sock
//  3. ~/.weft/weftd.sock
//
// Returns:
//   - string: The daemon socket path
func DefaultSocketPath() string {
	// First check environment variable override
	if p := os.Getenv("WEFT_SOCKET"); p != "" {
		return p
	}

	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "weft", SocketFileName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(WeftDirName, SocketFileName)
	}
	return filepath.Join(home, WeftDirName, SocketFileName)
}

// DaemonEndpoint resolves the endpoint weft should dial.
//
// Environment overrides win over the project configuration, and a URL
// wins over a socket path within each level:
//  1. $WEFT_URL
//  2. $WEFT_SOCKET
//  3. daemon.url from config
//  4. daemon.socket from config
//  5. DefaultSocketPath
//
// Parameters:
//   - cfg: The daemon section of the project config (may be nil)
//
// Returns:
//   - string: A ws:// (or wss://) URL or a unix socket path
func DaemonEndpoint(cfg *DaemonConfig) string {
	if u := os.Getenv("WEFT_URL"); u != "" {
		return u
	}
	if p := os.Getenv("WEFT_SOCKET"); p != "" {
		return p
	}
	if cfg != nil {
		if cfg.URL != "" {
			return cfg.URL
		}
		if cfg.Socket != "" {
			return cfg.Socket
		}
	}
	return DefaultSocketPath()
}

// StatePath returns the machine-local state file path (~/.weft/state.json).
//
// Returns:
//   - string: The state file path
//   - error: Error if the home directory cannot be resolved
func StatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, WeftDirName, StateFileName), nil
}
