// Package main provides shared helper functions for CLI commands.
package main

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/presence"
	"github.com/weftlabs/weft/internal/session"
)

// connectPresenceSession dials the daemon with an in-memory host, for
// commands that only read presence (peers, watch). The session never
// opens a document, so it is invisible to the edit path.
//
// Parameters:
//   - cmd: The command, for context and flag access
//
// Returns:
//   - *session.Session: The connected session; caller must Close
//   - string: The endpoint that was dialed
//   - error: Any error locating the project or connecting
func connectPresenceSession(cmd *cobra.Command) (*session.Session, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		return nil, "", fmt.Errorf("not inside a weft project (run 'weft init' first)")
	}

	cfg, err := config.LoadProjectConfig(config.ConfigPath(root))
	if err != nil {
		return nil, "", fmt.Errorf("failed to load project config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	endpoint := config.DaemonEndpoint(&cfg.Daemon)

	sess := session.New(host.NewMemHost(),
		session.WithIdentity(cfg.User.ID, cfg.User.Name),
	)
	// Connect errors already name the endpoint.
	if err := sess.Start(cmd.Context(), endpoint); err != nil {
		return nil, "", err
	}
	return sess, endpoint, nil
}

// defaultDisplayName picks a display-name fallback from the OS username.
func defaultDisplayName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}
	return "anonymous"
}

// docBase returns the file name portion of a document URI.
func docBase(uri string) string {
	if uri == "" {
		return "-"
	}
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(uri)
}

// peerPosition formats the peer's primary cursor as 1-based "line:col".
func peerPosition(p presence.Peer) string {
	if len(p.Ranges) == 0 {
		return "-"
	}
	pos := p.Ranges[len(p.Ranges)-1].Start
	return fmt.Sprintf("%d:%d", pos.Line+1, pos.Character+1)
}

// relativeTime formats a timestamp as a human-readable relative time.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
