// Package tui provides the Bubble Tea watch dashboard for the weft CLI.
//
// The dashboard launches when a human runs `weft watch` in an interactive
// terminal. It is never activated for agents, CI/CD, or piped output --
// three independent gates (--json, --quiet, isatty) prevent it.
package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/weftlabs/weft/internal/presence"
)

// --- TTY gate ---

// ShouldRunTUI returns true if the TUI should be launched.
// Returns false when stdout is not a terminal, or --json/--quiet flags are set.
//
// Parameters:
//   - jsonOutput: whether --json was passed
//   - quiet: whether --quiet was passed
//
// Returns:
//   - bool: true if the TUI should run
func ShouldRunTUI(jsonOutput, quiet bool) bool {
	if jsonOutput || quiet {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// --- Brand colors (mirrors internal/ui/styles.go) ---

var (
	indigo  = lipgloss.Color("#6366F1")
	teal    = lipgloss.Color("#14B8A6")
	red     = lipgloss.Color("#EF4444")
	amber   = lipgloss.Color("#F59E0B")
	green   = lipgloss.Color("#22C55E")
	gray    = lipgloss.Color("#6B7280")
	dimGray = lipgloss.Color("#9CA3AF")
	white   = lipgloss.Color("#E5E7EB")
)

// --- Shared TUI styles ---

var (
	// titleStyle renders the WEFT header.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(indigo)

	// versionStyle renders the version badge.
	versionStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	// sectionStyle renders section headers (e.g. "PEERS").
	sectionStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			Bold(true).
			MarginTop(1)

	// selectedStyle highlights the currently selected list item.
	selectedStyle = lipgloss.NewStyle().
			Foreground(indigo).
			Bold(true)

	// normalStyle renders unselected list items.
	normalStyle = lipgloss.NewStyle().
			Foreground(white)

	// dimStyle renders low-priority text.
	dimStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	// errorStyle renders error indicators.
	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	// onlineStyle renders recently active peer indicators.
	onlineStyle = lipgloss.NewStyle().
			Foreground(green)

	// idleStyle renders idle peer indicators.
	idleStyle = lipgloss.NewStyle().
			Foreground(amber)

	// followStyle renders the followed-peer marker and status line.
	followStyle = lipgloss.NewStyle().
			Foreground(teal).
			Bold(true)

	// helpStyle renders the bottom key hint bar.
	helpStyle = lipgloss.NewStyle().
			Foreground(gray)

	// separatorStyle renders horizontal rules.
	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))

	// filterPromptStyle renders the filter prompt.
	filterPromptStyle = lipgloss.NewStyle().
				Foreground(indigo).
				Bold(true)
)

// separator returns a horizontal line of the given width.
func separator(width int) string {
	return separatorStyle.Render(strings.Repeat("─", width))
}

// helpKeyRender renders a single "key action" hint for the help bar.
func helpKeyRender(key, action string) string {
	return followStyle.Render(key) + helpStyle.Render(" "+action)
}

// --- Shared message types ---

// PeersMsg carries a presence snapshot from the session.
type PeersMsg struct {
	Peers     []presence.Peer
	Following string
}

// peerSource is the slice of session behavior the watch screen needs.
type peerSource interface {
	ListPeers() []presence.Peer
	Follow(userID string) error
	Unfollow()
	Following() string
}

// --- Shared spinner factory ---

// newSpinner creates a consistently styled braille spinner.
func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(teal)
	return s
}

// --- Tea program runner ---

// RunWatch launches the watch dashboard. This is the main entry point
// called from cmd/weft/watch.go.
//
// Parameters:
//   - version: the CLI version string for display
//   - endpoint: the daemon endpoint shown in the header
//   - src: the live session to poll for peers
//
// Returns:
//   - error: any error from the Bubble Tea runtime
func RunWatch(version, endpoint string, src peerSource) error {
	p := tea.NewProgram(
		newWatchModel(version, endpoint, src),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}

// relativeTime formats a timestamp as a human-readable relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
