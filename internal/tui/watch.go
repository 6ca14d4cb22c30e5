// Package tui provides the watch model -- the live presence dashboard.
package tui

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/weftlabs/weft/internal/presence"
)

// refreshInterval is how often the peer list is re-polled from the session.
const refreshInterval = time.Second

// idleAfter is how long a peer can be silent before showing as idle.
const idleAfter = time.Minute

// watchModel is the Bubble Tea model for the watch dashboard.
type watchModel struct {
	version  string
	endpoint string
	src      peerSource

	// Presence data
	peers     []presence.Peer
	following string

	// Peer list navigation
	cursor        int
	filterMode    bool
	filterInput   textinput.Model
	filteredPeers []presence.Peer

	// Shared state
	loading   bool
	spinner   spinner.Model
	statusMsg string
	err       error
	width     int
	height    int
}

// newWatchModel creates the initial watch model.
//
// Parameters:
//   - version: the CLI version string for display
//   - endpoint: the daemon endpoint shown in the header
//   - src: the live session to poll for peers
//
// Returns:
//   - watchModel: the initialized model
func newWatchModel(version, endpoint string, src peerSource) watchModel {
	ti := textinput.New()
	ti.Placeholder = "filter peers..."
	ti.CharLimit = 64

	return watchModel{
		version:     version,
		endpoint:    endpoint,
		src:         src,
		loading:     true,
		spinner:     newSpinner(),
		filterInput: ti,
	}
}

// --- Tea commands ---

// refreshPeersCmd polls the session for the current presence snapshot.
func refreshPeersCmd(src peerSource) tea.Cmd {
	return func() tea.Msg {
		return PeersMsg{Peers: src.ListPeers(), Following: src.Following()}
	}
}

// tickCmd schedules the next periodic refresh. The refreshTickMsg handler
// must issue tickCmd again to continue the polling chain.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// refreshTickMsg signals that the periodic refresh timer fired.
type refreshTickMsg struct{}

// copiedMsg signals the outcome of a copy-location request.
type copiedMsg struct {
	location string
	err      error
}

// copyLocationCmd writes the peer's current location to the system clipboard.
func copyLocationCmd(p presence.Peer) tea.Cmd {
	return func() tea.Msg {
		loc := peerLocation(p)
		if loc == "" {
			return copiedMsg{err: fmt.Errorf("%s has no cursor position", p.Label())}
		}
		if err := clipboard.WriteAll(loc); err != nil {
			return copiedMsg{err: fmt.Errorf("failed to copy location: %w", err)}
		}
		return copiedMsg{location: loc}
	}
}

// --- Bubble Tea interface ---

// Init starts the spinner, the first peer poll, and the refresh timer.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshPeersCmd(m.src), tickCmd())
}

// Update handles all incoming messages and key events.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PeersMsg:
		m.loading = false
		m.peers = msg.Peers
		m.following = msg.Following
		m.applyFilter()
		m.clampCursor()
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(refreshPeersCmd(m.src), tickCmd())

	case copiedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.statusMsg = "copied " + msg.location
		return m, nil
	}

	// Update filter input if in filter mode
	if m.filterMode {
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	return m, nil
}

// handleKey processes key events on the watch dashboard.
func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterMode {
		switch msg.String() {
		case "esc":
			m.filterMode = false
			m.filterInput.Blur()
			m.filterInput.SetValue("")
			m.filteredPeers = nil
			return m, nil
		case "enter":
			m.filterMode = false
			m.filterInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			m.applyFilter()
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.statusMsg = ""

	case "down", "j":
		if m.cursor < len(m.visiblePeers())-1 {
			m.cursor++
		}
		m.statusMsg = ""

	case "f":
		return m.toggleFollow()

	case "u":
		m.src.Unfollow()
		m.following = ""
		m.statusMsg = ""

	case "c":
		peers := m.visiblePeers()
		if len(peers) > 0 && m.cursor < len(peers) {
			return m, copyLocationCmd(peers[m.cursor])
		}

	case "/":
		m.filterMode = true
		m.filterInput.Focus()
		return m, textinput.Blink

	case "R":
		m.loading = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, refreshPeersCmd(m.src))
	}

	return m, nil
}

// toggleFollow follows the selected peer, or unfollows if already followed.
func (m watchModel) toggleFollow() (tea.Model, tea.Cmd) {
	peers := m.visiblePeers()
	if len(peers) == 0 || m.cursor >= len(peers) {
		return m, nil
	}

	selected := peers[m.cursor]
	if m.following == selected.UserID {
		m.src.Unfollow()
		m.following = ""
		m.statusMsg = ""
		return m, nil
	}

	if err := m.src.Follow(selected.UserID); err != nil {
		m.err = err
		return m, refreshPeersCmd(m.src)
	}
	m.err = nil
	m.following = selected.UserID
	m.statusMsg = "following " + selected.Label()
	return m, nil
}

// --- Helpers ---

// visiblePeers returns the filtered peer list, or all peers if no filter is active.
func (m *watchModel) visiblePeers() []presence.Peer {
	if m.filteredPeers != nil {
		return m.filteredPeers
	}
	return m.peers
}

// applyFilter filters the peer list based on the current filter input value.
func (m *watchModel) applyFilter() {
	query := strings.ToLower(m.filterInput.Value())
	if query == "" {
		m.filteredPeers = nil
		return
	}

	var filtered []presence.Peer
	for _, p := range m.peers {
		if strings.Contains(strings.ToLower(p.Label()), query) ||
			strings.Contains(strings.ToLower(p.DocumentURI), query) {
			filtered = append(filtered, p)
		}
	}
	m.filteredPeers = filtered

	if m.cursor >= len(filtered) {
		m.cursor = max(0, len(filtered)-1)
	}
}

// clampCursor keeps the cursor inside the visible peer list after refreshes.
func (m *watchModel) clampCursor() {
	if n := len(m.visiblePeers()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

// followedLabel returns the display label of the followed peer, if any.
func (m watchModel) followedLabel() string {
	for _, p := range m.peers {
		if p.UserID == m.following {
			return p.Label()
		}
	}
	return m.following
}

// presenceIcon returns a styled activity indicator for a peer.
func presenceIcon(lastSeen time.Time) string {
	if time.Since(lastSeen) < idleAfter {
		return onlineStyle.Render("●")
	}
	return idleStyle.Render("◐")
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
		return ""
	}
	pos := p.Ranges[len(p.Ranges)-1].Start
	return fmt.Sprintf("%d:%d", pos.Line+1, pos.Character+1)
}

// peerLocation formats the peer's full location for the clipboard.
func peerLocation(p presence.Peer) string {
	if p.DocumentURI == "" || len(p.Ranges) == 0 {
		return ""
	}
	pos := p.Ranges[len(p.Ranges)-1].Start
	return fmt.Sprintf("%s:%d:%d", p.DocumentURI, pos.Line+1, pos.Character+1)
}

// truncate shortens a string to at most n runes, with ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// --- View rendering ---

// View renders the watch dashboard.
func (m watchModel) View() string {
	var b strings.Builder
	w := m.width
	if w == 0 {
		w = 80
	}
	sepW := min(w, 60)

	b.WriteString(titleStyle.Render(" WEFT") + "  " + versionStyle.Render("v"+m.version) + "\n")
	b.WriteString(separator(sepW) + "\n")
	b.WriteString("  " + dimStyle.Render("daemon: "+m.endpoint) + "\n")

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  ✗ "+m.err.Error()) + "\n")
	}

	if m.loading {
		b.WriteString("\n  " + m.spinner.View() + " Connecting...\n")
		return b.String()
	}

	peers := m.visiblePeers()
	b.WriteString(sectionStyle.Render(fmt.Sprintf("  PEERS (%d)", len(peers))) + "\n")
	b.WriteString("  " + separator(min(w-4, 56)) + "\n")

	if m.filterMode || m.filterInput.Value() != "" {
		b.WriteString("  " + filterPromptStyle.Render("/") + " " + m.filterInput.View() + "\n")
	}

	if len(peers) == 0 {
		if m.filterInput.Value() != "" {
			b.WriteString("  " + dimStyle.Render("No peers match the filter.") + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render("No peers connected. Waiting for activity...") + "\n")
		}
	}

	for i, p := range peers {
		b.WriteString(m.renderPeerRow(i, p))
	}

	if m.following != "" {
		b.WriteString("\n  " + followStyle.Render("following "+m.followedLabel()) + "\n")
	}
	if m.statusMsg != "" {
		b.WriteString("\n  " + dimStyle.Render(m.statusMsg) + "\n")
	}

	b.WriteString("\n  " + separator(min(w-4, 56)) + "\n")
	keys := []string{
		helpKeyRender("f", "follow"),
		helpKeyRender("c", "copy location"),
		helpKeyRender("/", "filter"),
		helpKeyRender("R", "refresh"),
		helpKeyRender("q", "quit"),
	}
	b.WriteString("  " + strings.Join(keys, "  ") + "\n")
	return b.String()
}

// renderPeerRow renders a single peer line with cursor and follow markers.
func (m watchModel) renderPeerRow(i int, p presence.Peer) string {
	cur := "  "
	style := normalStyle
	if i == m.cursor {
		cur = selectedStyle.Render("▸ ")
		style = selectedStyle
	}
	if p.UserID == m.following {
		style = followStyle
	}

	nameCell := fmt.Sprintf("%-18s", truncate(p.Label(), 18))
	docCell := fmt.Sprintf("%-22s", truncate(docBase(p.DocumentURI), 22))
	posCell := fmt.Sprintf("%-8s", peerPosition(p))

	var row strings.Builder
	row.WriteString("  " + cur + presenceIcon(p.LastSeen) + " ")
	row.WriteString(style.Render(nameCell) + " ")
	row.WriteString(normalStyle.Render(docCell) + " ")
	row.WriteString(dimStyle.Render(posCell) + " ")
	row.WriteString(dimStyle.Render(relativeTime(p.LastSeen)))
	row.WriteString("\n")
	return row.String()
}
