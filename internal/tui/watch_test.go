package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weftlabs/weft/internal/presence"
	"github.com/weftlabs/weft/internal/protocol"
)

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// fakeSource is an in-memory peerSource for driving the watch model.
type fakeSource struct {
	peers     []presence.Peer
	following string
	followErr error
	followed  []string
	unfollows int
}

func (f *fakeSource) ListPeers() []presence.Peer { return f.peers }

func (f *fakeSource) Follow(userID string) error {
	if f.followErr != nil {
		return f.followErr
	}
	f.followed = append(f.followed, userID)
	f.following = userID
	return nil
}

func (f *fakeSource) Unfollow() {
	f.unfollows++
	f.following = ""
}

func (f *fakeSource) Following() string { return f.following }

func peerAt(userID, name, uri string, line, col int) presence.Peer {
	return presence.Peer{
		UserID:      userID,
		DisplayName: name,
		DocumentURI: uri,
		Ranges: []protocol.Range{{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col},
		}},
		LastSeen: time.Now(),
	}
}

func TestUpdate_PeersMsgStoresSnapshot(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})
	peers := []presence.Peer{peerAt("u-1", "alice", "file:///tmp/notes.md", 11, 7)}

	nextModel, _ := m.Update(PeersMsg{Peers: peers, Following: "u-1"})

	next := nextModel.(watchModel)
	if next.loading {
		t.Fatalf("expected loading to clear after first peer snapshot")
	}
	if len(next.peers) != 1 || next.peers[0].UserID != "u-1" {
		t.Fatalf("expected peer snapshot to be stored, got %+v", next.peers)
	}
	if next.following != "u-1" {
		t.Fatalf("expected following to be stored, got %q", next.following)
	}
}

func TestUpdate_RefreshTickIssuesNextPoll(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})

	_, cmd := m.Update(refreshTickMsg{})
	if cmd == nil {
		t.Fatalf("expected refresh tick to issue the next poll command")
	}
}

func TestUpdate_CopiedMsgSetsStatus(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})

	nextModel, _ := m.Update(copiedMsg{location: "file:///tmp/notes.md:12:8"})
	next := nextModel.(watchModel)
	if !strings.Contains(next.statusMsg, "file:///tmp/notes.md:12:8") {
		t.Fatalf("expected status message with copied location, got %q", next.statusMsg)
	}

	copyErr := errors.New("no clipboard")
	nextModel, _ = next.Update(copiedMsg{err: copyErr})
	next = nextModel.(watchModel)
	if next.err == nil || next.err.Error() != copyErr.Error() {
		t.Fatalf("expected copy error to be surfaced, got %v", next.err)
	}
}

func TestHandleKey_FollowTogglesSelectedPeer(t *testing.T) {
	src := &fakeSource{}
	m := newWatchModel("dev", "ws://localhost:9870", src)
	m.peers = []presence.Peer{peerAt("u-1", "alice", "file:///tmp/notes.md", 0, 0)}

	nextModel, _ := m.handleKey(keyRune('f'))
	next := nextModel.(watchModel)
	if next.following != "u-1" {
		t.Fatalf("expected f to follow the selected peer, following=%q", next.following)
	}
	if len(src.followed) != 1 || src.followed[0] != "u-1" {
		t.Fatalf("expected Follow(u-1) on the session, got %v", src.followed)
	}
	if !strings.Contains(next.statusMsg, "alice") {
		t.Fatalf("expected follow status message, got %q", next.statusMsg)
	}

	nextModel, _ = next.handleKey(keyRune('f'))
	next = nextModel.(watchModel)
	if next.following != "" {
		t.Fatalf("expected second f to unfollow, following=%q", next.following)
	}
	if src.unfollows != 1 {
		t.Fatalf("expected Unfollow on the session, got %d calls", src.unfollows)
	}
}

func TestHandleKey_FollowUnknownPeerSetsErr(t *testing.T) {
	src := &fakeSource{followErr: presence.ErrUnknownPeer}
	m := newWatchModel("dev", "ws://localhost:9870", src)
	m.peers = []presence.Peer{peerAt("u-1", "alice", "", 0, 0)}

	nextModel, cmd := m.handleKey(keyRune('f'))
	next := nextModel.(watchModel)
	if next.err == nil {
		t.Fatalf("expected follow error to be surfaced")
	}
	if cmd == nil {
		t.Fatalf("expected a refresh command after follow failure")
	}
}

func TestHandleKey_FollowWithNoPeersIsNoop(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})

	nextModel, cmd := m.handleKey(keyRune('f'))
	if cmd != nil {
		t.Fatalf("expected nil cmd with no peers, got %v", cmd)
	}
	next := nextModel.(watchModel)
	if next.following != "" {
		t.Fatalf("expected no follow with empty peer list")
	}
}

func TestHandleKey_NavigationClamps(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})
	m.peers = []presence.Peer{
		peerAt("u-1", "alice", "", 0, 0),
		peerAt("u-2", "bob", "", 0, 0),
	}

	nextModel, _ := m.handleKey(keyRune('k'))
	next := nextModel.(watchModel)
	if next.cursor != 0 {
		t.Fatalf("expected cursor to stay at 0, got %d", next.cursor)
	}

	nextModel, _ = next.handleKey(keyRune('j'))
	next = nextModel.(watchModel)
	if next.cursor != 1 {
		t.Fatalf("expected cursor to move to 1, got %d", next.cursor)
	}

	nextModel, _ = next.handleKey(keyRune('j'))
	next = nextModel.(watchModel)
	if next.cursor != 1 {
		t.Fatalf("expected cursor to clamp at last peer, got %d", next.cursor)
	}
}

func TestHandleKey_SlashOpensFilter(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})

	nextModel, cmd := m.handleKey(keyRune('/'))
	if cmd == nil {
		t.Fatalf("expected blink command when opening filter")
	}
	next := nextModel.(watchModel)
	if !next.filterMode {
		t.Fatalf("expected slash to enable filter mode")
	}
}

func TestHandleKey_CopyIssuesClipboardCmd(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})
	m.peers = []presence.Peer{peerAt("u-1", "alice", "file:///tmp/notes.md", 11, 7)}

	_, cmd := m.handleKey(keyRune('c'))
	if cmd == nil {
		t.Fatalf("expected copy command when pressing c on a peer")
	}
}

func TestApplyFilter_MatchesLabelAndDocument(t *testing.T) {
	m := newWatchModel("dev", "ws://localhost:9870", &fakeSource{})
	m.peers = []presence.Peer{
		peerAt("u-1", "alice", "file:///tmp/notes.md", 0, 0),
		peerAt("u-2", "bob", "file:///tmp/readme.md", 0, 0),
	}

	m.filterInput.SetValue("readme")
	m.applyFilter()
	if len(m.filteredPeers) != 1 || m.filteredPeers[0].UserID != "u-2" {
		t.Fatalf("expected document filter to match bob, got %+v", m.filteredPeers)
	}

	m.filterInput.SetValue("ALICE")
	m.applyFilter()
	if len(m.filteredPeers) != 1 || m.filteredPeers[0].UserID != "u-1" {
		t.Fatalf("expected case-insensitive label filter to match alice, got %+v", m.filteredPeers)
	}

	m.filterInput.SetValue("")
	m.applyFilter()
	if m.filteredPeers != nil {
		t.Fatalf("expected empty filter to clear filtered list")
	}
}

func TestView_RendersPeerRows(t *testing.T) {
	m := newWatchModel("0.1.0", "ws://localhost:9870", &fakeSource{})
	m.width = 100
	m.height = 24
	m.loading = false
	m.peers = []presence.Peer{
		peerAt("u-1", "alice", "file:///tmp/notes.md", 11, 7),
		peerAt("u-2", "bob", "file:///tmp/readme.md", 2, 0),
	}

	out := m.View()
	for _, want := range []string{"WEFT", "PEERS (2)", "alice", "bob", "notes.md", "12:8", "follow", "quit"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected view to contain %q, got:\n%s", want, out)
		}
	}
}

func TestView_EmptyState(t *testing.T) {
	m := newWatchModel("0.1.0", "ws://localhost:9870", &fakeSource{})
	m.width = 80
	m.loading = false

	out := m.View()
	if !strings.Contains(out, "No peers connected") {
		t.Fatalf("expected empty state message, got:\n%s", out)
	}
}

func TestView_ShowsFollowedPeer(t *testing.T) {
	m := newWatchModel("0.1.0", "ws://localhost:9870", &fakeSource{})
	m.width = 80
	m.loading = false
	m.peers = []presence.Peer{peerAt("u-1", "alice", "", 0, 0)}
	m.following = "u-1"

	out := m.View()
	if !strings.Contains(out, "following alice") {
		t.Fatalf("expected following status line, got:\n%s", out)
	}
}

func TestDocBase(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{name: "file uri", uri: "file:///home/user/project/notes.md", want: "notes.md"},
		{name: "bare path", uri: "/tmp/readme.md", want: "readme.md"},
		{name: "empty", uri: "", want: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := docBase(tt.uri); got != tt.want {
				t.Errorf("docBase(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestPeerLocation(t *testing.T) {
	p := peerAt("u-1", "alice", "file:///tmp/notes.md", 11, 7)
	if got, want := peerLocation(p), "file:///tmp/notes.md:12:8"; got != want {
		t.Errorf("peerLocation = %q, want %q", got, want)
	}

	if got := peerLocation(presence.Peer{UserID: "u-2"}); got != "" {
		t.Errorf("expected empty location for peer without cursor, got %q", got)
	}
}
