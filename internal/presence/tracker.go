// Package presence maintains remote cursor/selection state for the
// session's peers, paints it into open buffers, and implements follow
// mode.
//
// All peer and highlight state lives behind one mutex; incoming cursor
// events, local caret notifications, and snapshot reads may arrive on
// different goroutines. Callers never get live references to internal
// state, only copies.
package presence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/protocol"
	"github.com/weftlabs/weft/internal/rpc"
	"github.com/weftlabs/weft/internal/util"
)

// ErrUnknownPeer reports a follow request for a user the tracker has never
// seen.
var ErrUnknownPeer = errors.New("unknown peer")

// Peer is an immutable snapshot of one remote user's latest presence.
type Peer struct {
	// UserID is the stable identity assigned by the daemon.
	UserID string

	// DisplayName is the name the peer announced. May be empty.
	DisplayName string

	// DocumentURI is the document the peer is in.
	DocumentURI string

	// Ranges holds the peer's carets/selections; the last entry is the
	// primary caret.
	Ranges []protocol.Range

	// LastSeen is when the peer's latest cursor event arrived.
	LastSeen time.Time
}

// Label returns the peer's display label: the sanitized display name, or a
// shortened user id when no name was announced.
func (p Peer) Label() string {
	return util.PeerLabel(p.DisplayName, p.UserID)
}

type highlightKey struct {
	uri    string
	userID string
}

// Tracker owns remote presence state for one session.
type Tracker struct {
	mu         sync.Mutex
	host       host.Host
	proxy      *rpc.Proxy
	peers      map[string]Peer
	highlights map[highlightKey][]host.HighlightHandle
	followed   string

	// pendingJumps counts caret notifications that our own follow jumps
	// are about to cause, so they are consumed instead of re-broadcast.
	pendingJumps int

	logger *log.Logger
}

// NewTracker creates a presence tracker over a host and a proxy. A nil
// logger falls back to the default logger.
func NewTracker(h host.Host, proxy *rpc.Proxy, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default().With("component", "presence")
	}
	return &Tracker{
		host:       h,
		proxy:      proxy,
		peers:      make(map[string]Peer),
		highlights: make(map[highlightKey][]host.HighlightHandle),
		logger:     logger,
	}
}

// RecordAndRender stores a remote user's latest cursor state, replacing the
// previous one wholesale, and repaints the user's highlights in the target
// buffer if one is open. When the sender is the followed user, the local
// view jumps to the sender's primary caret.
//
// Events without a user id are dropped. Ranges the buffer cannot resolve
// are skipped silently.
func (t *Tracker) RecordAndRender(ev protocol.CursorEvent) {
	if ev.UserID == "" {
		return
	}

	t.mu.Lock()
	prev, known := t.peers[ev.UserID]
	t.peers[ev.UserID] = Peer{
		UserID:      ev.UserID,
		DisplayName: ev.DisplayName,
		DocumentURI: ev.URI,
		Ranges:      append([]protocol.Range(nil), ev.Ranges...),
		LastSeen:    time.Now(),
	}

	// A user has one presence location; highlights left in the document
	// they came from are stale.
	if known && prev.DocumentURI != ev.URI {
		t.removeHighlightsLocked(highlightKey{uri: prev.DocumentURI, userID: ev.UserID})
	}
	t.repaintLocked(ev)

	jump := t.followed == ev.UserID && len(ev.Ranges) > 0
	if jump {
		t.pendingJumps++
	}
	t.mu.Unlock()

	if jump {
		t.jumpTo(ev.URI, ev.Ranges[len(ev.Ranges)-1])
	}
}

// OnBufferOpened paints the presence of every peer already known to be in
// the newly opened document, and completes a deferred follow jump if the
// followed peer is there.
func (t *Tracker) OnBufferOpened(uri string) {
	t.mu.Lock()
	var jumpRange *protocol.Range
	for _, p := range t.peers {
		if p.DocumentURI != uri {
			continue
		}
		t.repaintLocked(protocol.CursorEvent{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			URI:         p.DocumentURI,
			Ranges:      p.Ranges,
		})
		if p.UserID == t.followed && len(p.Ranges) > 0 {
			r := p.Ranges[len(p.Ranges)-1]
			jumpRange = &r
		}
	}
	if jumpRange != nil {
		t.pendingJumps++
	}
	t.mu.Unlock()

	if jumpRange != nil {
		t.jumpTo(uri, *jumpRange)
	}
}

// OnBufferClosed forgets the highlight handles installed in a buffer. The
// handles died with the buffer; there is nothing to remove.
func (t *Tracker) OnBufferClosed(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.highlights {
		if key.uri == uri {
			delete(t.highlights, key)
		}
	}
}

// ListPeers returns a snapshot of all known peers, sorted by display name
// case-insensitively (peers without a name sort by user id; ties break by
// user id). The snapshot is independent of tracker state.
func (t *Tracker) ListPeers() []Peer {
	t.mu.Lock()
	list := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		p.Ranges = append([]protocol.Range(nil), p.Ranges...)
		list = append(list, p)
	}
	t.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		ni, nj := sortKey(list[i]), sortKey(list[j])
		if ni != nj {
			return ni < nj
		}
		return list[i].UserID < list[j].UserID
	})
	return list
}

func sortKey(p Peer) string {
	if p.DisplayName != "" {
		return strings.ToLower(p.DisplayName)
	}
	return strings.ToLower(p.UserID)
}

// Follow starts following a known peer and navigates to their primary
// caret. Unknown users leave the follow state untouched.
//
// Navigation is best-effort: when the target buffer cannot be opened the
// follow state is still set and the next presence update retries the jump.
//
// Returns:
//   - error: ErrUnknownPeer (wrapped) when the user has never been seen
func (t *Tracker) Follow(userID string) error {
	t.mu.Lock()
	peer, ok := t.peers[userID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPeer, userID)
	}
	t.followed = userID
	jump := len(peer.Ranges) > 0
	if jump {
		t.pendingJumps++
	}
	uri := peer.DocumentURI
	var target protocol.Range
	if jump {
		target = peer.Ranges[len(peer.Ranges)-1]
	}
	t.mu.Unlock()

	if jump {
		t.jumpTo(uri, target)
	}
	return nil
}

// Unfollow clears the follow state.
func (t *Tracker) Unfollow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.followed = ""
}

// Following returns the followed user id, or empty when not following.
func (t *Tracker) Following() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.followed
}

// OnLocalCursor handles a local caret/selection movement. Movements caused
// by our own follow jumps are consumed silently. Any other movement is
// local intent: it clears the follow state first, then broadcasts the full
// caret set.
func (t *Tracker) OnLocalCursor(uri string, ranges []protocol.Range) {
	t.mu.Lock()
	if t.pendingJumps > 0 {
		t.pendingJumps--
		t.mu.Unlock()
		return
	}
	t.followed = ""
	t.mu.Unlock()

	if len(ranges) == 0 {
		return
	}
	t.proxy.Cursor(uri, ranges)
}

// Clear tears presence down: detaches the proxy, removes every installed
// highlight, and empties all state. Idempotent.
func (t *Tracker) Clear() {
	t.proxy.Detach()

	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.highlights {
		t.removeHighlightsLocked(key)
	}
	t.peers = make(map[string]Peer)
	t.highlights = make(map[highlightKey][]host.HighlightHandle)
	t.followed = ""
	t.pendingJumps = 0
}

// repaintLocked replaces the highlight set for the event's (uri, user) key.
// Callers hold t.mu.
func (t *Tracker) repaintLocked(ev protocol.CursorEvent) {
	key := highlightKey{uri: ev.URI, userID: ev.UserID}
	buf, open := t.host.Buffer(ev.URI)
	if !open {
		delete(t.highlights, key)
		return
	}

	t.removeHighlightsLocked(key)
	label := util.PeerLabel(ev.DisplayName, ev.UserID)
	var handles []host.HighlightHandle
	for _, r := range ev.Ranges {
		h, err := buf.Highlight(ev.UserID, label, r)
		if err != nil {
			continue
		}
		handles = append(handles, h)
	}
	if len(handles) > 0 {
		t.highlights[key] = handles
	}
}

// removeHighlightsLocked removes and forgets the highlight set for a key.
// Callers hold t.mu.
func (t *Tracker) removeHighlightsLocked(key highlightKey) {
	handles, ok := t.highlights[key]
	if !ok {
		return
	}
	if buf, open := t.host.Buffer(key.uri); open {
		for _, h := range handles {
			buf.RemoveHighlight(h)
		}
	}
	delete(t.highlights, key)
}

// jumpTo opens and activates the target buffer and moves the local caret to
// the peer's primary range. Abandoned silently when the buffer cannot be
// opened; the reserved jump notification is returned in that case.
func (t *Tracker) jumpTo(uri string, r protocol.Range) {
	buf, err := t.host.OpenBuffer(uri)
	if err != nil {
		t.mu.Lock()
		if t.pendingJumps > 0 {
			t.pendingJumps--
		}
		t.mu.Unlock()
		t.logger.Debug("follow jump abandoned", "uri", uri, "err", err)
		return
	}
	buf.Activate()
	buf.SetSelection(r)
	buf.ScrollTo(r.End)
}
