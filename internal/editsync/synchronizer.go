// Package editsync keeps tracked documents converged with the daemon: it
// turns local buffer mutations into outgoing delta ops and applies remote
// deltas to local buffers without letting them echo back out.
//
// Per tracked URI the synchronizer keeps a shadow copy of what the daemon
// last heard from us. Local changes diff against the shadow; remote edits
// advance it. The per-document echo guard is held for exactly the span of
// a remote application, so the host's own change notification for that
// write is recognized and dropped. For hosts that notify asynchronously
// (a file watcher, say) the shadow provides the second line of defense:
// re-diffing content the daemon already knows produces an empty delta.
package editsync

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/protocol"
	"github.com/weftlabs/weft/internal/rpc"
)

// docState is the per-document synchronization state.
type docState struct {
	// mu serializes shadow and revision updates for this document.
	mu sync.Mutex

	// shadow is the content the daemon last heard from us.
	shadow string

	// revision counts the daemon-authored ops applied to this document.
	revision int64

	// guard is the echo guard: non-zero while a remote edit is being
	// written into the buffer.
	guard atomic.Int32
}

// Synchronizer owns the tracked-document set for one session.
type Synchronizer struct {
	mu     sync.RWMutex
	host   host.Host
	proxy  *rpc.Proxy
	docs   map[string]*docState
	logger *log.Logger
}

// NewSynchronizer creates an edit synchronizer over a host and a proxy. A
// nil logger falls back to the default logger.
func NewSynchronizer(h host.Host, proxy *rpc.Proxy, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.Default().With("component", "editsync")
	}
	return &Synchronizer{
		host:   h,
		proxy:  proxy,
		docs:   make(map[string]*docState),
		logger: logger,
	}
}

// OpenFile starts tracking a document. Idempotent: opening a tracked URI is
// a no-op. The document is marked tracked before the open call goes out, so
// events keying off the open confirmation always find it tracked.
//
// Returns:
//   - error: The snapshot failure when the content is unobtainable; the
//     document is then neither tracked nor announced.
func (s *Synchronizer) OpenFile(uri string) error {
	s.mu.RLock()
	_, tracked := s.docs[uri]
	s.mu.RUnlock()
	if tracked {
		return nil
	}

	content, err := s.host.Snapshot(uri)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", uri, err)
	}

	s.mu.Lock()
	if _, raced := s.docs[uri]; raced {
		s.mu.Unlock()
		return nil
	}
	s.docs[uri] = &docState{shadow: content}
	s.mu.Unlock()

	s.proxy.Open(uri, content)
	return nil
}

// CloseFile stops tracking a document and discards its state. Idempotent.
func (s *Synchronizer) CloseFile(uri string) {
	s.mu.Lock()
	_, tracked := s.docs[uri]
	delete(s.docs, uri)
	s.mu.Unlock()

	if tracked {
		s.proxy.CloseDoc(uri)
	}
}

// IsTracking reports whether a URI is in the tracked set.
func (s *Synchronizer) IsTracking(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[uri]
	return ok
}

// TrackedURIs returns a sorted snapshot of the tracked set.
func (s *Synchronizer) TrackedURIs() []string {
	s.mu.RLock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	s.mu.RUnlock()
	sort.Strings(uris)
	return uris
}

// OnLocalChange handles a local content mutation. Changes for untracked
// URIs and changes observed while the echo guard is up are dropped. The
// precise change description is used when the host provides one; otherwise
// the current content is diffed against the shadow. An empty diff sends
// nothing.
func (s *Synchronizer) OnLocalChange(uri string, ch *host.Change) {
	d := s.doc(uri)
	if d == nil {
		return
	}
	if d.guard.Load() > 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var delta []protocol.DeltaOp
	if ch != nil {
		delta = []protocol.DeltaOp{{Range: ch.Range, Text: ch.Text}}
		next, err := protocol.ApplyDelta(d.shadow, delta)
		if err != nil {
			// The description doesn't fit what the daemon knows; fall back
			// to diffing the live content.
			delta = s.shadowDiffLocked(uri, d)
		} else {
			d.shadow = next
		}
	} else {
		delta = s.shadowDiffLocked(uri, d)
	}

	if len(delta) == 0 {
		return
	}
	// Sent under the document lock so per-document edit order on the wire
	// matches the order the changes happened.
	s.proxy.Edit(uri, d.revision, delta)
}

// shadowDiffLocked diffs the live content against the shadow and advances
// the shadow. Callers hold d.mu.
func (s *Synchronizer) shadowDiffLocked(uri string, d *docState) []protocol.DeltaOp {
	current, err := s.host.Snapshot(uri)
	if err != nil {
		s.logger.Warn("failed to snapshot for diff", "uri", uri, "err", err)
		return nil
	}
	delta := Diff(d.shadow, current)
	if len(delta) == 0 {
		return nil
	}
	d.shadow = current
	return delta
}

// HandleRemoteEdit applies a daemon edit to the local buffer. Events for
// untracked URIs are ignored. The echo guard is asserted for exactly the
// span of the buffer writes and released on every exit path.
//
// A tracked URI with no open buffer gets one opened for the write; when
// the host cannot provide a buffer at all the event is skipped whole, so
// shadow and content never diverge. A failed buffer write resynchronizes
// the shadow from the live content instead of leaving the two apart.
func (s *Synchronizer) HandleRemoteEdit(ev protocol.EditEvent) {
	d := s.doc(ev.URI)
	if d == nil {
		return
	}

	d.guard.Add(1)
	defer d.guard.Add(-1)

	buf, open := s.host.Buffer(ev.URI)
	if !open {
		var err error
		buf, err = s.host.OpenBuffer(ev.URI)
		if err != nil {
			s.logger.Debug("no buffer for remote edit", "uri", ev.URI, "err", err)
			return
		}
	}

	applied := true
	for _, op := range ev.Delta {
		if err := buf.ReplaceRange(op.Range, op.Text); err != nil {
			s.logger.Warn("failed to apply remote edit", "uri", ev.URI, "rev", ev.Revision, "err", err)
			applied = false
			break
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.revision = ev.Revision
	if !applied {
		if content, err := s.host.Snapshot(ev.URI); err == nil {
			d.shadow = content
		}
		return
	}
	next, err := protocol.ApplyDelta(d.shadow, ev.Delta)
	if err != nil {
		if content, serr := s.host.Snapshot(ev.URI); serr == nil {
			d.shadow = content
			return
		}
		s.logger.Warn("shadow diverged", "uri", ev.URI, "err", err)
		return
	}
	d.shadow = next
}

// Clear untracks every document, detaches the proxy, and releases all
// shadow state. Idempotent.
func (s *Synchronizer) Clear() {
	s.proxy.Detach()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*docState)
}

// doc returns the state for a tracked URI, or nil.
func (s *Synchronizer) doc(uri string) *docState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}
