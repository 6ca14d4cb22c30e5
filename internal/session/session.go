// Package session wires one collaborative-editing session together: the
// presence tracker and the edit synchronizer over a shared RPC proxy, plus
// the adapter that routes incoming daemon notifications to them.
//
// A Session is constructed at session start, lives exactly as long as the
// session, and is torn down through the single idempotent Close. There is
// no global session state.
package session

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/internal/editsync"
	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/presence"
	"github.com/weftlabs/weft/internal/protocol"
	"github.com/weftlabs/weft/internal/rpc"
)

// tracer records session-level spans. A no-op unless the process installed
// a tracer provider.
var tracer = otel.Tracer("github.com/weftlabs/weft/internal/session")

// Session owns the two trackers and the RPC client for one editing
// session.
type Session struct {
	host     host.Host
	client   *rpc.Client
	proxy    *rpc.Proxy
	presence *presence.Tracker
	editsync *editsync.Synchronizer
	logger   *log.Logger

	userID      string
	displayName string
	dialTimeout time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger shared by the session's components.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithIdentity sets the identity announced to the daemon on connect.
func WithIdentity(userID, displayName string) Option {
	return func(s *Session) {
		s.userID = userID
		s.displayName = displayName
	}
}

// WithDialTimeout bounds the connect retry window.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialTimeout = d }
}

// New assembles a session over a host. The session is inert until Start
// connects it to the daemon.
func New(h host.Host, opts ...Option) *Session {
	s := &Session{host: h, dialTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default().With("component", "session")
	}

	s.proxy = rpc.NewProxy(s.logger)
	s.presence = presence.NewTracker(h, s.proxy, s.logger)
	s.editsync = editsync.NewSynchronizer(h, s.proxy, s.logger)
	s.client = rpc.New(s,
		rpc.WithLogger(s.logger),
		rpc.WithIdentity(s.userID, s.displayName),
		rpc.WithDialTimeout(s.dialTimeout),
	)
	return s
}

// Start connects to the daemon endpoint and binds the proxy. A session
// starts at most once; a torn-down session is not restarted.
func (s *Session) Start(ctx context.Context, endpoint string) error {
	if err := s.client.Connect(ctx, endpoint); err != nil {
		return err
	}
	s.proxy.Bind(s.client)
	s.logger.Debug("session connected", "endpoint", endpoint)
	return nil
}

// Close tears the session down: proxy detached first so every in-flight
// outgoing call becomes a no-op, then both trackers clear, then the
// connection closes. Idempotent; safe to call from shutdown paths that
// overlap.
func (s *Session) Close() {
	s.proxy.Detach()
	s.presence.Clear()
	s.editsync.Clear()
	_ = s.client.Close()
}

// Errors exposes terminal connection errors for callers that want to end
// the session when the daemon goes away.
func (s *Session) Errors() <-chan error {
	return s.client.Errors()
}

// Connected reports whether the daemon connection is up.
func (s *Session) Connected() bool {
	return s.client.IsConnected()
}

// --- Host Event Bridge inputs ---

// BufferOpened handles a buffer opening in the host. The document joins
// the tracked set (unreadable content skips tracking) and any known peer
// presence in it is painted.
func (s *Session) BufferOpened(uri string) {
	if err := s.editsync.OpenFile(uri); err != nil {
		s.logger.Info("skipping sync for unreadable document", "uri", uri, "err", err)
	}
	s.presence.OnBufferOpened(uri)
}

// BufferClosed handles a buffer closing in the host.
func (s *Session) BufferClosed(uri string) {
	s.editsync.CloseFile(uri)
	s.presence.OnBufferClosed(uri)
}

// CursorMoved handles a local caret/selection change.
func (s *Session) CursorMoved(uri string, ranges []protocol.Range) {
	s.presence.OnLocalCursor(uri, ranges)
}

// ContentChanged handles a local content mutation. Events for untracked
// URIs are dropped here, before they reach the synchronizer.
func (s *Session) ContentChanged(uri string, ch *host.Change) {
	if !s.editsync.IsTracking(uri) {
		return
	}
	s.editsync.OnLocalChange(uri, ch)
}

// FileChanged handles a raw filesystem change notification, the fallback
// re-synchronization trigger for hosts that cannot describe edits.
func (s *Session) FileChanged(uri string) {
	if !s.editsync.IsTracking(uri) {
		return
	}
	s.editsync.OnLocalChange(uri, nil)
}

// --- Explicit operations ---

// OpenFile starts synchronizing a document.
func (s *Session) OpenFile(uri string) error { return s.editsync.OpenFile(uri) }

// CloseFile stops synchronizing a document.
func (s *Session) CloseFile(uri string) { s.editsync.CloseFile(uri) }

// IsTracking reports whether a document is synchronized.
func (s *Session) IsTracking(uri string) bool { return s.editsync.IsTracking(uri) }

// TrackedURIs returns the synchronized document set.
func (s *Session) TrackedURIs() []string { return s.editsync.TrackedURIs() }

// ListPeers returns the current presence snapshot.
func (s *Session) ListPeers() []presence.Peer { return s.presence.ListPeers() }

// Follow starts following a peer.
func (s *Session) Follow(userID string) error { return s.presence.Follow(userID) }

// Unfollow stops following.
func (s *Session) Unfollow() { s.presence.Unfollow() }

// Following returns the followed peer id, or empty.
func (s *Session) Following() string { return s.presence.Following() }

// --- rpc.Handler: incoming daemon notifications ---

// HandleCursorEvent forwards a remote cursor update to the presence
// tracker.
func (s *Session) HandleCursorEvent(ev protocol.CursorEvent) {
	_, span := tracer.Start(context.Background(), "session.cursor_event",
		oteltrace.WithAttributes(
			attribute.String("weft.uri", ev.URI),
			attribute.String("weft.user", ev.UserID),
		))
	defer span.End()

	s.presence.RecordAndRender(ev)
}

// HandleEditEvent forwards a remote edit to the synchronizer.
func (s *Session) HandleEditEvent(ev protocol.EditEvent) {
	_, span := tracer.Start(context.Background(), "session.edit_event",
		oteltrace.WithAttributes(
			attribute.String("weft.uri", ev.URI),
			attribute.Int64("weft.revision", ev.Revision),
			attribute.Int("weft.ops", len(ev.Delta)),
		))
	defer span.End()

	s.editsync.HandleRemoteEdit(ev)
}
