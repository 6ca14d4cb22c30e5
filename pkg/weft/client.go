// Package weft provides a public API for the weft client.
//
// This package exposes the presence and edit-synchronization layer as a
// Go library, making it easy to integrate with editor tooling and agent
// hosts like MCP servers.
//
// Example usage:
//
//	ws, err := weft.Attach(ctx, "/path/to/project")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ws.Close()
//
//	for _, p := range ws.Peers() {
//	    fmt.Printf("%s is in %s\n", p.Label, p.Document)
//	}
package weft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/dirhost"
	"github.com/weftlabs/weft/internal/session"
)

// Workspace is an attached directory kept in sync with the weft daemon.
//
// Eligible files under the directory are tracked: local writes are
// broadcast as edits, remote edits are written back to disk, and peer
// presence is available through Peers.
type Workspace struct {
	dir      string
	endpoint string
	cfg      *config.ProjectConfig
	logger   *log.Logger

	userID      string
	displayName string
	ignore      []string
	dialTimeout time.Duration

	host    *dirhost.DirHost
	session *session.Session
	cancel  context.CancelFunc
	files   []string

	closeOnce sync.Once
}

// Option configures a Workspace.
type Option func(*Workspace) error

// WithEndpoint overrides the daemon endpoint (a ws:// URL or a unix
// socket path).
func WithEndpoint(endpoint string) Option {
	return func(w *Workspace) error {
		w.endpoint = endpoint
		return nil
	}
}

// WithIdentity overrides the identity announced to the daemon.
func WithIdentity(userID, displayName string) Option {
	return func(w *Workspace) error {
		w.userID = userID
		w.displayName = displayName
		return nil
	}
}

// WithLogger sets the logger used by the workspace's components.
func WithLogger(logger *log.Logger) Option {
	return func(w *Workspace) error {
		w.logger = logger
		return nil
	}
}

// WithConfig sets the project configuration directly instead of loading
// it from .weft/config.yaml.
func WithConfig(cfg *config.ProjectConfig) Option {
	return func(w *Workspace) error {
		w.cfg = cfg
		return nil
	}
}

// WithIgnoreGlobs adds ignore patterns on top of the configured ones.
func WithIgnoreGlobs(globs []string) Option {
	return func(w *Workspace) error {
		w.ignore = append(w.ignore, globs...)
		return nil
	}
}

// WithDialTimeout bounds the connect retry window.
func WithDialTimeout(d time.Duration) Option {
	return func(w *Workspace) error {
		w.dialTimeout = d
		return nil
	}
}

// URIFor returns the file:// URI for an absolute path.
func URIFor(path string) string {
	return dirhost.URIFor(path)
}

// Attach connects a directory to the weft daemon.
//
// The project configuration is loaded from dir unless WithConfig or
// WithIdentity supplies the identity. Every eligible file under dir is
// opened for synchronization, and a watcher keeps the tracked set
// current until Close.
//
// Parameters:
//   - ctx: Context bounding the connection attempt
//   - dir: The directory to attach
//   - opts: Configuration options
//
// Returns:
//   - *Workspace: The attached workspace
//   - error: Any error that occurred during attach
func Attach(ctx context.Context, dir string, opts ...Option) (*Workspace, error) {
	w := &Workspace{dir: dir}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if w.logger == nil {
		w.logger = log.Default().With("component", "weft")
	}

	if w.cfg == nil {
		if cfg, err := config.LoadProjectConfig(config.ConfigPath(dir)); err == nil {
			w.cfg = cfg
		}
	}

	if w.userID == "" && w.cfg != nil {
		w.userID = w.cfg.User.ID
		w.displayName = w.cfg.User.Name
	}
	if w.userID == "" {
		return nil, fmt.Errorf("no identity configured for %s (run 'weft init' first)", dir)
	}

	if w.endpoint == "" {
		var daemon *config.DaemonConfig
		if w.cfg != nil {
			daemon = &w.cfg.Daemon
		}
		w.endpoint = config.DaemonEndpoint(daemon)
	}

	hostOpts := []dirhost.Option{dirhost.WithLogger(w.logger)}
	ignore := w.ignore
	if w.cfg != nil {
		ignore = append(append([]string{}, w.cfg.Attach.Ignore...), w.ignore...)
		if w.cfg.Attach.MaxFileSize > 0 {
			hostOpts = append(hostOpts, dirhost.WithMaxFileSize(w.cfg.Attach.MaxFileSize))
		}
	}
	if len(ignore) > 0 {
		hostOpts = append(hostOpts, dirhost.WithIgnoreGlobs(ignore))
	}

	dh, err := dirhost.New(dir, hostOpts...)
	if err != nil {
		return nil, err
	}

	sessOpts := []session.Option{
		session.WithLogger(w.logger),
		session.WithIdentity(w.userID, w.displayName),
	}
	if w.dialTimeout > 0 {
		sessOpts = append(sessOpts, session.WithDialTimeout(w.dialTimeout))
	}
	sess := session.New(dh, sessOpts...)

	// Route host events into the session. The session's guards recognize
	// the notifications its own remote applies and follow jumps cause.
	dh.OnBufferOpened = sess.BufferOpened
	dh.OnBufferClosed = sess.BufferClosed
	dh.OnContentChanged = sess.ContentChanged
	dh.OnCursorMoved = sess.CursorMoved
	dh.OnFileChanged = sess.FileChanged
	dh.OnFileRemoved = sess.BufferClosed
	dh.OnFileCreated = func(uri string) {
		// Editors that save by renaming a temp file over the target
		// surface the write as a create.
		if sess.IsTracking(uri) {
			sess.FileChanged(uri)
			return
		}
		if err := sess.OpenFile(uri); err != nil {
			w.logger.Debug("skipping new file", "uri", uri, "err", err)
		}
	}

	// Connect errors already name the endpoint.
	if err := sess.Start(ctx, w.endpoint); err != nil {
		_ = dh.Close()
		return nil, err
	}

	files, err := dh.Scan()
	if err != nil {
		sess.Close()
		_ = dh.Close()
		return nil, err
	}
	for _, uri := range files {
		if err := sess.OpenFile(uri); err != nil {
			w.logger.Warn("skipping file", "uri", uri, "err", err)
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	go func() { _ = dh.Run(watchCtx) }()

	w.host = dh
	w.session = sess
	w.cancel = cancel
	w.files = files
	return w, nil
}

// Peer describes one remote participant.
type Peer struct {
	// UserID is the peer's stable identity.
	UserID string
	// Label is the peer's display label (sanitized name or short id).
	Label string
	// Document is the URI of the document the peer is in.
	Document string
	// Line is the peer's primary caret line, 1-based. Zero when the peer
	// has no cursor.
	Line int
	// Column is the peer's primary caret column, 1-based.
	Column int
	// LastSeen is when the peer's latest activity arrived.
	LastSeen time.Time
}

// Dir returns the attached directory.
func (w *Workspace) Dir() string { return w.dir }

// Endpoint returns the daemon endpoint the workspace dialed.
func (w *Workspace) Endpoint() string { return w.endpoint }

// Files returns the URIs opened when the workspace attached.
func (w *Workspace) Files() []string {
	return append([]string(nil), w.files...)
}

// Tracked returns the URIs currently synchronized.
func (w *Workspace) Tracked() []string { return w.session.TrackedURIs() }

// IsTracking reports whether a URI is synchronized.
func (w *Workspace) IsTracking(uri string) bool { return w.session.IsTracking(uri) }

// OpenFile starts synchronizing a document.
//
// Parameters:
//   - uri: The file:// URI of a document under the attached directory
//
// Returns:
//   - error: If the document cannot be read
func (w *Workspace) OpenFile(uri string) error { return w.session.OpenFile(uri) }

// CloseFile stops synchronizing a document.
func (w *Workspace) CloseFile(uri string) { w.session.CloseFile(uri) }

// Peers returns the current presence snapshot, sorted by display label.
func (w *Workspace) Peers() []Peer {
	peers := w.session.ListPeers()
	out := make([]Peer, 0, len(peers))
	for _, p := range peers {
		pub := Peer{
			UserID:   p.UserID,
			Label:    p.Label(),
			Document: p.DocumentURI,
			LastSeen: p.LastSeen,
		}
		if len(p.Ranges) > 0 {
			primary := p.Ranges[len(p.Ranges)-1].Start
			pub.Line = primary.Line + 1
			pub.Column = primary.Character + 1
		}
		out = append(out, pub)
	}
	return out
}

// Follow starts following a peer: the workspace tracks their cursor as
// it moves.
//
// Parameters:
//   - userID: The peer's user id
//
// Returns:
//   - error: If the peer has never been seen
func (w *Workspace) Follow(userID string) error { return w.session.Follow(userID) }

// Unfollow stops following.
func (w *Workspace) Unfollow() { w.session.Unfollow() }

// Following returns the followed peer's user id, or empty.
func (w *Workspace) Following() string { return w.session.Following() }

// Connected reports whether the daemon connection is up.
func (w *Workspace) Connected() bool { return w.session.Connected() }

// Errors exposes terminal connection errors. The channel receives at
// most one error; a closed daemon connection ends the workspace.
func (w *Workspace) Errors() <-chan error { return w.session.Errors() }

// Close detaches from the daemon and stops the file watcher. Idempotent.
func (w *Workspace) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		w.session.Close()
		err = w.host.Close()
	})
	return err
}
