// Package dirhost implements host.Host over a directory tree. It backs
// `weft attach`: eligible files under the root are enumerated for
// tracking, remote edits are written back to disk atomically, and a
// recursive fsnotify watcher surfaces external modifications as the
// fallback re-synchronization trigger.
//
// The watcher is live as soon as New returns; Run pumps its events until
// the context ends or the host is closed.
package dirhost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/protocol"
)

// DirHost is a headless host over one directory.
type DirHost struct {
	root    string
	matcher *Matcher
	watcher *fsnotify.Watcher
	logger  *log.Logger

	mu         sync.Mutex
	buffers    map[string]*fileBuffer
	nextHandle host.HighlightHandle
	activeURI  string

	// Notification taps, wired to the session. Any of them may be nil.
	OnBufferOpened   func(uri string)
	OnBufferClosed   func(uri string)
	OnContentChanged func(uri string, ch *host.Change)
	OnCursorMoved    func(uri string, ranges []protocol.Range)

	// Watcher taps. FileChanged fires for external writes, FileCreated
	// for eligible files appearing under the root, FileRemoved when a
	// path disappears.
	OnFileChanged func(uri string)
	OnFileCreated func(uri string)
	OnFileRemoved func(uri string)
}

// Option configures a DirHost.
type Option func(*DirHost)

// WithLogger sets the host's logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *DirHost) { h.logger = logger }
}

// WithIgnoreGlobs sets the ignore patterns from the attach config.
func WithIgnoreGlobs(globs []string) Option {
	return func(h *DirHost) { h.matcher.globs = globs }
}

// WithMaxFileSize caps the size of tracked files, in bytes.
func WithMaxFileSize(n int64) Option {
	return func(h *DirHost) {
		if n > 0 {
			h.matcher.maxSize = n
		}
	}
}

// New builds a host over root and installs watches on it and every
// non-ignored subdirectory. The returned host must be closed.
func New(root string, opts ...Option) (*DirHost, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	h := &DirHost{
		root:       abs,
		matcher:    NewMatcher(nil, DefaultMaxFileSize),
		buffers:    make(map[string]*fileBuffer),
		nextHandle: 1,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.Default().With("component", "dirhost")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	if err := h.addWatchesUnder(w, abs); err != nil {
		_ = w.Close()
		return nil, err
	}
	h.watcher = w
	return h, nil
}

// Root returns the absolute attach root.
func (h *DirHost) Root() string { return h.root }

// Close stops the watcher. Run returns once the event stream drains.
func (h *DirHost) Close() error {
	return h.watcher.Close()
}

// URIFor returns the file:// URI for an absolute path.
func URIFor(path string) string {
	return "file://" + filepath.ToSlash(path)
}

// Scan walks the root and returns the URIs of every eligible file,
// sorted. Dot-directories, ignored paths, oversized files, and binary
// content are excluded.
func (h *DirHost) Scan() ([]string, error) {
	uris, err := h.scanUnder(h.root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", h.root, err)
	}
	return uris, nil
}

func (h *DirHost) scanUnder(dir string) ([]string, error) {
	var uris []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(h.root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && h.matcher.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if uri, ok := h.eligible(p, rel, d); ok {
			uris = append(uris, uri)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(uris)
	return uris, nil
}

// eligible applies the file-level checks: regular, not ignored, under the
// size cap, and text.
func (h *DirHost) eligible(p, rel string, d os.DirEntry) (string, bool) {
	if d != nil && !d.Type().IsRegular() {
		return "", false
	}
	if h.matcher.Excluded(rel) {
		return "", false
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	if h.matcher.TooLarge(info.Size()) {
		return "", false
	}
	data, err := os.ReadFile(p)
	if err != nil || IsBinary(data) {
		return "", false
	}
	return URIFor(p), true
}

// --- host.Host ---

// Snapshot returns the open buffer's content, or the file content from
// disk. Ineligible files (ignored, oversized, binary) error.
func (h *DirHost) Snapshot(uri string) (string, error) {
	h.mu.Lock()
	if b, ok := h.buffers[uri]; ok {
		content := b.content
		h.mu.Unlock()
		return content, nil
	}
	h.mu.Unlock()
	return h.readFile(uri)
}

// Buffer returns the open buffer for a URI, if any.
func (h *DirHost) Buffer(uri string) (host.Buffer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buffers[uri]
	if !ok {
		return nil, false
	}
	return b, true
}

// OpenBuffer opens a buffer over the file content, or returns the one
// already open.
func (h *DirHost) OpenBuffer(uri string) (host.Buffer, error) {
	h.mu.Lock()
	if b, ok := h.buffers[uri]; ok {
		h.mu.Unlock()
		return b, nil
	}
	h.mu.Unlock()

	content, err := h.readFile(uri)
	if err != nil {
		return nil, err
	}
	path, err := h.pathFor(uri)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if b, raced := h.buffers[uri]; raced {
		h.mu.Unlock()
		return b, nil
	}
	b := &fileBuffer{host: h, uri: uri, path: path, content: content}
	h.buffers[uri] = b
	opened := h.OnBufferOpened
	h.mu.Unlock()

	if opened != nil {
		opened(uri)
	}
	return b, nil
}

// CloseBuffer closes an open buffer. The file keeps its content. Closing
// an unopened URI is a no-op.
func (h *DirHost) CloseBuffer(uri string) {
	h.mu.Lock()
	if _, ok := h.buffers[uri]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.buffers, uri)
	if h.activeURI == uri {
		h.activeURI = ""
	}
	closed := h.OnBufferClosed
	h.mu.Unlock()

	if closed != nil {
		closed(uri)
	}
}

// ActiveURI returns the most recently activated buffer URI.
func (h *DirHost) ActiveURI() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeURI
}

// readFile loads a document from disk, applying the eligibility checks.
func (h *DirHost) readFile(uri string) (string, error) {
	path, err := h.pathFor(uri)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(h.root, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", uri, err)
	}
	if h.matcher.Excluded(rel) {
		return "", fmt.Errorf("%s is ignored", uri)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", uri, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", uri)
	}
	if h.matcher.TooLarge(info.Size()) {
		return "", fmt.Errorf("%s exceeds the file size cap", uri)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", uri, err)
	}
	if IsBinary(data) {
		return "", fmt.Errorf("%s is not text", uri)
	}
	return string(data), nil
}

// pathFor maps a file:// URI to an absolute path and rejects anything
// outside the root.
func (h *DirHost) pathFor(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return "", fmt.Errorf("unsupported uri %q", uri)
	}
	p := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(uri, "file://")))
	if p != h.root && !strings.HasPrefix(p, h.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", uri, h.root)
	}
	return p, nil
}

// --- watcher ---

// Run pumps watcher events until the context ends or the host closes.
func (h *DirHost) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return nil
			}
			h.handleEvent(ev)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("watcher error", "err", err)
		}
	}
}

func (h *DirHost) addWatchesUnder(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(h.root, p)
		if err != nil {
			return err
		}
		if rel != "." && h.matcher.SkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (h *DirHost) handleEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(h.root, ev.Name)
	if err != nil || rel == "." {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		h.handleCreate(ev.Name, rel)
	case ev.Op.Has(fsnotify.Write):
		if uri, ok := h.eligible(ev.Name, rel, nil); ok {
			h.reloadBuffer(uri)
			h.mu.Lock()
			changed := h.OnFileChanged
			h.mu.Unlock()
			if changed != nil {
				changed(uri)
			}
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		uri := URIFor(ev.Name)
		h.mu.Lock()
		delete(h.buffers, uri)
		if h.activeURI == uri {
			h.activeURI = ""
		}
		removed := h.OnFileRemoved
		h.mu.Unlock()
		if removed != nil {
			removed(uri)
		}
	}
}

func (h *DirHost) handleCreate(name, rel string) {
	info, err := os.Stat(name)
	if err != nil {
		return
	}
	h.mu.Lock()
	created := h.OnFileCreated
	h.mu.Unlock()

	if info.IsDir() {
		if h.matcher.SkipDir(rel) {
			return
		}
		if err := h.addWatchesUnder(h.watcher, name); err != nil {
			h.logger.Warn("failed to watch new directory", "dir", name, "err", err)
			return
		}
		// Files can land in the directory before its watch is in place.
		uris, err := h.scanUnder(name)
		if err != nil {
			h.logger.Warn("failed to scan new directory", "dir", name, "err", err)
			return
		}
		if created != nil {
			for _, uri := range uris {
				created(uri)
			}
		}
		return
	}
	if uri, ok := h.eligible(name, rel, nil); ok {
		h.reloadBuffer(uri)
		if created != nil {
			created(uri)
		}
	}
}

// reloadBuffer refreshes an open buffer from disk after an external
// write, so the content handed to the synchronizer is current.
func (h *DirHost) reloadBuffer(uri string) {
	h.mu.Lock()
	b, ok := h.buffers[uri]
	h.mu.Unlock()
	if !ok {
		return
	}
	content, err := h.readFile(uri)
	if err != nil {
		h.logger.Debug("failed to reload buffer", "uri", uri, "err", err)
		return
	}
	h.mu.Lock()
	if cur, ok := h.buffers[uri]; ok && cur == b {
		b.content = content
	}
	h.mu.Unlock()
}

// --- host.Buffer ---

// fileBuffer is an open buffer whose truth is the file on disk. Cache and
// disk commit together under the host lock.
type fileBuffer struct {
	host       *DirHost
	uri        string
	path       string
	content    string
	selection  protocol.Range
	scrolledTo protocol.Position
}

// URI returns the buffer's URI.
func (b *fileBuffer) URI() string { return b.uri }

// Content returns the buffer's current content.
func (b *fileBuffer) Content() string {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	return b.content
}

// ReplaceRange applies one ranged replacement and writes the result to
// disk atomically. The change notification fires after the commit.
func (b *fileBuffer) ReplaceRange(r protocol.Range, text string) error {
	b.host.mu.Lock()
	next, err := protocol.ApplyDelta(b.content, []protocol.DeltaOp{{Range: r, Text: text}})
	if err != nil {
		b.host.mu.Unlock()
		return err
	}
	if err := writeFileAtomic(b.path, []byte(next), 0644); err != nil {
		b.host.mu.Unlock()
		return fmt.Errorf("failed to write %s: %w", b.uri, err)
	}
	b.content = next
	changed := b.host.OnContentChanged
	b.host.mu.Unlock()

	if changed != nil {
		changed(b.uri, &host.Change{Range: r, Text: text})
	}
	return nil
}

// SetSelection records the selection and reports the caret movement.
func (b *fileBuffer) SetSelection(r protocol.Range) {
	b.host.mu.Lock()
	b.selection = r
	moved := b.host.OnCursorMoved
	b.host.mu.Unlock()

	if moved != nil {
		moved(b.uri, []protocol.Range{r})
	}
}

// Selection returns the current selection.
func (b *fileBuffer) Selection() protocol.Range {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	return b.selection
}

// ScrollTo records the scroll target. Headless, so that is all it does.
func (b *fileBuffer) ScrollTo(p protocol.Position) {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	b.scrolledTo = p
}

// ScrolledTo returns the last scroll target.
func (b *fileBuffer) ScrolledTo() protocol.Position {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	return b.scrolledTo
}

// Activate marks the buffer as the active one.
func (b *fileBuffer) Activate() {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	b.host.activeURI = b.uri
}

// Highlight validates the range and hands back a handle. A headless host
// has nowhere to paint, so nothing is retained.
func (b *fileBuffer) Highlight(userID, label string, r protocol.Range) (host.HighlightHandle, error) {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	ordered := r.Ordered()
	if _, err := protocol.Offset(b.content, ordered.Start); err != nil {
		return 0, err
	}
	if _, err := protocol.Offset(b.content, ordered.End); err != nil {
		return 0, err
	}
	handle := b.host.nextHandle
	b.host.nextHandle++
	return handle, nil
}

// RemoveHighlight is a no-op for a headless host.
func (b *fileBuffer) RemoveHighlight(host.HighlightHandle) {}

// writeFileAtomic writes data to a sibling temp file and renames it over
// path, so watchers and readers never observe a partial write.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
