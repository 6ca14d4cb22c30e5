package host

import (
	"fmt"
	"sync"

	"github.com/weftlabs/weft/internal/protocol"
)

// MemHost is an in-memory Host. Tests use it as the fake editor; the
// presence-only commands (peers, watch) use it as a real host that simply
// never has files of its own.
//
// Like an editor, it reports every buffer mutation back through the
// notification funcs, including mutations made by the synchronizer itself.
// That re-entry is what exercises echo suppression.
type MemHost struct {
	mu         sync.Mutex
	files      map[string]string
	buffers    map[string]*MemBuffer
	nextHandle HighlightHandle
	activeURI  string

	// Notification taps, wired to the session. Any of them may be nil.
	OnBufferOpened   func(uri string)
	OnBufferClosed   func(uri string)
	OnContentChanged func(uri string, ch *Change)
	OnCursorMoved    func(uri string, ranges []protocol.Range)
}

// NewMemHost returns an empty in-memory host.
func NewMemHost() *MemHost {
	return &MemHost{
		files:      make(map[string]string),
		buffers:    make(map[string]*MemBuffer),
		nextHandle: 1,
	}
}

// SetFile seeds backing content for a URI without opening a buffer.
func (h *MemHost) SetFile(uri, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[uri] = content
}

// Snapshot returns the open buffer's content, or the backing file content.
func (h *MemHost) Snapshot(uri string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.buffers[uri]; ok {
		return b.content, nil
	}
	if content, ok := h.files[uri]; ok {
		return content, nil
	}
	return "", fmt.Errorf("no content for %s", uri)
}

// Buffer returns the open buffer for a URI, if any.
func (h *MemHost) Buffer(uri string) (Buffer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buffers[uri]
	if !ok {
		return nil, false
	}
	return b, true
}

// OpenBuffer opens a buffer over the backing content, or returns the one
// already open. Opening a URI with no backing content fails.
func (h *MemHost) OpenBuffer(uri string) (Buffer, error) {
	h.mu.Lock()
	if b, ok := h.buffers[uri]; ok {
		h.mu.Unlock()
		return b, nil
	}
	content, ok := h.files[uri]
	if !ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("no content for %s", uri)
	}
	b := &MemBuffer{host: h, uri: uri, content: content, highlights: make(map[HighlightHandle]HighlightInfo)}
	h.buffers[uri] = b
	opened := h.OnBufferOpened
	h.mu.Unlock()

	if opened != nil {
		opened(uri)
	}
	return b, nil
}

// CloseBuffer closes an open buffer, keeping its content as backing file
// content. Closing an unopened URI is a no-op.
func (h *MemHost) CloseBuffer(uri string) {
	h.mu.Lock()
	b, ok := h.buffers[uri]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.files[uri] = b.content
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

// SetBufferContent rewrites an open buffer wholesale and reports the change
// without a description, the way low-fidelity host notifications arrive.
func (h *MemHost) SetBufferContent(uri, content string) error {
	h.mu.Lock()
	b, ok := h.buffers[uri]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("no open buffer for %s", uri)
	}
	b.content = content
	changed := h.OnContentChanged
	h.mu.Unlock()

	if changed != nil {
		changed(uri, nil)
	}
	return nil
}

// ActiveURI returns the most recently activated buffer URI.
func (h *MemHost) ActiveURI() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeURI
}

// HighlightInfo describes one installed highlight, for assertions.
type HighlightInfo struct {
	UserID string
	Label  string
	Range  protocol.Range
}

// Highlights returns the highlights currently installed in a buffer.
func (h *MemHost) Highlights(uri string) []HighlightInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buffers[uri]
	if !ok {
		return nil
	}
	out := make([]HighlightInfo, 0, len(b.highlights))
	for _, info := range b.highlights {
		out = append(out, info)
	}
	return out
}

// MemBuffer is an open in-memory buffer.
type MemBuffer struct {
	host       *MemHost
	uri        string
	content    string
	selection  protocol.Range
	scrolledTo protocol.Position
	highlights map[HighlightHandle]HighlightInfo
}

// URI returns the buffer's URI.
func (b *MemBuffer) URI() string { return b.uri }

// Content returns the buffer's current content.
func (b *MemBuffer) Content() string {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	return b.content
}

// ReplaceRange applies one ranged replacement and reports it with a precise
// change description.
func (b *MemBuffer) ReplaceRange(r protocol.Range, text string) error {
	b.host.mu.Lock()
	next, err := protocol.ApplyDelta(b.content, []protocol.DeltaOp{{Range: r, Text: text}})
	if err != nil {
		b.host.mu.Unlock()
		return err
	}
	b.content = next
	changed := b.host.OnContentChanged
	b.host.mu.Unlock()

	if changed != nil {
		changed(b.uri, &Change{Range: r, Text: text})
	}
	return nil
}

// SetSelection moves the selection and reports the caret movement, the way
// an editor fires caret events for programmatic moves too.
func (b *MemBuffer) SetSelection(r protocol.Range) {
	b.host.mu.Lock()
	b.selection = r
	moved := b.host.OnCursorMoved
	b.host.mu.Unlock()

	if moved != nil {
		moved(b.uri, []protocol.Range{r})
	}
}

// Selection returns the current selection.
func (b *MemBuffer) Selection() protocol.Range {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	return b.selection
}

// ScrollTo records the scroll target.
func (b *MemBuffer) ScrollTo(p protocol.Position) {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	b.scrolledTo = p
}

// ScrolledTo returns the last scroll target.
func (b *MemBuffer) ScrolledTo() protocol.Position {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	return b.scrolledTo
}

// Activate marks the buffer as the active one.
func (b *MemBuffer) Activate() {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	b.host.activeURI = b.uri
}

// Highlight installs one labeled range. Ranges that don't resolve against
// the current content paint nothing.
func (b *MemBuffer) Highlight(userID, label string, r protocol.Range) (HighlightHandle, error) {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	ordered := r.Ordered()
	if _, err := protocol.Offset(b.content, ordered.Start); err != nil {
		return 0, err
	}
	if _, err := protocol.Offset(b.content, ordered.End); err != nil {
		return 0, err
	}
	h := b.host.nextHandle
	b.host.nextHandle++
	b.highlights[h] = HighlightInfo{UserID: userID, Label: label, Range: r}
	return h, nil
}

// RemoveHighlight removes one highlight. Unknown handles are ignored.
func (b *MemBuffer) RemoveHighlight(h HighlightHandle) {
	b.host.mu.Lock()
	defer b.host.mu.Unlock()
	delete(b.highlights, h)
}
