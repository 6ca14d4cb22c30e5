// Package host defines the boundary between the trackers and the editing
// host. The host feeds local events in through the session's event methods;
// the trackers reach back out through these interfaces to read, mutate, and
// decorate buffers. Implementations: MemHost here (in-memory, used by tests
// and presence-only sessions) and dirhost.DirHost (files on disk).
package host

import (
	"github.com/weftlabs/weft/internal/protocol"
)

// HighlightHandle identifies one installed highlight. Opaque to everything
// but the host that issued it.
type HighlightHandle int64

// Change is a precise description of a local content mutation: the replaced
// range and its replacement text. Hosts that can't describe a change pass
// nil and the synchronizer falls back to diffing against its shadow copy.
type Change struct {
	Range protocol.Range
	Text  string
}

// Buffer is an editable document the host currently has open.
type Buffer interface {
	// URI returns the document URI.
	URI() string

	// Content returns the current full content.
	Content() string

	// ReplaceRange replaces the ordered range with text. The host adjusts
	// carets structurally (no jumps beyond what the edit implies).
	ReplaceRange(r protocol.Range, text string) error

	// SetSelection sets the selection with the caret at the range End.
	SetSelection(r protocol.Range)

	// ScrollTo brings a position into view. Best-effort.
	ScrollTo(p protocol.Position)

	// Activate gives the buffer focus. Best-effort.
	Activate()

	// Highlight paints one labeled range for a remote user and returns its
	// handle. Ranges the host cannot resolve return an error and paint
	// nothing.
	Highlight(userID, label string, r protocol.Range) (HighlightHandle, error)

	// RemoveHighlight removes a previously installed highlight. Unknown
	// handles are ignored.
	RemoveHighlight(h HighlightHandle)
}

// Host resolves URIs to content and buffers.
type Host interface {
	// Snapshot returns the document's current content whether or not a
	// buffer is open for it. The error marks the content as unobtainable
	// (the caller must then skip tracking).
	Snapshot(uri string) (string, error)

	// Buffer returns the open buffer for a URI, if any.
	Buffer(uri string) (Buffer, bool)

	// OpenBuffer opens (or returns the already open) buffer for a URI.
	OpenBuffer(uri string) (Buffer, error)
}
