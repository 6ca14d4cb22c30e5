// Package protocol defines the wire data model shared by the trackers and
// the daemon RPC channel: positions, ranges, delta operations, the
// cursor/edit event payloads, and the JSON-RPC 2.0 envelope they travel in.
//
// Positions are zero-based and count characters in Unicode code points,
// never bytes or UTF-16 units. The daemon and every connected editor agree
// on this unit; converting to a host's native indexing is the host's job.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Method names for calls exchanged with the daemon.
const (
	// MethodOpen announces that a document is now tracked and carries its
	// full content as the synchronization baseline.
	MethodOpen = "open"

	// MethodClose withdraws a document from tracking.
	MethodClose = "close"

	// MethodEdit carries delta operations for a tracked document, in both
	// directions.
	MethodEdit = "edit"

	// MethodCursor carries caret/selection updates, in both directions.
	MethodCursor = "cursor"
)

// Position is a caret location in a document.
type Position struct {
	// Line is the zero-based line index.
	Line int `json:"line"`

	// Character is the zero-based column in code points.
	Character int `json:"character"`
}

// String returns the position as "line:character" for logs.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Before reports whether p is strictly before q in document order.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Range is a span between two positions. A zero-width range (Start == End)
// represents a bare caret. For selections the End is the "head", the side
// that carries the caret.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// String returns the range as "start-end" for logs.
func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// IsCaret reports whether the range is zero-width.
func (r Range) IsCaret() bool {
	return r.Start == r.End
}

// Ordered returns the range with Start and End swapped if they were
// reversed. Cursor ranges keep their direction on the wire; edits are
// applied against the ordered form.
func (r Range) Ordered() Range {
	if r.End.Before(r.Start) {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

// DeltaOp replaces the text inside Range with Text. An insertion uses a
// zero-width range; a deletion uses empty Text. Ops in a delta apply
// sequentially, each against the document produced by the previous one.
type DeltaOp struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

// CursorEvent is an incoming presence notification from the daemon: the
// latest caret/selection set of one remote user.
type CursorEvent struct {
	// UserID is the stable peer identity assigned by the daemon.
	UserID string `json:"userId"`

	// DisplayName is the peer's human-readable name. May be empty when the
	// peer never announced one.
	DisplayName string `json:"name,omitempty"`

	// URI is the document the user is in.
	URI string `json:"uri"`

	// Ranges holds one entry per caret; the last entry is the primary
	// caret.
	Ranges []Range `json:"ranges"`
}

// EditEvent is a content change for one tracked document. The same shape is
// sent for local edits and received for remote ones.
type EditEvent struct {
	// URI is the document being edited.
	URI string `json:"uri"`

	// Revision is the count of daemon-authored ops the sender had applied
	// to this document when it produced Delta.
	Revision int64 `json:"revision"`

	// Delta is the ordered list of operations.
	Delta []DeltaOp `json:"delta"`
}

// OpenParams is the payload of an outgoing open call.
type OpenParams struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// CloseParams is the payload of an outgoing close call.
type CloseParams struct {
	URI string `json:"uri"`
}

// CursorParams is the payload of an outgoing cursor update. The daemon
// stamps our identity on it before fanning it out, so no user fields.
type CursorParams struct {
	URI    string  `json:"uri"`
	Ranges []Range `json:"ranges"`
}

// JSON-RPC 2.0 envelope. Requests we send carry int64 ids; incoming
// notifications have no id at all.

// Request is an outgoing JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request envelope with the given id and marshaled
// params.
func NewRequest(id int64, method string, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}
	return &Request{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a request envelope without an id.
func NewNotification(method string, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}
	return &Request{JSONRPC: "2.0", Method: method, Params: raw}, nil
}
