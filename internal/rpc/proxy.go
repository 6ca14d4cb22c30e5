package rpc

import (
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/weftlabs/weft/internal/protocol"
)

// Proxy is the session-scoped handle both trackers share. It is bound to a
// client once at session start and detached exactly once at teardown;
// every call before bind or after detach is a silent no-op. The handle
// itself is an atomic pointer: single writer, many lock-free readers.
type Proxy struct {
	client atomic.Pointer[Client]
	logger *log.Logger
}

// NewProxy creates an unbound proxy.
func NewProxy(logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.Default().With("component", "rpc")
	}
	return &Proxy{logger: logger}
}

// Bind attaches the proxy to a connected client.
func (p *Proxy) Bind(c *Client) {
	p.client.Store(c)
}

// Detach unbinds the proxy. Idempotent; all subsequent calls no-op.
func (p *Proxy) Detach() {
	p.client.Store(nil)
}

// Attached reports whether the proxy still has a client.
func (p *Proxy) Attached() bool {
	return p.client.Load() != nil
}

// Open announces a newly tracked document with its baseline content.
func (p *Proxy) Open(uri, content string) {
	p.send(protocol.MethodOpen, protocol.OpenParams{URI: uri, Content: content})
}

// CloseDoc withdraws a document from tracking.
func (p *Proxy) CloseDoc(uri string) {
	p.send(protocol.MethodClose, protocol.CloseParams{URI: uri})
}

// Edit forwards local delta operations for a tracked document.
func (p *Proxy) Edit(uri string, revision int64, delta []protocol.DeltaOp) {
	p.send(protocol.MethodEdit, protocol.EditEvent{URI: uri, Revision: revision, Delta: delta})
}

// Cursor forwards the local caret/selection set for a document.
func (p *Proxy) Cursor(uri string, ranges []protocol.Range) {
	p.send(protocol.MethodCursor, protocol.CursorParams{URI: uri, Ranges: ranges})
}

// send issues one call through the bound client. Failures are logged and
// dropped; the daemon owns recovery, not the trackers.
func (p *Proxy) send(method string, params any) {
	c := p.client.Load()
	if c == nil {
		return
	}
	if err := c.Send(method, params); err != nil {
		p.logger.Warn("outgoing call failed", "method", method, "err", err)
	}
}
