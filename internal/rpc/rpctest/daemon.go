// Package rpctest provides an in-process fake daemon for exercising the
// rpc client and the trackers above it without a running weftd.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weftlabs/weft/internal/protocol"
)

// Call is one request or notification the fake daemon received.
type Call struct {
	Method string
	ID     int64
	Params json.RawMessage
}

// Unmarshal decodes the call params into v, failing the test on error.
func (c Call) Unmarshal(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(c.Params, v); err != nil {
		t.Fatalf("failed to decode %s params: %v", c.Method, err)
	}
}

// Daemon accepts websocket connections, answers every call with an empty
// result (unless told to fail), records what it saw, and can push
// notifications back to the client.
type Daemon struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  []*websocket.Conn
	idents []url.Values
	fail   map[string]*protocol.RPCError

	calls chan Call
}

// New starts a fake daemon and registers its shutdown with t.Cleanup.
func New(t *testing.T) *Daemon {
	t.Helper()
	d := &Daemon{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		fail:     make(map[string]*protocol.RPCError),
		calls:    make(chan Call, 256),
	}
	d.srv = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.Close)
	return d
}

// URL returns the ws:// endpoint clients should dial.
func (d *Daemon) URL() string {
	return "ws" + strings.TrimPrefix(d.srv.URL, "http")
}

// Close drops all connections and stops the server. Safe to call twice;
// New registers it as a cleanup.
func (d *Daemon) Close() {
	d.mu.Lock()
	for _, c := range d.conns {
		c.Close()
	}
	d.conns = nil
	d.mu.Unlock()
	d.srv.Close()
}

// FailWith makes every subsequent call of method receive an error response
// instead of an empty result.
func (d *Daemon) FailWith(method string, code int, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[method] = &protocol.RPCError{Code: code, Message: message}
}

// Identities returns the query parameters of each accepted connection, in
// accept order. The client announces its identity there.
func (d *Daemon) Identities() []url.Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]url.Values(nil), d.idents...)
}

// Notify pushes a notification to every connected client.
func (d *Daemon) Notify(t *testing.T, method string, params any) {
	t.Helper()
	req, err := protocol.NewNotification(method, params)
	if err != nil {
		t.Fatalf("failed to build %s notification: %v", method, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no connection to notify")
	}
	for _, c := range d.conns {
		if err := c.WriteJSON(req); err != nil {
			t.Fatalf("failed to push %s notification: %v", method, err)
		}
	}
}

// AwaitCall returns the next call of the given method, discarding calls of
// other methods that arrive first.
func (d *Daemon) AwaitCall(t *testing.T, method string) Call {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case call := <-d.calls:
			if call.Method == method {
				return call
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s call", method)
		}
	}
}

// AssertNoCall fails the test if a call of the given method arrives within
// the window. Calls of other methods are discarded.
func (d *Daemon) AssertNoCall(t *testing.T, method string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case call := <-d.calls:
			if call.Method == method {
				t.Fatalf("unexpected %s call: %s", method, call.Params)
			}
		case <-deadline:
			return
		}
	}
}

func (d *Daemon) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.idents = append(d.idents, r.URL.Query())
	d.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		call := Call{Method: req.Method, Params: req.Params}
		if req.ID != nil {
			call.ID = *req.ID
		}
		select {
		case d.calls <- call:
		default:
		}
		if req.ID == nil {
			continue
		}

		resp := protocol.Response{JSONRPC: "2.0", ID: *req.ID}
		d.mu.Lock()
		if rpcErr := d.fail[req.Method]; rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = json.RawMessage(`{}`)
		}
		err = conn.WriteJSON(resp)
		d.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// NopHandler discards all incoming daemon events. Tests that drive the
// trackers directly use it to satisfy the client's handler requirement.
type NopHandler struct{}

func (NopHandler) HandleCursorEvent(protocol.CursorEvent) {}

func (NopHandler) HandleEditEvent(protocol.EditEvent) {}
