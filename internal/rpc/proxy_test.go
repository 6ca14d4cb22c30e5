package rpc_test

import (
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/protocol"
	"github.com/weftlabs/weft/internal/rpc"
	"github.com/weftlabs/weft/internal/rpc/rpctest"
)

func TestProxyForwardsWhenBound(t *testing.T) {
	d := rpctest.New(t)
	c := connect(t, d, rpctest.NopHandler{})

	p := rpc.NewProxy(nil)
	if p.Attached() {
		t.Fatal("Attached() = true before Bind()")
	}
	p.Bind(c)
	if !p.Attached() {
		t.Fatal("Attached() = false after Bind()")
	}

	p.Open("file:///a.txt", "content")
	call := d.AwaitCall(t, protocol.MethodOpen)
	var open protocol.OpenParams
	call.Unmarshal(t, &open)
	if open.URI != "file:///a.txt" || open.Content != "content" {
		t.Errorf("open params = %+v", open)
	}

	p.Edit("file:///a.txt", 3, []protocol.DeltaOp{{Text: "x"}})
	call = d.AwaitCall(t, protocol.MethodEdit)
	var edit protocol.EditEvent
	call.Unmarshal(t, &edit)
	if edit.Revision != 3 || len(edit.Delta) != 1 {
		t.Errorf("edit params = %+v", edit)
	}

	p.Cursor("file:///a.txt", []protocol.Range{{}})
	d.AwaitCall(t, protocol.MethodCursor)

	p.CloseDoc("file:///a.txt")
	d.AwaitCall(t, protocol.MethodClose)
}

// TestProxySilentAfterDetach pins the teardown contract: once detached,
// every call from a late tracker is swallowed without error or panic.
func TestProxySilentAfterDetach(t *testing.T) {
	d := rpctest.New(t)
	c := connect(t, d, rpctest.NopHandler{})

	p := rpc.NewProxy(nil)
	p.Bind(c)
	p.Detach()
	p.Detach()
	if p.Attached() {
		t.Fatal("Attached() = true after Detach()")
	}

	p.Open("file:///a.txt", "content")
	p.Edit("file:///a.txt", 1, []protocol.DeltaOp{{Text: "x"}})
	p.Cursor("file:///a.txt", []protocol.Range{{}})
	p.CloseDoc("file:///a.txt")

	for _, method := range []string{protocol.MethodOpen, protocol.MethodEdit, protocol.MethodCursor, protocol.MethodClose} {
		d.AssertNoCall(t, method, 50*time.Millisecond)
	}
}

func TestProxyUnboundNoops(t *testing.T) {
	p := rpc.NewProxy(nil)
	p.Open("file:///a.txt", "content")
	p.Cursor("file:///a.txt", nil)
	p.CloseDoc("file:///a.txt")
}
