package protocol

import (
	"encoding/json"
	"testing"
)

func TestRangeOrdered(t *testing.T) {
	forward := span(0, 1, 2, 3)
	if got := forward.Ordered(); got != forward {
		t.Errorf("Ordered() changed a forward range: %s", got)
	}

	reversed := span(2, 3, 0, 1)
	want := span(0, 1, 2, 3)
	if got := reversed.Ordered(); got != want {
		t.Errorf("Ordered() = %s, want %s", got, want)
	}
}

func TestRangeIsCaret(t *testing.T) {
	if !caretAt(3, 7).IsCaret() {
		t.Error("IsCaret() = false for a zero-width range")
	}
	if span(3, 7, 3, 8).IsCaret() {
		t.Error("IsCaret() = true for a selection")
	}
}

func TestPositionBefore(t *testing.T) {
	tests := []struct {
		name string
		p, q Position
		want bool
	}{
		{name: "earlier line", p: Position{Line: 1, Character: 9}, q: Position{Line: 2, Character: 0}, want: true},
		{name: "same line earlier character", p: Position{Line: 1, Character: 2}, q: Position{Line: 1, Character: 3}, want: true},
		{name: "equal positions", p: Position{Line: 1, Character: 2}, q: Position{Line: 1, Character: 2}, want: false},
		{name: "later line", p: Position{Line: 3, Character: 0}, q: Position{Line: 2, Character: 9}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Before(tt.q); got != tt.want {
				t.Errorf("(%s).Before(%s) = %v, want %v", tt.p, tt.q, got, tt.want)
			}
		})
	}
}

// TestRequestEnvelopes verifies that calls carry an id while notifications
// omit the field entirely, which is how the two are told apart on the wire.
func TestRequestEnvelopes(t *testing.T) {
	req, err := NewRequest(7, MethodOpen, OpenParams{URI: "file:///a.txt", Content: "x"})
	if err != nil {
		t.Fatalf("NewRequest() returned error: %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal request: %v", err)
	}
	if string(fields["jsonrpc"]) != `"2.0"` {
		t.Errorf("jsonrpc = %s, want \"2.0\"", fields["jsonrpc"])
	}
	if string(fields["id"]) != "7" {
		t.Errorf("id = %s, want 7", fields["id"])
	}

	note, err := NewNotification(MethodCursor, CursorParams{URI: "file:///a.txt"})
	if err != nil {
		t.Fatalf("NewNotification() returned error: %v", err)
	}
	data, err = json.Marshal(note)
	if err != nil {
		t.Fatalf("failed to marshal notification: %v", err)
	}
	fields = nil
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal notification: %v", err)
	}
	if _, ok := fields["id"]; ok {
		t.Errorf("notification carries an id: %s", data)
	}
}

// TestCursorEventOmitsEmptyName checks the wire shape peers rely on when a
// user never announced a display name.
func TestCursorEventOmitsEmptyName(t *testing.T) {
	data, err := json.Marshal(CursorEvent{UserID: "u-1", URI: "file:///a.txt"})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if _, ok := fields["name"]; ok {
		t.Errorf("empty display name serialized: %s", data)
	}
}
