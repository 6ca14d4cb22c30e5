package editsync

import (
	"testing"

	"github.com/weftlabs/weft/internal/protocol"
)

// TestDiff checks the minimal-replacement property on representative edits
// and that applying the computed delta to the old text reproduces the new
// text exactly.
func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		wantText string
		wantSpan string
	}{
		{
			name:     "insert in the middle",
			old:      "hello world",
			new:      "hello brave world",
			wantText: "brave ",
			wantSpan: "0:6-0:6",
		},
		{
			name:     "delete in the middle",
			old:      "hello brave world",
			new:      "hello world",
			wantText: "",
			wantSpan: "0:6-0:12",
		},
		{
			name:     "replace a word",
			old:      "the quick fox",
			new:      "the lazy fox",
			wantText: "lazy",
			wantSpan: "0:4-0:9",
		},
		{
			name:     "prepend",
			old:      "world",
			new:      "hello world",
			wantText: "hello ",
			wantSpan: "0:0-0:0",
		},
		{
			name:     "append",
			old:      "hello",
			new:      "hello!",
			wantText: "!",
			wantSpan: "0:5-0:5",
		},
		{
			name:     "line insertion",
			old:      "alpha\ngamma",
			new:      "alpha\nbeta\ngamma",
			wantText: "beta\n",
			wantSpan: "1:0-1:0",
		},
		{
			name:     "multibyte runes",
			old:      "caffé",
			new:      "caffè",
			wantText: "è",
			wantSpan: "0:4-0:5",
		},
		{
			name:     "everything replaced",
			old:      "abc",
			new:      "xyz",
			wantText: "xyz",
			wantSpan: "0:0-0:3",
		},
		{
			name:     "from empty",
			old:      "",
			new:      "fresh",
			wantText: "fresh",
			wantSpan: "0:0-0:0",
		},
		{
			name:     "to empty",
			old:      "gone",
			new:      "",
			wantText: "",
			wantSpan: "0:0-0:4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := Diff(tt.old, tt.new)
			if len(delta) != 1 {
				t.Fatalf("Diff() produced %d ops, want 1", len(delta))
			}
			op := delta[0]
			if op.Text != tt.wantText {
				t.Errorf("Diff() text = %q, want %q", op.Text, tt.wantText)
			}
			if got := op.Range.String(); got != tt.wantSpan {
				t.Errorf("Diff() range = %s, want %s", got, tt.wantSpan)
			}

			applied, err := protocol.ApplyDelta(tt.old, delta)
			if err != nil {
				t.Fatalf("ApplyDelta(Diff()) returned error: %v", err)
			}
			if applied != tt.new {
				t.Errorf("ApplyDelta(Diff()) = %q, want %q", applied, tt.new)
			}
		})
	}
}

func TestDiffIdentical(t *testing.T) {
	if delta := Diff("same", "same"); delta != nil {
		t.Errorf("Diff() of identical inputs = %v, want nil", delta)
	}
	if delta := Diff("", ""); delta != nil {
		t.Errorf("Diff() of empty inputs = %v, want nil", delta)
	}
}

// TestDiffAmbiguousOverlap covers inputs where prefix and suffix scans
// could overlap, like inserting a repeated character.
func TestDiffAmbiguousOverlap(t *testing.T) {
	tests := []struct{ old, new string }{
		{"aaa", "aaaa"},
		{"aaaa", "aaa"},
		{"abab", "ababab"},
		{"xx\nxx", "xx\nxx\nxx"},
	}
	for _, tt := range tests {
		delta := Diff(tt.old, tt.new)
		applied, err := protocol.ApplyDelta(tt.old, delta)
		if err != nil {
			t.Fatalf("ApplyDelta(Diff(%q, %q)) returned error: %v", tt.old, tt.new, err)
		}
		if applied != tt.new {
			t.Errorf("ApplyDelta(Diff(%q, %q)) = %q", tt.old, tt.new, applied)
		}
	}
}
