package editsync

import (
	"github.com/weftlabs/weft/internal/protocol"
)

// Diff computes the delta that turns oldText into newText: the longest
// common prefix and suffix are trimmed at rune granularity and the middle
// becomes a single ranged replacement. Identical inputs produce nil.
//
// One bounded op per change keeps the wire cost proportional to the edit,
// not the document. Interleaved multi-site edits between two
// notifications still collapse into one replacement covering both sites;
// that is a fidelity loss the daemon absorbs, not a correctness one.
func Diff(oldText, newText string) []protocol.DeltaOp {
	if oldText == newText {
		return nil
	}

	o := []rune(oldText)
	n := []rune(newText)

	prefix := 0
	for prefix < len(o) && prefix < len(n) && o[prefix] == n[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(o)-prefix && suffix < len(n)-prefix &&
		o[len(o)-1-suffix] == n[len(n)-1-suffix] {
		suffix++
	}

	r := protocol.Range{
		Start: protocol.PositionAt(oldText, prefix),
		End:   protocol.PositionAt(oldText, len(o)-suffix),
	}
	return []protocol.DeltaOp{{Range: r, Text: string(n[prefix : len(n)-suffix])}}
}
