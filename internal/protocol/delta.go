package protocol

import (
	"errors"
	"fmt"
)

// ErrOutOfRange reports a position that does not exist in the document it
// was resolved against.
var ErrOutOfRange = errors.New("position out of range")

// Offset converts a position into a rune offset within content.
//
// A position one past the last character of a line is valid (the insertion
// point before the newline), as is the position just past the end of the
// document.
//
// Returns:
//   - int: The rune offset.
//   - error: ErrOutOfRange (wrapped) when the position does not exist.
func Offset(content string, p Position) (int, error) {
	if p.Line < 0 || p.Character < 0 {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, p)
	}

	line, col, idx := 0, 0, 0
	for _, r := range content {
		if line == p.Line && col == p.Character {
			return idx, nil
		}
		if line > p.Line {
			break
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
		idx++
	}
	// End of content is a valid insertion point.
	if line == p.Line && col == p.Character {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrOutOfRange, p)
}

// PositionAt converts a rune offset into a position. Offsets past the end
// of the document clamp to the final position.
func PositionAt(content string, offset int) Position {
	line, col, idx := 0, 0, 0
	for _, r := range content {
		if idx == offset {
			break
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
		idx++
	}
	return Position{Line: line, Character: col}
}

// ApplyDelta applies each operation in order and returns the resulting
// content. Ops resolve against the document produced by the previous op.
// On the first op that fails to resolve, the partial result is discarded
// and the original content is returned alongside the error.
func ApplyDelta(content string, delta []DeltaOp) (string, error) {
	cur := content
	for i, op := range delta {
		next, err := applyOp(cur, op)
		if err != nil {
			return content, fmt.Errorf("failed to apply op %d of %d: %w", i+1, len(delta), err)
		}
		cur = next
	}
	return cur, nil
}

// applyOp replaces the ordered range of op with its text.
func applyOp(content string, op DeltaOp) (string, error) {
	r := op.Range.Ordered()
	start, err := Offset(content, r.Start)
	if err != nil {
		return "", err
	}
	end, err := Offset(content, r.End)
	if err != nil {
		return "", err
	}
	runes := []rune(content)
	return string(runes[:start]) + op.Text + string(runes[end:]), nil
}
