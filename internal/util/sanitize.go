// Package util provides shared helpers for presenting remote-supplied
// strings.
package util

import (
	"regexp"
	"strings"
)

// controlChars matches ASCII control characters and other non-printables
// that must never reach a terminal or an editor decoration.
var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// maxLabelLen caps display labels; remote names are untrusted input.
const maxLabelLen = 64

// SanitizeLabel makes a remote-supplied string safe to render: control
// characters are stripped, surrounding whitespace trimmed, and the result
// capped at a display-friendly length.
func SanitizeLabel(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxLabelLen {
		return string(runes[:maxLabelLen])
	}
	return s
}

// ShortID returns the first segment of a dashed id (the first 8 characters
// of a UUID), or the whole id when it is already short.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PeerLabel returns the label to render for a peer: the sanitized display
// name, or the shortened user id when no usable name was announced.
func PeerLabel(displayName, userID string) string {
	if label := SanitizeLabel(displayName); label != "" {
		return label
	}
	return ShortID(userID)
}
