package dirhost

import (
	"bytes"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize is the size cap applied when the config doesn't set
// one. Documents above it are never tracked.
const DefaultMaxFileSize = 1 << 20

// Matcher decides which files under an attach root participate in sync.
//
// Three pattern shapes are understood, matched against slash-separated
// paths relative to the root:
//   - "name/**" excludes everything under name/
//   - patterns containing "/" match the whole relative path
//   - bare patterns match the basename ("*.log" ignores logs anywhere)
//
// Dot-prefixed names are always excluded, pattern or not. That keeps
// .git and .weft out of sync, and with them editor swap files and the
// host's own atomic-write temp files.
type Matcher struct {
	globs   []string
	maxSize int64
}

// NewMatcher builds a matcher from ignore globs and a size cap. A zero or
// negative cap falls back to DefaultMaxFileSize.
func NewMatcher(globs []string, maxSize int64) *Matcher {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Matcher{globs: globs, maxSize: maxSize}
}

// SkipDir reports whether a directory is excluded whole, with everything
// under it.
func (m *Matcher) SkipDir(rel string) bool {
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}
	return m.matches(rel)
}

// Excluded reports whether a relative file path is excluded.
func (m *Matcher) Excluded(rel string) bool {
	if strings.HasPrefix(path.Base(filepath.ToSlash(rel)), ".") {
		return true
	}
	return m.matches(rel)
}

// TooLarge reports whether a file of the given size exceeds the cap.
func (m *Matcher) TooLarge(size int64) bool {
	return size > m.maxSize
}

func (m *Matcher) matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range m.globs {
		if prefix, ok := strings.CutSuffix(g, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if strings.Contains(g, "/") {
			if ok, _ := path.Match(g, rel); ok {
				return true
			}
			continue
		}
		if ok, _ := path.Match(g, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

// IsBinary reports whether content can't be synchronized as text: it
// contains a NUL byte or is not valid UTF-8.
func IsBinary(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	return !utf8.Valid(data)
}
