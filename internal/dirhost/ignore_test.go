package dirhost

import "testing"

func TestMatcherExcluded(t *testing.T) {
	m := NewMatcher([]string{"*.log", "vendor/**", "docs/*.md"}, 0)

	tests := []struct {
		name string
		rel  string
		want bool
	}{
		{"basename glob at root", "app.log", true},
		{"basename glob nested", "src/app.log", true},
		{"prefix glob child", "vendor/x/y.go", true},
		{"prefix glob itself", "vendor", true},
		{"path glob match", "docs/readme.md", true},
		{"path glob is single segment", "docs/sub/readme.md", false},
		{"plain file", "main.go", false},
		{"similar prefix not excluded", "vendored/y.go", false},
		{"dot file at root", ".gitignore", true},
		{"nested dot file", "src/.main.go.swp", true},
		{"atomic write temp", ".notes.md.tmp-42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Excluded(tt.rel); got != tt.want {
				t.Errorf("Excluded(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestMatcherSkipDir(t *testing.T) {
	m := NewMatcher([]string{"vendor/**"}, 0)

	tests := []struct {
		name string
		rel  string
		want bool
	}{
		{"git dir", ".git", true},
		{"weft dir", ".weft", true},
		{"nested dot dir", "src/.cache", true},
		{"glob dir", "vendor", true},
		{"plain dir", "src", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.SkipDir(tt.rel); got != tt.want {
				t.Errorf("SkipDir(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestMatcherTooLarge(t *testing.T) {
	m := NewMatcher(nil, 100)
	if m.TooLarge(100) {
		t.Error("TooLarge(100) = true for a 100-byte cap, want false")
	}
	if !m.TooLarge(101) {
		t.Error("TooLarge(101) = false for a 100-byte cap, want true")
	}

	def := NewMatcher(nil, 0)
	if def.TooLarge(DefaultMaxFileSize) {
		t.Error("zero cap did not fall back to DefaultMaxFileSize")
	}
	if !def.TooLarge(DefaultMaxFileSize + 1) {
		t.Error("default cap does not exclude oversized content")
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"plain text", []byte("hello\nworld\n"), false},
		{"unicode text", []byte("héllo 日本語"), false},
		{"empty", nil, false},
		{"nul byte", []byte("PK\x00\x04"), true},
		{"invalid utf8", []byte{0xff, 0xfe, 0x41}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinary(tt.data); got != tt.want {
				t.Errorf("IsBinary(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}
