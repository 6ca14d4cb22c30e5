package dirhost

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/protocol"
)

func span(startLine, startCol, endLine, endCol int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: startLine, Character: startCol},
		End:   protocol.Position{Line: endLine, Character: endCol},
	}
}

// writeTree lays out files under root, creating directories as needed.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

func newTestHost(t *testing.T, files map[string]string, opts ...Option) *DirHost {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	h, err := New(root, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// awaitURI receives from ch until the wanted URI arrives, tolerating
// duplicates and unrelated events.
func awaitURI(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for event on %s", want)
		}
	}
}

func TestScanFindsEligibleFiles(t *testing.T) {
	h := newTestHost(t, map[string]string{
		"a.txt":          "alpha\n",
		"src/b.go":       "package b\n",
		".git/config":    "[core]\n",
		".weft/config":   "user:\n",
		"build/out.log":  "x\n",
		"vendor/dep.txt": "dep\n",
		"notes/big.txt":  strings.Repeat("x", 100),
		"img.png":        "\x89PNG\x00\x1a",
	}, WithIgnoreGlobs([]string{"*.log", "vendor/**"}), WithMaxFileSize(50))

	got, err := h.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []string{
		URIFor(filepath.Join(h.Root(), "a.txt")),
		URIFor(filepath.Join(h.Root(), "src", "b.go")),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestSnapshotPrefersOpenBuffer(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "disk"})
	uri := URIFor(filepath.Join(h.Root(), "a.txt"))

	if _, err := h.OpenBuffer(uri); err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}

	// An external write the watcher has not reported yet: the buffer cache
	// still wins.
	if err := os.WriteFile(filepath.Join(h.Root(), "a.txt"), []byte("changed"), 0644); err != nil {
		t.Fatalf("Failed to rewrite file: %v", err)
	}
	if got, err := h.Snapshot(uri); err != nil || got != "disk" {
		t.Errorf("Snapshot() with open buffer = %q, %v, want %q, nil", got, err, "disk")
	}

	h.CloseBuffer(uri)
	if got, err := h.Snapshot(uri); err != nil || got != "changed" {
		t.Errorf("Snapshot() after close = %q, %v, want %q, nil", got, err, "changed")
	}
}

func TestSnapshotErrors(t *testing.T) {
	h := newTestHost(t, map[string]string{
		"ok.txt":      "fine",
		"key.secret":  "shh",
		"big.txt":     strings.Repeat("y", 100),
		"archive.bin": "BIN\x00",
	}, WithIgnoreGlobs([]string{"*.secret"}), WithMaxFileSize(50))

	tests := []struct {
		name string
		uri  string
	}{
		{"outside root", URIFor("/etc/hostname")},
		{"unsupported scheme", "weird://a.txt"},
		{"ignored file", URIFor(filepath.Join(h.Root(), "key.secret"))},
		{"oversized file", URIFor(filepath.Join(h.Root(), "big.txt"))},
		{"binary file", URIFor(filepath.Join(h.Root(), "archive.bin"))},
		{"missing file", URIFor(filepath.Join(h.Root(), "ghost.txt"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Snapshot(tt.uri); err == nil {
				t.Errorf("Snapshot(%q) expected error", tt.uri)
			}
		})
	}

	if got, err := h.Snapshot(URIFor(filepath.Join(h.Root(), "ok.txt"))); err != nil || got != "fine" {
		t.Errorf("Snapshot(ok.txt) = %q, %v, want %q, nil", got, err, "fine")
	}
}

func TestOpenBufferNotifiesOnce(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "hello"})
	uri := URIFor(filepath.Join(h.Root(), "a.txt"))

	opened := 0
	h.OnBufferOpened = func(string) { opened++ }

	first, err := h.OpenBuffer(uri)
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}
	second, err := h.OpenBuffer(uri)
	if err != nil {
		t.Fatalf("OpenBuffer() second call error = %v", err)
	}
	if first != second {
		t.Error("OpenBuffer() returned different buffers for the same URI")
	}
	if opened != 1 {
		t.Errorf("OnBufferOpened fired %d times, want 1", opened)
	}

	if _, err := h.OpenBuffer(URIFor(filepath.Join(h.Root(), "ghost.txt"))); err == nil {
		t.Error("OpenBuffer() expected error for missing file")
	}

	if got, ok := h.Buffer(uri); !ok || got != first {
		t.Error("Buffer() did not return the open buffer")
	}
}

func TestReplaceRangeWritesAtomically(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "hello"})
	uri := URIFor(filepath.Join(h.Root(), "a.txt"))
	path := filepath.Join(h.Root(), "a.txt")

	var gotChange *host.Change
	h.OnContentChanged = func(_ string, ch *host.Change) { gotChange = ch }

	buf, err := h.OpenBuffer(uri)
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}

	if err := buf.ReplaceRange(span(0, 5, 0, 5), " world"); err != nil {
		t.Fatalf("ReplaceRange() error = %v", err)
	}
	if got := buf.Content(); got != "hello world" {
		t.Errorf("Content() = %q, want %q", got, "hello world")
	}
	disk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(disk) != "hello world" {
		t.Errorf("Disk content = %q, want %q", disk, "hello world")
	}
	if gotChange == nil || gotChange.Text != " world" || gotChange.Range != span(0, 5, 0, 5) {
		t.Errorf("OnContentChanged got %+v, want precise change description", gotChange)
	}

	// No temp file debris
	entries, err := os.ReadDir(h.Root())
	if err != nil {
		t.Fatalf("Failed to list root: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Root entries = %v, want [a.txt]", names)
	}

	// A range beyond the document leaves buffer and disk untouched
	if err := buf.ReplaceRange(span(9, 0, 9, 0), "x"); err == nil {
		t.Error("ReplaceRange() expected error for out-of-range edit")
	}
	disk, _ = os.ReadFile(path)
	if string(disk) != "hello world" {
		t.Errorf("Disk content after failed edit = %q, want %q", disk, "hello world")
	}
}

func TestSelectionAndActivation(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "0123456789"})
	uri := URIFor(filepath.Join(h.Root(), "a.txt"))

	var movedURI string
	var movedRanges []protocol.Range
	h.OnCursorMoved = func(u string, ranges []protocol.Range) {
		movedURI = u
		movedRanges = ranges
	}

	buf, err := h.OpenBuffer(uri)
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}

	sel := span(0, 1, 0, 3)
	buf.SetSelection(sel)
	if movedURI != uri || len(movedRanges) != 1 || movedRanges[0] != sel {
		t.Errorf("OnCursorMoved got (%q, %v), want (%q, [%v])", movedURI, movedRanges, uri, sel)
	}
	fb := buf.(*fileBuffer)
	if got := fb.Selection(); got != sel {
		t.Errorf("Selection() = %v, want %v", got, sel)
	}

	buf.ScrollTo(protocol.Position{Line: 0, Character: 7})
	if got := fb.ScrolledTo(); got != (protocol.Position{Line: 0, Character: 7}) {
		t.Errorf("ScrolledTo() = %v, want 0:7", got)
	}

	buf.Activate()
	if got := h.ActiveURI(); got != uri {
		t.Errorf("ActiveURI() = %q, want %q", got, uri)
	}
}

func TestHighlightValidatesRange(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "short"})
	uri := URIFor(filepath.Join(h.Root(), "a.txt"))

	buf, err := h.OpenBuffer(uri)
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}

	if _, err := buf.Highlight("u-1", "alice", span(0, 0, 0, 5)); err != nil {
		t.Errorf("Highlight() error = %v for resolvable range", err)
	}
	if _, err := buf.Highlight("u-1", "alice", span(3, 0, 3, 1)); err == nil {
		t.Error("Highlight() expected error for unresolvable range")
	}
}

func TestWatcherReportsExternalWrites(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "v1"})
	uri := URIFor(filepath.Join(h.Root(), "a.txt"))

	changed := make(chan string, 16)
	h.OnFileChanged = func(u string) { changed <- u }

	buf, err := h.OpenBuffer(uri)
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(h.Root(), "a.txt"), []byte("v2"), 0644); err != nil {
		t.Fatalf("Failed to rewrite file: %v", err)
	}
	awaitURI(t, changed, uri)

	// The open buffer reloads from disk (truncate and write can arrive as
	// separate events, so poll for the settled content)
	deadline := time.Now().Add(2 * time.Second)
	for buf.Content() != "v2" {
		if time.Now().After(deadline) {
			t.Fatalf("Content() after external write = %q, want %q", buf.Content(), "v2")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcherReportsCreatesAndRemoves(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "v1"})

	created := make(chan string, 16)
	removed := make(chan string, 16)
	h.OnFileCreated = func(u string) { created <- u }
	h.OnFileRemoved = func(u string) { removed <- u }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(h.Root(), "c.txt"), []byte("new"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	awaitURI(t, created, URIFor(filepath.Join(h.Root(), "c.txt")))

	if err := os.Remove(filepath.Join(h.Root(), "a.txt")); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	awaitURI(t, removed, URIFor(filepath.Join(h.Root(), "a.txt")))

	// A new subdirectory gets watched; files in it are reported
	sub := filepath.Join(h.Root(), "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "d.txt"), []byte("deep"), 0644); err != nil {
		t.Fatalf("Failed to create nested file: %v", err)
	}
	awaitURI(t, created, URIFor(filepath.Join(sub, "d.txt")))
}

func TestWatcherSkipsIneligiblePaths(t *testing.T) {
	h := newTestHost(t, map[string]string{"a.txt": "v1"},
		WithIgnoreGlobs([]string{"*.log"}))

	events := make(chan string, 16)
	h.OnFileChanged = func(u string) { events <- u }
	h.OnFileCreated = func(u string) { events <- u }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	// Ignored file first, eligible file second. Events arrive in order, so
	// the first notification must be for the eligible file.
	if err := os.WriteFile(filepath.Join(h.Root(), "noise.log"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write ignored file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(h.Root(), "a.txt"), []byte("v2"), 0644); err != nil {
		t.Fatalf("Failed to write eligible file: %v", err)
	}

	want := URIFor(filepath.Join(h.Root(), "a.txt"))
	select {
	case got := <-events:
		if got != want {
			t.Errorf("First event = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for watcher event")
	}
}

func TestRunStops(t *testing.T) {
	t.Run("on close", func(t *testing.T) {
		h := newTestHost(t, map[string]string{"a.txt": "v1"})
		done := make(chan struct{})
		go func() {
			_ = h.Run(context.Background())
			close(done)
		}()
		if err := h.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run() did not return after Close()")
		}
	})

	t.Run("on context cancel", func(t *testing.T) {
		h := newTestHost(t, map[string]string{"a.txt": "v1"})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = h.Run(ctx)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run() did not return after context cancel")
		}
	})
}
