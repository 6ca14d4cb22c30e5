package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"
)

func TestRecordAttachAndLastAttach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	rec := AttachRecord{
		SessionID: "s-1",
		Dir:       "/work/demo",
		Endpoint:  "/run/user/1000/weft/weftd.sock",
		StartedAt: "2026-08-25T10:00:00Z",
		Files:     3,
	}
	if err := RecordAttach(path, rec); err != nil {
		t.Fatalf("RecordAttach() error = %v", err)
	}

	got, err := LastAttach(path)
	if err != nil {
		t.Fatalf("LastAttach() error = %v", err)
	}
	if got == nil {
		t.Fatal("LastAttach() = nil, want record")
	}
	if *got != rec {
		t.Errorf("LastAttach() = %+v, want %+v", *got, rec)
	}
}

func TestLastAttachMissingFile(t *testing.T) {
	got, err := LastAttach(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("LastAttach() error = %v", err)
	}
	if got != nil {
		t.Errorf("LastAttach() = %+v, want nil for missing file", got)
	}
}

func TestRecordAttachPreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	seed := `{"editor_plugin":{"theme":"dark"}}`
	if err := os.WriteFile(path, []byte(seed), 0600); err != nil {
		t.Fatalf("Failed to seed state file: %v", err)
	}

	if err := RecordAttach(path, NewAttachRecord("/work/demo", "/sock", 1)); err != nil {
		t.Fatalf("RecordAttach() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read state file: %v", err)
	}
	if got := gjson.GetBytes(data, "editor_plugin.theme").String(); got != "dark" {
		t.Errorf("editor_plugin.theme = %q, want %q", got, "dark")
	}
	if !gjson.GetBytes(data, "last_attach.session_id").Exists() {
		t.Error("last_attach.session_id missing after RecordAttach")
	}
}

func TestHistoryCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	for i := 0; i < historyLimit+3; i++ {
		rec := AttachRecord{
			SessionID: fmt.Sprintf("s-%d", i),
			Dir:       "/work/demo",
			Endpoint:  "/sock",
			StartedAt: "2026-08-25T10:00:00Z",
		}
		if err := RecordAttach(path, rec); err != nil {
			t.Fatalf("RecordAttach(#%d) error = %v", i, err)
		}
	}

	recs, err := History(path)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(recs) != historyLimit {
		t.Fatalf("History() returned %d records, want %d", len(recs), historyLimit)
	}
	if recs[0].SessionID != "s-3" {
		t.Errorf("Oldest record = %q, want %q (earlier entries trimmed)", recs[0].SessionID, "s-3")
	}
	last := fmt.Sprintf("s-%d", historyLimit+2)
	if recs[len(recs)-1].SessionID != last {
		t.Errorf("Newest record = %q, want %q", recs[len(recs)-1].SessionID, last)
	}
}

func TestHistoryMissingFile(t *testing.T) {
	recs, err := History(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("History() returned %d records for missing file, want 0", len(recs))
	}
}

func TestNewAttachRecord(t *testing.T) {
	rec := NewAttachRecord("/work/demo", "ws://localhost:7999", 4)

	if rec.SessionID == "" {
		t.Error("NewAttachRecord() left SessionID empty")
	}
	if rec.Dir != "/work/demo" {
		t.Errorf("Dir = %q, want %q", rec.Dir, "/work/demo")
	}
	if rec.Endpoint != "ws://localhost:7999" {
		t.Errorf("Endpoint = %q, want %q", rec.Endpoint, "ws://localhost:7999")
	}
	if rec.Files != 4 {
		t.Errorf("Files = %d, want 4", rec.Files)
	}
	if _, ok := rec.Started(); !ok {
		t.Errorf("Started() could not parse StartedAt %q", rec.StartedAt)
	}
}
