// Package config provides machine-local state tracking for the weft CLI.
//
// This file handles ~/.weft/state.json. The file is written surgically
// with sjson so fields added by other tools are preserved, and read with
// gjson so partial or older files stay usable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// historyLimit caps the number of attach records kept in state.json.
const historyLimit = 10

// AttachRecord describes one attach session.
type AttachRecord struct {
	// SessionID is a uuid generated when the attach starts.
	SessionID string `json:"session_id"`

	// Dir is the directory that was attached.
	Dir string `json:"dir"`

	// Endpoint is the daemon endpoint the session dialed.
	Endpoint string `json:"endpoint"`

	// StartedAt is when the attach started (RFC3339).
	StartedAt string `json:"started_at"`

	// Files is the number of documents tracked at startup.
	Files int `json:"files"`
}

// NewAttachRecord builds a record for an attach starting now.
//
// Parameters:
//   - dir: The attached directory
//   - endpoint: The daemon endpoint dialed
//   - files: The number of documents tracked at startup
//
// Returns:
//   - AttachRecord: The record with a fresh session ID and timestamp
func NewAttachRecord(dir, endpoint string, files int) AttachRecord {
	return AttachRecord{
		SessionID: uuid.NewString(),
		Dir:       dir,
		Endpoint:  endpoint,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Files:     files,
	}
}

// Started parses the StartedAt timestamp.
//
// Returns:
//   - time.Time: The parsed timestamp
//   - bool: False if StartedAt is absent or malformed
func (r AttachRecord) Started() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, r.StartedAt)
	return t, err == nil
}

// RecordAttach stores rec as last_attach and appends it to the history
// array in the state file, creating the file if needed.
//
// Unknown top-level fields already present in the file are preserved.
//
// Parameters:
//   - path: Path to the state.json file
//   - rec: The attach record to store
//
// Returns:
//   - error: Any error that occurred during writing
func RecordAttach(path string, rec AttachRecord) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read state file: %w", err)
		}
		data = []byte("{}")
	}

	data, err = sjson.SetBytes(data, "last_attach", rec)
	if err != nil {
		return fmt.Errorf("failed to set last_attach: %w", err)
	}
	data, err = sjson.SetBytes(data, "history.-1", rec)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	// Trim history to the most recent entries
	for gjson.GetBytes(data, "history.#").Int() > historyLimit {
		data, err = sjson.DeleteBytes(data, "history.0")
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// LastAttach reads the most recent attach record from the state file.
//
// Parameters:
//   - path: Path to the state.json file
//
// Returns:
//   - *AttachRecord: The last attach record, or nil if none is stored
//   - error: Any error other than the file or field being absent
func LastAttach(path string) (*AttachRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	v := gjson.GetBytes(data, "last_attach")
	if !v.Exists() {
		return nil, nil
	}
	rec := decodeAttachRecord(v)
	return &rec, nil
}

// History returns the attach records stored in the state file, oldest
// first. A missing file yields an empty history.
//
// Parameters:
//   - path: Path to the state.json file
//
// Returns:
//   - []AttachRecord: The stored records, oldest first
//   - error: Any error other than the file being absent
func History(path string) ([]AttachRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var recs []AttachRecord
	for _, v := range gjson.GetBytes(data, "history").Array() {
		recs = append(recs, decodeAttachRecord(v))
	}
	return recs, nil
}

func decodeAttachRecord(v gjson.Result) AttachRecord {
	return AttachRecord{
		SessionID: v.Get("session_id").String(),
		Dir:       v.Get("dir").String(),
		Endpoint:  v.Get("endpoint").String(),
		StartedAt: v.Get("started_at").String(),
		Files:     int(v.Get("files").Int()),
	}
}
