// Package mcpserver provides the attachment management for the MCP
// server.
//
// AttachManager handles the lifecycle of the active workspace: attach,
// replace, detach, and cleanup when the daemon connection dies.
package mcpserver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/pkg/weft"
)

// Attachment describes the active attached workspace.
type Attachment struct {
	// SessionID identifies this attach in the state file history.
	SessionID string `json:"session_id"`

	// Dir is the attached directory.
	Dir string `json:"dir"`

	// Endpoint is the daemon endpoint the workspace dialed.
	Endpoint string `json:"endpoint"`

	// StartedAt is when the workspace attached.
	StartedAt time.Time `json:"started_at"`

	// LastActivity is the timestamp of the most recent tool call.
	LastActivity time.Time `json:"last_activity"`

	// Files is the number of documents tracked at startup.
	Files int `json:"files"`
}

// AttachManager manages the active workspace singleton.
//
// Only one workspace can be attached at a time; attaching a new
// directory detaches the previous one. There is no idle timeout: a
// quiet attachment holds no remote resources, so it stays up until
// detach_workspace or a lost daemon connection ends it.
type AttachManager struct {
	mu   sync.RWMutex
	ws   *weft.Workspace
	info *Attachment
	quit chan struct{}

	statePath string
	logger    *log.Logger
}

// NewAttachManager creates a new attachment manager.
//
// Parameters:
//   - statePath: Path to the state.json file for attach records, or
//     empty to skip persistence
//   - logger: The logger for manager events
//
// Returns:
//   - *AttachManager: A new manager with no active attachment
func NewAttachManager(statePath string, logger *log.Logger) *AttachManager {
	if logger == nil {
		logger = log.Default().With("component", "mcp")
	}
	return &AttachManager{statePath: statePath, logger: logger}
}

// StartAttach attaches a directory and sets it as the active workspace,
// detaching any previous one first.
//
// Parameters:
//   - ctx: Context bounding the daemon connection attempt
//   - dir: The directory to attach
//   - endpoint: Daemon endpoint override, or empty for the configured one
//
// Returns:
//   - *Attachment: The new attachment
//   - error: Any error during attach
func (m *AttachManager) StartAttach(ctx context.Context, dir, endpoint string) (*Attachment, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ws != nil {
		m.stopAttachLocked()
	}

	opts := []weft.Option{weft.WithLogger(m.logger)}
	if endpoint != "" {
		opts = append(opts, weft.WithEndpoint(endpoint))
	}
	ws, err := weft.Attach(ctx, abs, opts...)
	if err != nil {
		return nil, err
	}

	rec := config.NewAttachRecord(ws.Dir(), ws.Endpoint(), len(ws.Files()))
	if m.statePath != "" {
		if err := config.RecordAttach(m.statePath, rec); err != nil {
			m.logger.Warn("failed to record attach", "err", err)
		}
	}

	now := time.Now()
	m.ws = ws
	m.info = &Attachment{
		SessionID:    rec.SessionID,
		Dir:          ws.Dir(),
		Endpoint:     ws.Endpoint(),
		StartedAt:    now,
		LastActivity: now,
		Files:        len(ws.Files()),
	}
	m.quit = make(chan struct{})
	go m.reapOnError(ws, m.quit)

	info := *m.info
	return &info, nil
}

// StopAttach detaches the active workspace.
//
// Returns:
//   - error: If no workspace is attached
func (m *AttachManager) StopAttach() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ws == nil {
		return fmt.Errorf("no attached workspace")
	}

	m.stopAttachLocked()
	return nil
}

// Active returns a copy of the active attachment, or nil.
func (m *AttachManager) Active() *Attachment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.info == nil {
		return nil
	}
	info := *m.info
	return &info
}

// Workspace returns the active workspace, or nil.
func (m *AttachManager) Workspace() *weft.Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ws
}

// Touch records tool activity on the attachment.
func (m *AttachManager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info != nil {
		m.info.LastActivity = time.Now()
	}
}

// stopAttachLocked detaches without acquiring the lock. Caller must hold
// m.mu.
func (m *AttachManager) stopAttachLocked() {
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.ws != nil {
		if err := m.ws.Close(); err != nil {
			m.logger.Warn("failed to close workspace", "dir", m.ws.Dir(), "err", err)
		}
		m.ws = nil
		m.info = nil
	}
}

// reapOnError detaches the workspace when its daemon connection dies, so
// a later status call reports it gone instead of half-alive.
func (m *AttachManager) reapOnError(ws *weft.Workspace, quit chan struct{}) {
	select {
	case <-quit:
		return
	case err, ok := <-ws.Errors():
		if !ok || err == nil {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.ws != ws {
			return
		}
		m.logger.Warn("daemon connection lost, detaching", "dir", ws.Dir(), "err", err)
		m.stopAttachLocked()
	}
}
