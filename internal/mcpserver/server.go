// Package mcpserver provides the MCP (Model Context Protocol) server
// implementation.
//
// This package implements an MCP server that exposes the weft client as
// tools that can be called by AI agents via the MCP protocol: attaching
// a workspace, inspecting peer presence, and reading the tracked
// document set.
package mcpserver

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/weftlabs/weft/internal/config"
)

// Server wraps the MCP server with weft-specific functionality.
type Server struct {
	mcpServer *mcp.Server
	manager   *AttachManager
	workDir   string
	version   string
}

// NewServer creates a new weft MCP server.
//
// Parameters:
//   - version: The CLI version string
//
// Returns:
//   - *Server: A new server instance
func NewServer(version string) *Server {
	// Get working directory
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	// Attach records land in the same state file the CLI uses
	statePath, err := config.StatePath()
	if err != nil {
		statePath = ""
	}

	s := &Server{
		manager: NewAttachManager(statePath, log.Default().With("component", "mcp")),
		workDir: workDir,
		version: version,
	}

	// Create MCP server
	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "weft",
			Version: version,
		},
		nil,
	)

	// Register tools
	s.registerTools()

	return s
}

// Run starts the MCP server over stdio. Any workspace still attached
// when the server stops is detached.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error that occurred during execution
func (s *Server) Run(ctx context.Context) error {
	defer func() { _ = s.manager.StopAttach() }()
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all weft tools with the MCP server.
func (s *Server) registerTools() {
	// attach_workspace tool
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "attach_workspace",
		Description: "Attach a directory to the weft daemon. Eligible files are tracked: local edits broadcast to peers and remote edits land on disk. Replaces any previously attached workspace.",
	}, s.handleAttachWorkspace)

	// detach_workspace tool
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "detach_workspace",
		Description: "Detach the active workspace and stop synchronizing its files.",
	}, s.handleDetachWorkspace)

	// list_peers tool
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_peers",
		Description: "List the remote peers in the attached workspace with their current document and cursor position.",
	}, s.handleListPeers)

	// list_tracked tool
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_tracked",
		Description: "List the documents currently synchronized in the attached workspace.",
	}, s.handleListTracked)

	// workspace_status tool
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "workspace_status",
		Description: "Get the attachment status: directory, daemon endpoint, connection health, tracked file and peer counts.",
	}, s.handleWorkspaceStatus)
}

// AttachWorkspaceInput defines the input parameters for the attach_workspace tool.
type AttachWorkspaceInput struct {
	Dir      string `json:"dir,omitempty" jsonschema:"Directory to attach (defaults to the server's working directory). Must contain a .weft/config.yaml created by 'weft init'"`
	Endpoint string `json:"endpoint,omitempty" jsonschema:"Daemon endpoint override: a ws:// URL or a unix socket path"`
}

// AttachWorkspaceOutput defines the output for the attach_workspace tool.
type AttachWorkspaceOutput struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Dir       string `json:"dir,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Files     int    `json:"files"`
	Error     string `json:"error,omitempty"`
}

// handleAttachWorkspace handles the attach_workspace tool call.
func (s *Server) handleAttachWorkspace(ctx context.Context, req *mcp.CallToolRequest, input AttachWorkspaceInput) (*mcp.CallToolResult, AttachWorkspaceOutput, error) {
	dir := input.Dir
	if dir == "" {
		dir = s.workDir
	}

	info, err := s.manager.StartAttach(ctx, dir, input.Endpoint)
	if err != nil {
		return nil, AttachWorkspaceOutput{Success: false, Error: err.Error()}, nil
	}

	return nil, AttachWorkspaceOutput{
		Success:   true,
		SessionID: info.SessionID,
		Dir:       info.Dir,
		Endpoint:  info.Endpoint,
		Files:     info.Files,
	}, nil
}

// DetachWorkspaceInput defines the input parameters for the detach_workspace tool.
type DetachWorkspaceInput struct{}

// DetachWorkspaceOutput defines the output for the detach_workspace tool.
type DetachWorkspaceOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// handleDetachWorkspace handles the detach_workspace tool call.
func (s *Server) handleDetachWorkspace(ctx context.Context, req *mcp.CallToolRequest, input DetachWorkspaceInput) (*mcp.CallToolResult, DetachWorkspaceOutput, error) {
	if err := s.manager.StopAttach(); err != nil {
		return nil, DetachWorkspaceOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, DetachWorkspaceOutput{Success: true}, nil
}

// ListPeersInput defines the input parameters for the list_peers tool.
type ListPeersInput struct{}

// PeerInfo describes one remote participant.
type PeerInfo struct {
	UserID   string `json:"user_id"`
	Label    string `json:"label"`
	Document string `json:"document,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	LastSeen string `json:"last_seen"`
}

// ListPeersOutput defines the output for the list_peers tool.
type ListPeersOutput struct {
	Peers []PeerInfo `json:"peers"`
	Total int        `json:"total"`
	Error string     `json:"error,omitempty"`
}

// handleListPeers handles the list_peers tool call.
func (s *Server) handleListPeers(ctx context.Context, req *mcp.CallToolRequest, input ListPeersInput) (*mcp.CallToolResult, ListPeersOutput, error) {
	ws := s.manager.Workspace()
	if ws == nil {
		return nil, ListPeersOutput{
			Peers: []PeerInfo{},
			Error: "no attached workspace. Call attach_workspace first",
		}, nil
	}
	s.manager.Touch()

	peers := ws.Peers()
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, PeerInfo{
			UserID:   p.UserID,
			Label:    p.Label,
			Document: p.Document,
			Line:     p.Line,
			Column:   p.Column,
			LastSeen: p.LastSeen.UTC().Format(time.RFC3339),
		})
	}

	return nil, ListPeersOutput{Peers: out, Total: len(out)}, nil
}

// ListTrackedInput defines the input parameters for the list_tracked tool.
type ListTrackedInput struct{}

// ListTrackedOutput defines the output for the list_tracked tool.
type ListTrackedOutput struct {
	Documents []string `json:"documents"`
	Total     int      `json:"total"`
	Error     string   `json:"error,omitempty"`
}

// handleListTracked handles the list_tracked tool call.
func (s *Server) handleListTracked(ctx context.Context, req *mcp.CallToolRequest, input ListTrackedInput) (*mcp.CallToolResult, ListTrackedOutput, error) {
	ws := s.manager.Workspace()
	if ws == nil {
		return nil, ListTrackedOutput{
			Documents: []string{},
			Error:     "no attached workspace. Call attach_workspace first",
		}, nil
	}
	s.manager.Touch()

	docs := ws.Tracked()
	return nil, ListTrackedOutput{Documents: docs, Total: len(docs)}, nil
}

// WorkspaceStatusInput defines the input parameters for the workspace_status tool.
type WorkspaceStatusInput struct{}

// WorkspaceStatusOutput defines the output for the workspace_status tool.
type WorkspaceStatusOutput struct {
	Attached     bool   `json:"attached"`
	Connected    bool   `json:"connected"`
	SessionID    string `json:"session_id,omitempty"`
	Dir          string `json:"dir,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	TrackedFiles int    `json:"tracked_files"`
	Peers        int    `json:"peers"`
	StartedAt    string `json:"started_at,omitempty"`
	LastActivity string `json:"last_activity,omitempty"`
}

// handleWorkspaceStatus handles the workspace_status tool call.
func (s *Server) handleWorkspaceStatus(ctx context.Context, req *mcp.CallToolRequest, input WorkspaceStatusInput) (*mcp.CallToolResult, WorkspaceStatusOutput, error) {
	ws := s.manager.Workspace()
	info := s.manager.Active()
	if ws == nil || info == nil {
		return nil, WorkspaceStatusOutput{Attached: false}, nil
	}
	s.manager.Touch()

	return nil, WorkspaceStatusOutput{
		Attached:     true,
		Connected:    ws.Connected(),
		SessionID:    info.SessionID,
		Dir:          info.Dir,
		Endpoint:     info.Endpoint,
		TrackedFiles: len(ws.Tracked()),
		Peers:        len(ws.Peers()),
		StartedAt:    info.StartedAt.UTC().Format(time.RFC3339),
		LastActivity: info.LastActivity.UTC().Format(time.RFC3339),
	}, nil
}
