// Package main provides the MCP command for the weft CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/mcpserver"
)

// mcpCmd is the parent command for MCP operations.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long: `MCP (Model Context Protocol) server commands.

The MCP server lets AI agents join a weft session: attach a workspace,
see where collaborators are working, and keep their own edits in sync,
all through the Model Context Protocol.

Commands:
  serve  - Start the MCP server over stdio`,
}

// mcpServeCmd starts the MCP server.
var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server over stdio",
	Long: `Start the weft MCP server over stdio.

This command starts an MCP server that communicates via JSON-RPC
over stdin/stdout. It's designed to be launched by AI hosts.

The server exposes the following tools:
  - attach_workspace: Sync a directory with the daemon
  - detach_workspace: Stop the active sync
  - list_peers: List connected collaborators and their cursors
  - list_tracked: List documents under sync
  - workspace_status: Report the attachment and connection state

Example host configuration:
  {
    "mcpServers": {
      "weft": {
        "command": "weft",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
}

// runMCPServe starts the MCP server.
func runMCPServe(cmd *cobra.Command, args []string) error {
	server := mcpserver.NewServer(version)

	// Run the server (blocks until client disconnects)
	return server.Run(cmd.Context())
}
