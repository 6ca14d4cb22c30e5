// Package main provides the watch command for the live peer dashboard.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/tui"
	"github.com/weftlabs/weft/internal/ui"
)

// watchCmd shows a live dashboard of peer activity.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch peer activity live",
	Long: `Watch peer activity in a live terminal dashboard.

Shows every connected peer with their document and cursor position,
refreshed continuously. Type / to filter, f to follow the selected
peer, c to copy their location, q to quit.

The dashboard only runs in an interactive terminal. With --json,
--quiet, or piped output it falls back to the one-shot peers listing.`,
	RunE: runWatch,
}

// runWatch launches the dashboard, or falls back to the peers listing.
func runWatch(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Root().PersistentFlags().GetBool("json")
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")

	// Agents, CI, and pipes get the one-shot listing instead of a TUI.
	if !tui.ShouldRunTUI(jsonOutput, quiet) {
		return runPeers(cmd, args)
	}

	sess, endpoint, err := connectPresenceSession(cmd)
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("could not reach daemon")
	}
	defer sess.Close()

	return tui.RunWatch(version, endpoint, sess)
}
