// Package main provides the peers command for listing active collaborators.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/ui"
)

// presenceSettleDelay gives the daemon's presence replay a moment to
// arrive before the snapshot is read.
const presenceSettleDelay = 500 * time.Millisecond

var peersOutputJSON bool

// peersCmd lists the collaborators currently visible to the daemon.
var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List connected collaborators",
	Long: `List the collaborators currently visible to the daemon.

Connects briefly, collects the replayed presence state, and prints one
row per peer with their document and cursor position.

Examples:
  weft peers
  weft peers --json`,
	RunE: runPeers,
}

func init() {
	peersCmd.Flags().BoolVar(&peersOutputJSON, "json", false, "Output results as JSON")
}

// runPeers prints a one-shot presence snapshot.
func runPeers(cmd *cobra.Command, args []string) error {
	// Honor global --json
	jsonOutput := peersOutputJSON
	if globalJSON, _ := cmd.Root().PersistentFlags().GetBool("json"); globalJSON {
		jsonOutput = true
	}

	sess, _, err := connectPresenceSession(cmd)
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("could not reach daemon")
	}
	defer sess.Close()

	time.Sleep(presenceSettleDelay)
	peers := sess.ListPeers()

	if jsonOutput {
		items := make([]map[string]interface{}, 0, len(peers))
		for _, p := range peers {
			entry := map[string]interface{}{
				"user_id":  p.UserID,
				"label":    p.Label(),
				"document": p.DocumentURI,
			}
			if len(p.Ranges) > 0 {
				caret := p.Ranges[len(p.Ranges)-1].Start
				entry["line"] = caret.Line + 1
				entry["column"] = caret.Character + 1
			}
			if !p.LastSeen.IsZero() {
				entry["last_seen"] = p.LastSeen.UTC().Format(time.RFC3339)
			}
			items = append(items, entry)
		}
		output := map[string]interface{}{
			"peers": items,
			"total": len(items),
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(peers) == 0 {
		ui.PrintInfo("No peers connected")
		ui.PrintDim("Ask a collaborator to run 'weft attach'")
		return nil
	}

	ui.Println()
	ui.PrintInfo("%d peer(s) connected", len(peers))
	ui.Println()

	table := ui.NewTable("NAME", "DOCUMENT", "POSITION", "SEEN")
	table.SetMinWidth(0, 10) // NAME
	table.SetMinWidth(1, 16) // DOCUMENT
	table.SetMinWidth(2, 8)  // POSITION
	table.SetMinWidth(3, 8)  // SEEN

	for _, p := range peers {
		table.AddRow(
			p.Label(),
			docBase(p.DocumentURI),
			peerPosition(p),
			relativeTime(p.LastSeen),
		)
	}

	table.Render()
	return nil
}
