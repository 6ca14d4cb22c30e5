// Package main provides the sessions command for listing attach history.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/ui"
)

var sessionsOutputJSON bool

// sessionsCmd lists the attach sessions recorded in ~/.weft/state.json.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent attach sessions",
	Long: `List the attach sessions recorded on this machine, newest first.

Every 'weft attach' (and every MCP attach_workspace call) appends a
record to ~/.weft/state.json; this shows the recent ones.

Examples:
  weft sessions
  weft sessions --json`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsOutputJSON, "json", false, "Output results as JSON")
}

// runSessions prints the recorded attach history.
func runSessions(cmd *cobra.Command, args []string) error {
	// Honor global --json
	jsonOutput := sessionsOutputJSON
	if globalJSON, _ := cmd.Root().PersistentFlags().GetBool("json"); globalJSON {
		jsonOutput = true
	}

	statePath, err := config.StatePath()
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("could not resolve state file")
	}
	recs, err := config.History(statePath)
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("could not read state file")
	}

	// Stored oldest first; shown newest first
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}

	if jsonOutput {
		items := make([]map[string]interface{}, 0, len(recs))
		for _, rec := range recs {
			items = append(items, map[string]interface{}{
				"session_id": rec.SessionID,
				"dir":        rec.Dir,
				"endpoint":   rec.Endpoint,
				"started_at": rec.StartedAt,
				"files":      rec.Files,
			})
		}
		output := map[string]interface{}{
			"sessions": items,
			"total":    len(items),
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(recs) == 0 {
		ui.PrintInfo("No attach sessions recorded")
		ui.PrintDim("Run 'weft attach' in an initialized project")
		return nil
	}

	ui.Println()
	ui.PrintInfo("%d recorded session(s)", len(recs))
	ui.Println()

	table := ui.NewTable("STARTED", "DIRECTORY", "ENDPOINT", "FILES")
	table.SetMinWidth(0, 10) // STARTED
	table.SetMinWidth(1, 16) // DIRECTORY
	table.SetMinWidth(2, 16) // ENDPOINT

	for _, rec := range recs {
		started := rec.StartedAt
		if t, ok := rec.Started(); ok {
			started = relativeTime(t)
		}
		table.AddRow(
			started,
			rec.Dir,
			rec.Endpoint,
			fmt.Sprintf("%d", rec.Files),
		)
	}

	table.Render()
	return nil
}
