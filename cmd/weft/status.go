// Package main provides the status command for checking the local setup.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/host"
	"github.com/weftlabs/weft/internal/session"
	"github.com/weftlabs/weft/internal/ui"
	"github.com/weftlabs/weft/internal/util"
)

// probeTimeout bounds the daemon reachability check.
const probeTimeout = 2 * time.Second

var statusOutputJSON bool

// statusCmd summarizes the project config, daemon reachability, and the
// last recorded attach.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project and daemon status",
	Long: `Show project and daemon status.

Reports whether the directory is initialized, which daemon endpoint
weft would dial, whether that daemon answers, and the last recorded
attach session from ~/.weft/state.json.

Examples:
  weft status
  weft status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusOutputJSON, "json", false, "Output results as JSON")
}

// runStatus collects and prints the status report.
func runStatus(cmd *cobra.Command, args []string) error {
	// Honor global --json
	jsonOutput := statusOutputJSON
	if globalJSON, _ := cmd.Root().PersistentFlags().GetBool("json"); globalJSON {
		jsonOutput = true
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Project configuration
	var cfg *config.ProjectConfig
	root, rootErr := config.FindProjectRoot(cwd)
	if rootErr == nil {
		if loaded, loadErr := config.LoadProjectConfig(config.ConfigPath(root)); loadErr == nil {
			cfg = loaded
		}
	}

	// Daemon endpoint and reachability
	var daemonCfg *config.DaemonConfig
	if cfg != nil {
		daemonCfg = &cfg.Daemon
	}
	endpoint := config.DaemonEndpoint(daemonCfg)

	reachable := false
	probed := cfg != nil && cfg.User.ID != ""
	if probed {
		reachable = probeDaemon(cmd.Context(), cfg, endpoint)
	}

	// Last attach from machine-local state
	var last *config.AttachRecord
	if statePath, pathErr := config.StatePath(); pathErr == nil {
		if rec, recErr := config.LastAttach(statePath); recErr == nil {
			last = rec
		}
	}

	if jsonOutput {
		output := map[string]interface{}{
			"initialized": cfg != nil,
			"endpoint":    endpoint,
		}
		if cfg != nil {
			output["root"] = root
			output["user_id"] = cfg.User.ID
			output["user_name"] = cfg.User.Name
		}
		if probed {
			output["daemon_reachable"] = reachable
		}
		if last != nil {
			output["last_attach"] = map[string]interface{}{
				"session_id": last.SessionID,
				"dir":        last.Dir,
				"endpoint":   last.Endpoint,
				"started_at": last.StartedAt,
				"files":      last.Files,
			}
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	ui.Println()

	if cfg != nil {
		ui.PrintInfo("Project: %s", root)
		ui.PrintInfo("You: %s (%s)", util.PeerLabel(cfg.User.Name, cfg.User.ID), util.ShortID(cfg.User.ID))
	} else {
		ui.PrintWarning("Not initialized")
		ui.PrintInfo("Run 'weft init' to create .weft/config.yaml")
	}

	ui.PrintLink("Daemon", endpoint)
	if probed {
		if reachable {
			ui.PrintSuccess("Daemon is reachable")
		} else {
			ui.PrintWarning("Daemon is not reachable")
			ui.PrintDim("Start weftd, or point WEFT_URL / daemon.url at a running one")
		}
	}

	if last != nil {
		started := last.StartedAt
		if t, ok := last.Started(); ok {
			started = relativeTime(t)
		}
		ui.Println()
		ui.PrintInfo("Last attach: %s", last.Dir)
		ui.PrintDim("  %d files, started %s", last.Files, started)
	}

	return nil
}

// probeDaemon dials the daemon briefly to check reachability.
func probeDaemon(ctx context.Context, cfg *config.ProjectConfig, endpoint string) bool {
	sess := session.New(host.NewMemHost(),
		session.WithIdentity(cfg.User.ID, cfg.User.Name),
		session.WithDialTimeout(probeTimeout),
	)
	if err := sess.Start(ctx, endpoint); err != nil {
		return false
	}
	sess.Close()
	return true
}
