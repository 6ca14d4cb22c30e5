// Package main provides the attach command for syncing a directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/trace"
	"github.com/weftlabs/weft/internal/ui"
	"github.com/weftlabs/weft/pkg/weft"
)

// followSettleDelay gives the daemon's presence replay a moment to arrive
// before --follow looks the peer up.
const followSettleDelay = 500 * time.Millisecond

var (
	attachFollow    string
	attachTraceFile string
	attachSocket    string
	attachURL       string
)

// attachCmd syncs a directory with the daemon until interrupted.
var attachCmd = &cobra.Command{
	Use:   "attach [dir]",
	Short: "Sync a directory with the daemon",
	Long: `Sync a directory with the daemon.

Opens every eligible file under the directory for synchronization,
watches for local changes, and applies remote edits back to disk.
Runs until interrupted with Ctrl+C.

Files matching attach.ignore globs, dot-prefixed paths, binaries, and
oversized files are skipped.

Examples:
  weft attach                      # attach the current directory
  weft attach ~/src/project        # attach another directory
  weft attach --follow u-ada       # jump with a peer as they move
  weft attach --trace-file t.json  # record latency spans`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachFollow, "follow", "", "Follow a peer's cursor by user id")
	attachCmd.Flags().StringVar(&attachTraceFile, "trace-file", "", "Append OTLP-JSON spans to this file")
	attachCmd.Flags().StringVar(&attachSocket, "socket", "", "Daemon unix socket path (overrides config)")
	attachCmd.Flags().StringVar(&attachURL, "url", "", "Daemon ws:// URL (overrides config)")
}

// runAttach connects the directory and blocks until signal or disconnect.
func runAttach(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	// Load the config up front so --trace-file can fall back to the
	// project's trace.file setting.
	cfg, err := config.LoadProjectConfig(config.ConfigPath(abs))
	if err != nil {
		ui.PrintError("Project not initialized. Run 'weft init' first.")
		return fmt.Errorf("project not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tracePath := attachTraceFile
	if tracePath == "" {
		tracePath = cfg.Trace.File
	}
	if tracePath != "" {
		shutdown, err := trace.Setup(tracePath, version)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
		ui.PrintDim("Tracing to %s", tracePath)
	}

	opts := []weft.Option{weft.WithConfig(cfg)}
	if attachURL != "" {
		opts = append(opts, weft.WithEndpoint(attachURL))
	} else if attachSocket != "" {
		opts = append(opts, weft.WithEndpoint(attachSocket))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := weft.Attach(ctx, abs, opts...)
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("attach failed")
	}
	defer func() { _ = ws.Close() }()

	// Record the session in ~/.weft/state.json (best effort).
	if statePath, pathErr := config.StatePath(); pathErr == nil {
		rec := config.NewAttachRecord(ws.Dir(), ws.Endpoint(), len(ws.Tracked()))
		if recErr := config.RecordAttach(statePath, rec); recErr != nil {
			log.Debug("could not record attach", "err", recErr)
		}
	}

	ui.PrintSuccess("Attached %s", abs)
	ui.PrintLink("Daemon", ws.Endpoint())
	ui.PrintInfo("Tracking %d files", len(ws.Tracked()))

	if attachFollow != "" {
		time.Sleep(followSettleDelay)
		if err := ws.Follow(attachFollow); err != nil {
			ui.PrintWarning("Cannot follow %s: %v", attachFollow, err)
			ui.PrintDim("They may not have opened a file yet")
		} else {
			ui.PrintInfo("Following %s", attachFollow)
		}
	}

	ui.PrintDim("Press Ctrl+C to detach")

	select {
	case <-ctx.Done():
		ui.Println()
		ui.PrintInfo("Detaching...")
		return nil
	case err := <-ws.Errors():
		ui.PrintError("%v", err)
		return fmt.Errorf("detached")
	}
}
