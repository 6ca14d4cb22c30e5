// Package main provides the init command for creating project configuration.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/ui"
)

var (
	initName  string
	initForce bool
)

// initCmd creates .weft/config.yaml in the current directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize weft in the current directory",
	Long: `Initialize weft in the current directory.

Creates .weft/config.yaml with a freshly generated user id and your
display name. The user id identifies you to the daemon and to peers;
it is per-person, so config.yaml is kept out of version control.

Examples:
  weft init                 # prompt for a display name
  weft init --name ada      # non-interactive
  weft init --force         # replace an existing configuration`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Display name shown to peers")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

// runInit creates the .weft directory and writes the initial config.
func runInit(cmd *cobra.Command, args []string) error {
	// Get working directory
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	weftDir := filepath.Join(cwd, config.WeftDirName)
	configPath := filepath.Join(weftDir, config.ConfigFileName)

	// Check if already initialized
	if _, err := os.Stat(configPath); err == nil {
		if !initForce {
			ui.PrintWarning("Already initialized")
			ui.PrintInfo("Use --force to generate a new identity")
			return nil
		}
		proceed, err := ui.PromptConfirm("Replace existing configuration? Peers will see you as a new user.", false)
		if err != nil || !proceed {
			ui.PrintDim("Keeping existing configuration")
			return nil
		}
	}

	// Resolve display name: flag, then prompt, then OS username.
	name := initName
	if name == "" {
		fallback := defaultDisplayName()
		name, err = ui.Prompt(fmt.Sprintf("Display name [%s]:", fallback))
		if err != nil {
			return fmt.Errorf("failed to read display name: %w", err)
		}
		if name == "" {
			name = fallback
		}
	}

	cfg := &config.ProjectConfig{
		User: config.UserConfig{
			ID:   uuid.NewString(),
			Name: name,
		},
	}

	// Create .weft directory
	if err := os.MkdirAll(weftDir, 0755); err != nil {
		return fmt.Errorf("failed to create .weft directory: %w", err)
	}

	// Write config file
	if err := config.WriteProjectConfig(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Keep the per-person identity out of version control.
	gitignorePath := filepath.Join(weftDir, ".gitignore")
	gitignoreContent := `# Weft local files
# config.yaml holds a per-person user id
config.yaml
`
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		ui.PrintWarning("Failed to create .gitignore: %v", err)
	}

	ui.PrintSuccess("Initialized weft in %s", cwd)
	ui.Println()
	ui.PrintInfo("Created:")
	ui.PrintInfo("  .weft/config.yaml    - your identity and daemon settings")
	ui.PrintInfo("  .weft/.gitignore     - keeps config.yaml out of git")
	ui.Println()
	ui.PrintInfo("You: %s (%s)", name, cfg.User.ID)
	ui.Println()
	ui.PrintInfo("Next steps:")
	ui.PrintInfo("  1. Sync this directory:    weft attach")
	ui.PrintInfo("  2. See who else is here:   weft peers")
	ui.PrintInfo("  3. Watch cursors live:     weft watch")

	return nil
}
