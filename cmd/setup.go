package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/config"
	"github.com/theirongolddev/snapdash/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, err := tui.RunSetup()
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	appConfig = cfg

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `snapdash setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
