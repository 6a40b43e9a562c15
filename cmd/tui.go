package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/tui"
	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

var flagWatch bool

var tuiCmd = &cobra.Command{
	Use:   "tui [payload...]",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Reload when the payload changes on disk")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	paths, err := payloadPaths(args)
	if err != nil {
		return err
	}

	theme.SetActive(appConfig.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(tui.Options{
		Paths:    paths,
		Tracked:  appConfig.Tracked(),
		Params:   trendParams(cmd),
		Watch:    flagWatch,
		UseCache: !flagNoCache,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	final, err := p.Run()
	if a, ok := final.(tui.App); ok {
		_ = a.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
