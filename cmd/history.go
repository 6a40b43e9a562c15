package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/pipeline"
	"github.com/theirongolddev/snapdash/internal/store"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List payloads recorded in the reduction cache",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Max entries (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, _ []string) error {
	cache, err := store.Open(pipeline.CachePath())
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	uploads, err := cache.Uploads(flagHistoryLimit)
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		fmt.Println("\n  No payloads recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(uploads))
	for _, u := range uploads {
		span := u.FirstMonth
		if u.LastMonth != u.FirstMonth {
			span += " to " + u.LastMonth
		}
		rows = append(rows, []string{
			u.RecordedAt.Local().Format("2006-01-02 15:04"),
			u.Source,
			span,
			cli.FormatNumber(int64(u.Total)),
			cli.FormatNumber(int64(u.Dropped)),
			u.Fingerprint[:min(8, len(u.Fingerprint))],
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Payload History",
		Headers: []string{"Recorded", "Source", "Months", "Snapshots", "Dropped", "Key"},
		Rows:    rows,
	}))

	if n, err := cache.ReductionCount(); err == nil {
		fmt.Println(cli.RenderMuted(fmt.Sprintf("  %d cached reductions in %s", n, pipeline.CachePath())))
	}
	return nil
}
