package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
)

var flagMonthlyGroup string

var monthlyCmd = &cobra.Command{
	Use:   "monthly [payload...]",
	Short: "One row per month from the latest snapshot in that month",
	RunE:  runMonthly,
}

func init() {
	monthlyCmd.Flags().StringVar(&flagMonthlyGroup, "group", "", "Only show one metric group (current_month_estimate, previous_month_complete)")
	rootCmd.AddCommand(monthlyCmd)
}

func runMonthly(cmd *cobra.Command, args []string) error {
	d, ok, err := loadDashboard(cmd, args)
	if err != nil || !ok {
		return err
	}

	tracked := d.Tracked
	if flagMonthlyGroup != "" {
		tracked = pipeline.FilterGroup(tracked, flagMonthlyGroup)
		if len(tracked) == 0 {
			return fmt.Errorf("no tracked metrics in group %q", flagMonthlyGroup)
		}
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(monthlyTable(d.Records, tracked)))
	return nil
}

func monthlyTable(records []model.MonthlyRecord, tracked []model.TrackedMetric) cli.Table {
	headers := []string{"Month", "Snapshot"}
	for _, tm := range tracked {
		headers = append(headers, tm.Label)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{r.YearMonth, r.SnapshotAt.Format("Jan 02 15:04 -07:00")}
		for _, tm := range tracked {
			row = append(row, cli.FormatNumber(r.Value(tm.Column)))
		}
		rows = append(rows, row)
	}
	return cli.Table{Title: "Monthly Snapshots", Headers: headers, Rows: rows}
}
