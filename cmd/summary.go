package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/model"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [payload...]",
	Short: "Latest monthly values with month-over-month change and projections",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	d, ok, err := loadDashboard(cmd, args)
	if err != nil || !ok {
		return err
	}

	first, last := d.Records[0], d.Records[len(d.Records)-1]
	var prev *model.MonthlyRecord
	if len(d.Records) > 1 {
		prev = &d.Records[len(d.Records)-2]
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("CLIENT COUNTS  %s to %s",
		cli.FormatMonth(first.YearMonth), cli.FormatMonth(last.YearMonth))))
	fmt.Println()

	headers := []string{"Metric", cli.FormatMonthShort(last.YearMonth), "vs prev", "Change"}
	if d.Params.Enabled && d.Params.FuturePeriods > 0 {
		headers = append(headers, fmt.Sprintf("+%dmo", d.Params.FuturePeriods))
	}

	rows := [][]string{
		{"Months covered", cli.FormatNumber(int64(len(d.Records)))},
		{"Snapshots", cli.FormatNumber(int64(d.Total))},
		{"---"},
	}
	group := ""
	for _, tm := range d.Tracked {
		if group != "" && tm.Group != group {
			rows = append(rows, []string{"---"})
		}
		group = tm.Group

		cur := last.Value(tm.Column)
		row := []string{tm.Label, cli.FormatNumber(cur), "", ""}
		if prev != nil {
			row[2] = cli.FormatDelta(cur, prev.Value(tm.Column))
			row[3] = cli.FormatPercentChange(cur, prev.Value(tm.Column))
		}
		if len(headers) == 5 {
			projected := ""
			if s, ok := d.SeriesFor(tm.Column); ok {
				if p, ok := s.Last(); ok {
					projected = cli.FormatFloat(p.Value)
				}
			}
			row = append(row, projected)
		}
		rows = append(rows, row)
	}

	fmt.Print(cli.RenderTable(cli.Table{Headers: headers, Rows: rows}))
	printDegreeNotice(d)
	return nil
}

// printDegreeNotice explains a degree that was lowered to fit a short series.
func printDegreeNotice(d model.Dashboard) {
	if !d.Params.Enabled || len(d.Series) == 0 {
		return
	}
	s := d.Series[0]
	if s.Clamped() {
		fmt.Println(cli.RenderMuted(fmt.Sprintf("  Trendline degree %d lowered to %d: only %d months of data.",
			s.RequestedDegree, s.Degree, len(d.Records))))
	}
}
