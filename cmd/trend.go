package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
)

var flagTrendColumns []string

var trendCmd = &cobra.Command{
	Use:   "trend [payload...]",
	Short: "Fitted and projected values per tracked metric",
	RunE:  runTrend,
}

func init() {
	trendCmd.Flags().StringSliceVarP(&flagTrendColumns, "column", "c", nil, "Only these columns (default: all tracked)")
	rootCmd.AddCommand(trendCmd)
}

func runTrend(cmd *cobra.Command, args []string) error {
	d, ok, err := loadDashboard(cmd, args)
	if err != nil || !ok {
		return err
	}
	if !d.Params.Enabled {
		fmt.Println("\n  Trendlines are disabled (--no-trend).")
		return nil
	}

	tracked := d.Tracked
	if len(flagTrendColumns) > 0 {
		tracked = pipeline.FilterTracked(tracked, flagTrendColumns)
		if len(tracked) == 0 {
			return fmt.Errorf("none of %v is a tracked column", flagTrendColumns)
		}
	}

	fmt.Println()
	for _, tm := range tracked {
		s, ok := d.SeriesFor(tm.Column)
		if !ok {
			continue
		}
		fmt.Print(cli.RenderTable(trendTable(tm, s, d.Records)))
		fmt.Printf("  degree %d  %s\n\n", s.Degree, cli.RenderSparkline(seriesValues(s)))
	}
	printDegreeNotice(d)
	return nil
}

// trendTable lists the fitted value beside each month's actual. Historical
// rows are labelled by their record so gaps in the data stay visible.
func trendTable(tm model.TrackedMetric, s model.ProjectedSeries, records []model.MonthlyRecord) cli.Table {
	rows := make([][]string, 0, len(s.Points))
	for i, p := range s.Points {
		row := []string{p.Date.Format("2006-01"), "", cli.FormatFloat(p.Value), ""}
		if i < len(records) {
			row[0] = records[i].YearMonth
			row[1] = cli.FormatNumber(records[i].Value(tm.Column))
		}
		if p.Projected {
			row[3] = "projected"
		}
		rows = append(rows, row)
	}
	return cli.Table{
		Title:   tm.Label,
		Headers: []string{"Month", "Actual", "Trend", ""},
		Rows:    rows,
	}
}

func seriesValues(s model.ProjectedSeries) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
