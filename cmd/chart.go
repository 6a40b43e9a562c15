package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/chart"
	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
)

var (
	flagChartPNG    string
	flagChartWidth  int
	flagChartHeight int
	flagChartBar    int
	flagChartGroup  string
)

var chartCmd = &cobra.Command{
	Use:   "chart [payload...]",
	Short: "Bar charts per tracked metric with trend overlay",
	Long: "Draws one terminal bar chart per tracked metric. With --png DIR, writes\n" +
		"<column>.png for each metric instead.",
	RunE: runChart,
}

func init() {
	chartCmd.Flags().StringVar(&flagChartPNG, "png", "", "Write PNG charts to this directory")
	chartCmd.Flags().IntVar(&flagChartWidth, "width", 960, "PNG width in pixels")
	chartCmd.Flags().IntVar(&flagChartHeight, "height", 480, "PNG height in pixels")
	chartCmd.Flags().IntVar(&flagChartBar, "bar-width", 40, "Terminal bar width in cells")
	chartCmd.Flags().StringVar(&flagChartGroup, "group", "", "Only chart one metric group")
	rootCmd.AddCommand(chartCmd)
}

func runChart(cmd *cobra.Command, args []string) error {
	d, ok, err := loadDashboard(cmd, args)
	if err != nil || !ok {
		return err
	}
	if flagChartGroup != "" {
		d.Tracked = pipeline.FilterGroup(d.Tracked, flagChartGroup)
	}

	if flagChartPNG != "" {
		written, err := chart.WriteDir(flagChartPNG, d, chart.Options{Width: flagChartWidth, Height: flagChartHeight})
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Printf("  wrote %s\n", path)
		}
		return nil
	}

	fmt.Println()
	group := ""
	for _, tm := range d.Tracked {
		if tm.Group != group {
			group = tm.Group
			fmt.Println(cli.RenderTitle(groupTitle(group)))
		}
		fmt.Printf("\n  %s\n", tm.Label)
		fmt.Print(cli.RenderBarChart(barRows(d, tm.Column), flagChartBar))
	}
	printDegreeNotice(d)
	return nil
}

func groupTitle(group string) string {
	switch group {
	case model.GroupCurrentMonth:
		return "CURRENT MONTH ESTIMATES"
	case model.GroupPreviousMonth:
		return "PREVIOUS MONTH COMPLETE"
	case "":
		return "TRACKED METRICS"
	default:
		return group
	}
}

// barRows lines up actual values with the trendline, including projected months.
func barRows(d model.Dashboard, column string) []cli.BarRow {
	actual := d.ColumnValues(column)
	s, hasTrend := d.SeriesFor(column)

	n := len(actual)
	if hasTrend {
		n = max(n, len(s.Points))
	}
	rows := make([]cli.BarRow, n)
	for i := range rows {
		rows[i].Trend = math.NaN()
		if i < len(actual) {
			rows[i].Label = cli.FormatMonthShort(d.Records[i].YearMonth)
			rows[i].Actual = actual[i]
			rows[i].HasActual = true
		}
		if hasTrend && i < len(s.Points) {
			rows[i].Trend = s.Points[i].Value
			if !rows[i].HasActual {
				rows[i].Label = s.Points[i].Date.Format("Jan 06")
			}
		}
	}
	return rows
}
