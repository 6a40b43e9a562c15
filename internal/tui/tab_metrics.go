package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/tui/components"
	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

const (
	tabCurrent = iota
	tabPrevious
	tabTable
)

const chartHeight = 8

func groupMetrics(tracked []model.TrackedMetric, group string) []model.TrackedMetric {
	var out []model.TrackedMetric
	for _, tm := range tracked {
		if tm.Group == group || (tm.Group == "" && group == model.GroupCurrentMonth) {
			out = append(out, tm)
		}
	}
	return out
}

// renderGroupTab draws summary cards, a share breakdown and one chart per
// tracked metric of the group.
func (a App) renderGroupTab(group string, cw int) string {
	t := theme.Active
	d := a.dashboard
	metrics := groupMetrics(d.Tracked, group)
	if len(metrics) == 0 {
		return a.renderMessage(cw, "No metrics", "No tracked metric belongs to this group.")
	}

	last := d.Records[len(d.Records)-1]
	var prev *model.MonthlyRecord
	if len(d.Records) > 1 {
		prev = &d.Records[len(d.Records)-2]
	}

	cards := make([]components.Metric, 0, len(metrics))
	var total float64
	for _, tm := range metrics {
		v := last.Value(tm.Column)
		total += float64(v)
		m := components.Metric{Label: tm.Label, Value: cli.FormatNumber(v)}
		if prev != nil {
			m.Delta = cli.FormatDelta(v, prev.Value(tm.Column))
		}
		cards = append(cards, m)
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow(cards, cw))
	b.WriteString("\n")

	// Share of the latest month
	labelW := 0
	for _, tm := range metrics {
		labelW = max(labelW, lipgloss.Width(tm.Label))
	}
	barW := max(components.CardInnerWidth(cw)-labelW-8, 10)
	var shares []string
	for _, tm := range metrics {
		shares = append(shares, components.ShareBar(tm.Label, float64(last.Value(tm.Column)), total, t.GroupColor(group), labelW, barW))
	}
	b.WriteString(components.ContentCard("Share of "+cli.FormatMonth(last.YearMonth), strings.Join(shares, "\n"), cw))
	b.WriteString("\n")

	// Charts, two per row unless the layout is compact
	perRow := 2
	if a.isCompactLayout() {
		perRow = 1
	}
	widths := components.LayoutRow(cw, perRow)
	for i := 0; i < len(metrics); i += perRow {
		var row []string
		for j := 0; j < perRow && i+j < len(metrics); j++ {
			row = append(row, a.metricChartCard(metrics[i+j], group, widths[j]))
		}
		b.WriteString(components.CardRow(row))
		b.WriteString("\n")
	}

	return b.String()
}

func (a App) metricChartCard(tm model.TrackedMetric, group string, outerW int) string {
	t := theme.Active
	d := a.dashboard
	s := components.Series{
		Values: d.ColumnValues(tm.Column),
		Color:  t.GroupColor(group),
	}
	title := tm.Label

	ps, ok := d.SeriesFor(tm.Column)
	if ok && len(ps.Points) > 0 {
		s.Trend = make([]float64, len(ps.Points))
		s.Labels = make([]string, len(ps.Points))
		for i, p := range ps.Points {
			s.Trend[i] = p.Value
			if i < len(d.Records) {
				s.Labels[i] = cli.FormatMonthShort(d.Records[i].YearMonth)[:3]
			} else {
				s.Labels[i] = p.Date.Format("Jan")
			}
		}
		title += fmt.Sprintf("  deg %d", ps.Degree)
		if ps.Clamped() {
			title += fmt.Sprintf(" (of %d)", ps.RequestedDegree)
		}
		if lp, ok := ps.Last(); ok && lp.Projected && !math.IsNaN(lp.Value) {
			title += "  → " + cli.FormatFloat(lp.Value)
		}
	} else {
		s.Labels = make([]string, len(d.Records))
		for i, r := range d.Records {
			s.Labels[i] = cli.FormatMonthShort(r.YearMonth)[:3]
		}
	}

	return components.ContentCard(title, components.BarChart(s, components.CardInnerWidth(outerW), chartHeight), outerW)
}
