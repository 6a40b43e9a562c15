package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/tui/components"
	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

const monthColWidth = 9

// newMonthlyTable builds the scrollable month-by-column table. Projected
// months are appended with their fitted values.
func newMonthlyTable(d model.Dashboard, cw, h int) table.Model {
	t := theme.Active

	inner := components.CardInnerWidth(cw)
	n := max(len(d.Tracked), 1)
	colW := max((inner-monthColWidth)/n-2, 8)

	cols := []table.Column{{Title: "Month", Width: monthColWidth}}
	for _, tm := range d.Tracked {
		title := tm.Label
		if lipgloss.Width(title) > colW {
			title = tm.Column
		}
		cols = append(cols, table.Column{Title: title, Width: colW})
	}

	rows := make([]table.Row, 0, len(d.Records)+d.Params.FuturePeriods)
	for _, r := range d.Records {
		row := table.Row{cli.FormatMonthShort(r.YearMonth)}
		for _, tm := range d.Tracked {
			row = append(row, cli.FormatNumber(r.Value(tm.Column)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, projectedRows(d)...)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Foreground(t.Accent).
		BorderForeground(t.Border).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(t.TextPrimary).
		Background(t.SurfaceHover).
		Bold(true)
	styles.Cell = styles.Cell.Foreground(t.TextMuted)

	return table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(h-4, 3)),
		table.WithStyles(styles),
	)
}

func projectedRows(d model.Dashboard) []table.Row {
	if len(d.Series) == 0 {
		return nil
	}
	var rows []table.Row
	ref := d.Series[0]
	for i, p := range ref.Points {
		if !p.Projected {
			continue
		}
		row := table.Row{p.Date.Format("Jan 06") + "*"}
		for _, tm := range d.Tracked {
			s, ok := d.SeriesFor(tm.Column)
			if !ok || i >= len(s.Points) {
				row = append(row, "")
				continue
			}
			row = append(row, cli.FormatFloat(s.Points[i].Value))
		}
		rows = append(rows, row)
	}
	return rows
}

func (a App) renderTableTab(cw int) string {
	title := "Monthly Records"
	if a.params.Enabled && a.params.FuturePeriods > 0 {
		title += "  (* projected)"
	}
	return components.ContentCard(title, a.table.View(), cw)
}
