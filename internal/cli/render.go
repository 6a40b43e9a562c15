package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorBlue      = lipgloss.Color("#4385BE")
	ColorPurple    = lipgloss.Color("#8B7EC8")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	actualStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	projectedStyle = lipgloss.NewStyle().
			Foreground(ColorPurple)

	trendStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderWarning renders a one-line warning.
func RenderWarning(msg string) string {
	return "  " + warnStyle.Render("! "+msg)
}

// RenderMuted renders secondary text.
func RenderMuted(msg string) string {
	return mutedStyle.Render(msg)
}

// RenderTable renders a bordered table with headers and rows. The first
// column is left-aligned; the rest are right-aligned. A row holding the
// single cell "---" renders as a separator.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 {
		numCols = len(t.Rows[0])
	}

	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
	} else {
		for i, h := range t.Headers {
			widths[i] = max(widths[i], lipgloss.Width(h))
		}
		for _, row := range t.Rows {
			for i, cell := range row {
				if i < numCols && !isSeparator(row) {
					widths[i] = max(widths[i], lipgloss.Width(cell))
				}
			}
		}
	}

	var b strings.Builder

	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	b.WriteString(rule("╭", "┬", "╮", widths))

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(pad(h, widths[i], i == 0)))
			b.WriteString(dimStyle.Render("│"))
		}
		b.WriteString("\n")
		b.WriteString(rule("├", "┼", "┤", widths))
	}

	for _, row := range t.Rows {
		if isSeparator(row) {
			b.WriteString(rule("├", "┼", "┤", widths))
			continue
		}
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(valueStyle.Render(pad(cell, widths[i], i == 0)))
			b.WriteString(dimStyle.Render("│"))
		}
		b.WriteString("\n")
	}

	b.WriteString(rule("╰", "┴", "╯", widths))
	return b.String()
}

func isSeparator(row []string) bool {
	return len(row) == 1 && row[0] == "---"
}

func pad(cell string, width int, left bool) string {
	gap := max(width-lipgloss.Width(cell), 0)
	if left {
		return " " + cell + strings.Repeat(" ", gap) + " "
	}
	return " " + strings.Repeat(" ", gap) + cell + " "
}

func rule(l, mid, r string, widths []int) string {
	var b strings.Builder
	b.WriteString(l)
	for i, w := range widths {
		b.WriteString(strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			b.WriteString(mid)
		}
	}
	b.WriteString(r)
	return dimStyle.Render(b.String()) + "\n"
}

// RenderProgressBar renders a simple text progress bar.
func RenderProgressBar(current, total int, width int) string {
	if total <= 0 {
		return ""
	}

	pct := min(float64(current)/float64(total), 1)
	filled := min(int(pct*float64(width)), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s/%s",
		mutedStyle.Render(bar),
		FormatNumber(int64(current)),
		FormatNumber(int64(total)),
	)
}

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline generates a unicode block sparkline scaled between the
// series minimum and maximum.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo

	var b strings.Builder
	for _, v := range values {
		idx := len(sparkBlocks) / 2
		if span > 0 {
			idx = int(math.Round((v - lo) / span * float64(len(sparkBlocks)-1)))
		}
		idx = max(0, min(idx, len(sparkBlocks)-1))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// BarRow is one month in a horizontal bar chart. HasActual is false for
// projected months; Trend is NaN when there is no trendline.
type BarRow struct {
	Label     string
	Actual    float64
	HasActual bool
	Trend     float64
}

// RenderBarChart renders one horizontal bar per row with the trend value
// marked as ┃ on the same scale. Projected rows draw only the marker.
func RenderBarChart(rows []BarRow, width int) string {
	if len(rows) == 0 {
		return ""
	}
	width = max(width, 10)

	peak := 0.0
	labelW := 0
	for _, r := range rows {
		if r.HasActual {
			peak = math.Max(peak, r.Actual)
		}
		if !math.IsNaN(r.Trend) {
			peak = math.Max(peak, r.Trend)
		}
		labelW = max(labelW, lipgloss.Width(r.Label))
	}
	if peak <= 0 {
		peak = 1
	}
	scale := func(v float64) int {
		if v <= 0 || math.IsNaN(v) {
			return 0
		}
		return min(int(math.Round(v/peak*float64(width))), width)
	}

	var b strings.Builder
	for _, r := range rows {
		cells := make([]rune, width+1)
		for i := range cells {
			cells[i] = ' '
		}
		barLen := 0
		if r.HasActual {
			barLen = scale(r.Actual)
			for i := 0; i < barLen; i++ {
				cells[i] = '█'
			}
		}
		mark := -1
		if !math.IsNaN(r.Trend) {
			mark = scale(r.Trend)
			cells[mark] = '┃'
		}

		b.WriteString("  ")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%-*s", labelW, r.Label)))
		b.WriteString(" ")
		for i, c := range cells {
			switch {
			case i == mark:
				b.WriteString(trendStyle.Render(string(c)))
			case i < barLen:
				b.WriteString(actualStyle.Render(string(c)))
			default:
				b.WriteRune(c)
			}
		}
		b.WriteString(" ")
		switch {
		case r.HasActual:
			b.WriteString(valueStyle.Render(FormatFloat(r.Actual)))
		case !math.IsNaN(r.Trend):
			b.WriteString(projectedStyle.Render(FormatFloat(r.Trend) + " (projected)"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
