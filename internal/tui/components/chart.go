package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		peak = math.Max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		idx = max(0, min(idx, len(blocks)-1))
		buf.WriteRune(blocks[idx])
	}

	return lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(buf.String())
}

// Series is the input to BarChart. Trend may be longer than Values; the
// extra entries are projected months and draw only a trend marker. A nil
// Trend draws bars alone.
type Series struct {
	Values []float64
	Trend  []float64
	Labels []string // one per column (len(Trend) when longer than Values)
	Color  lipgloss.Color
}

// Columns returns the number of chart columns.
func (s Series) Columns() int {
	return max(len(s.Values), len(s.Trend))
}

// BarChart renders vertical bars for actual values with the trendline drawn
// as ━ markers in the row containing each fitted value.
func BarChart(s Series, width, height int) string {
	n := s.Columns()
	if n == 0 {
		return ""
	}
	if width < 15 || height < 3 {
		return Sparkline(s.Values, s.Color)
	}

	t := theme.Active

	maxVal := 0.0
	for _, v := range s.Values {
		maxVal = math.Max(maxVal, v)
	}
	for _, v := range s.Trend {
		maxVal = math.Max(maxVal, v)
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	// Y-axis: compute tick step and ceiling
	tickStep := chartTickStep(maxVal)
	maxIntervals := max(height/2, 2)
	for int(math.Ceil(maxVal/tickStep)) > maxIntervals {
		tickStep *= 2
	}
	ceiling := math.Ceil(maxVal/tickStep) * tickStep
	numIntervals := max(int(math.Round(ceiling/tickStep)), 1)

	rowsPerTick := max(height/numIntervals, 2)
	chartH := rowsPerTick * numIntervals

	yLabelW := max(len(formatChartLabel(ceiling))+1, 4)
	tickLabels := make(map[int]string)
	for i := 1; i <= numIntervals; i++ {
		tickLabels[i*rowsPerTick] = formatChartLabel(tickStep * float64(i))
	}

	chartW := max(width-yLabelW-1, 5)

	gap := 1
	if n <= 1 {
		gap = 0
	}
	barW := chartW
	if n > 1 {
		barW = (chartW - (n - 1)) / n
	}
	barW = max(1, min(barW, 6))
	axisLen := n*barW + max(0, n-1)*gap

	blocks := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(s.Color).Background(t.Surface)
	trendStyle := lipgloss.NewStyle().Foreground(t.Trend()).Background(t.Surface).Bold(true)
	projStyle := lipgloss.NewStyle().Foreground(t.Projected()).Background(t.Surface).Bold(true)
	blankStyle := lipgloss.NewStyle().Background(t.Surface)

	// The row holding each trend value, or 0 for none.
	trendRow := make([]int, n)
	for i := 0; i < n && i < len(s.Trend); i++ {
		v := s.Trend[i]
		if v < 0 || math.IsNaN(v) {
			continue
		}
		trendRow[i] = max(1, min(int(math.Ceil(v/ceiling*float64(chartH))), chartH))
	}

	var b strings.Builder
	for row := chartH; row >= 1; row-- {
		rowTop := ceiling * float64(row) / float64(chartH)
		rowBottom := ceiling * float64(row-1) / float64(chartH)

		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, tickLabels[row])))
		b.WriteString(axisStyle.Render("│"))

		for i := 0; i < n; i++ {
			if i > 0 && gap > 0 {
				b.WriteString(blankStyle.Render(strings.Repeat(" ", gap)))
			}
			if trendRow[i] == row {
				style := trendStyle
				if i >= len(s.Values) {
					style = projStyle
				}
				b.WriteString(style.Render(strings.Repeat("━", barW)))
				continue
			}
			if i >= len(s.Values) {
				b.WriteString(blankStyle.Render(strings.Repeat(" ", barW)))
				continue
			}
			v := s.Values[i]
			switch {
			case v >= rowTop:
				b.WriteString(barStyle.Render(strings.Repeat("█", barW)))
			case v > rowBottom:
				frac := (v - rowBottom) / (rowTop - rowBottom)
				idx := max(1, min(int(frac*8), 8))
				b.WriteString(barStyle.Render(strings.Repeat(string(blocks[idx]), barW)))
			default:
				b.WriteString(blankStyle.Render(strings.Repeat(" ", barW)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, "0")))
	b.WriteString(axisStyle.Render("└"))
	b.WriteString(axisStyle.Render(strings.Repeat("─", axisLen)))

	if len(s.Labels) == n {
		b.WriteString("\n")
		b.WriteString(blankStyle.Render(strings.Repeat(" ", yLabelW+1)))
		b.WriteString(axisStyle.Render(axisLabels(s.Labels, barW, gap, axisLen)))
	}

	return b.String()
}

// axisLabels spaces labels under their bars, skipping any that would collide.
func axisLabels(labels []string, barW, gap, axisLen int) string {
	buf := []rune(strings.Repeat(" ", axisLen))
	n := len(labels)
	labelStep := max(1, (n*8)/(axisLen+1))

	lastEnd := -1
	for i := 0; i < n; i += labelStep {
		pos := i * (barW + gap)
		lbl := []rune(labels[i])
		if pos <= lastEnd || pos >= axisLen {
			continue
		}
		end := min(pos+len(lbl), axisLen)
		if end-pos < 3 {
			continue
		}
		copy(buf[pos:end], lbl[:end-pos])
		lastEnd = end
	}
	return strings.TrimRight(string(buf), " ")
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	switch {
	case v >= 1e6:
		if v == math.Trunc(v/1e6)*1e6 {
			return fmt.Sprintf("%.0fM", v/1e6)
		}
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		if v == math.Trunc(v/1e3)*1e3 {
			return fmt.Sprintf("%.0fk", v/1e3)
		}
		return fmt.Sprintf("%.1fk", v/1e3)
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
