package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

func TestBarChartTrendOverlay(t *testing.T) {
	s := Series{
		Values: []float64{10, 20, 30},
		Trend:  []float64{10, 20, 30, 40, 50},
		Labels: []string{"Jan", "Feb", "Mar", "Apr", "May"},
		Color:  theme.Active.Blue,
	}
	out := ansi.Strip(BarChart(s, 60, 10))
	if !strings.Contains(out, "━") {
		t.Fatal("chart has no trend markers")
	}
	lines := strings.Split(out, "\n")
	top := lines[0]
	if !strings.Contains(top, "━") {
		t.Errorf("top row should hold the last projected marker: %q", top)
	}
	if strings.Contains(top, "█") {
		t.Errorf("no actual bar reaches the top row: %q", top)
	}
	if !strings.Contains(lines[len(lines)-1], "Jan") {
		t.Errorf("missing axis labels: %q", lines[len(lines)-1])
	}
}

func TestBarChartNarrowFallsBackToSparkline(t *testing.T) {
	out := ansi.Strip(BarChart(Series{Values: []float64{1, 2, 3}}, 10, 10))
	if strings.Contains(out, "\n") {
		t.Errorf("narrow chart should be a single sparkline line, got %q", out)
	}
	if BarChart(Series{}, 60, 10) != "" {
		t.Error("empty series should render nothing")
	}
}

func TestChartTickStep(t *testing.T) {
	cases := map[float64]float64{0: 1, 5: 1, 100: 20, 1000: 200, 4000: 500}
	for in, want := range cases {
		if got := chartTickStep(in); got != want {
			t.Errorf("chartTickStep(%v) = %v, want %v", in, got, want)
		}
	}
}
