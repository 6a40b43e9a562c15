// Package chart renders monthly metric columns and their trendlines as PNG images.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
)

var (
	// ErrNoData is returned when the dashboard has no monthly records.
	ErrNoData = errors.New("nothing to display")
	// ErrUnknownColumn is returned for a column that is not tracked.
	ErrUnknownColumn = errors.New("unknown column")
)

// Options sets the image size.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions is 960x480.
func DefaultOptions() Options {
	return Options{Width: 960, Height: 480}
}

var (
	colorActual    = drawing.ColorFromHex("4385be")
	colorTrend     = drawing.ColorFromHex("da702c")
	colorProjected = drawing.ColorFromHex("d14d41")
)

// Render writes a PNG of one tracked column: monthly values as points and
// lines, the fitted trendline, and the projected months dashed.
func Render(w io.Writer, d model.Dashboard, column string, opts Options) error {
	tm, ok := lookup(d.Tracked, column)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if d.Empty() {
		return ErrNoData
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions()
	}

	var times []time.Time
	for _, r := range d.Records {
		start, ok := pipeline.MonthStart(r.YearMonth)
		if !ok {
			return fmt.Errorf("bad month %q", r.YearMonth)
		}
		times = append(times, start)
	}
	values := d.ColumnValues(column)

	series := []gochart.Series{
		padded(gochart.TimeSeries{
			Name:    tm.Label,
			XValues: times,
			YValues: values,
			Style: gochart.Style{
				StrokeColor: colorActual,
				StrokeWidth: 2,
				DotColor:    colorActual,
				DotWidth:    4,
			},
		}),
	}

	if ps, ok := d.SeriesFor(column); ok && len(ps.Points) > 0 {
		var fitX, projX []time.Time
		var fitY, projY []float64
		for i, p := range ps.Points {
			if !p.Projected {
				fitX = append(fitX, p.Date)
				fitY = append(fitY, p.Value)
				continue
			}
			// Start the projected segment at the last fitted point so the lines join.
			if len(projX) == 0 && i > 0 {
				projX = append(projX, ps.Points[i-1].Date)
				projY = append(projY, ps.Points[i-1].Value)
			}
			projX = append(projX, p.Date)
			projY = append(projY, p.Value)
		}
		series = append(series, padded(gochart.TimeSeries{
			Name:    fmt.Sprintf("Trend (degree %d)", ps.Degree),
			XValues: fitX,
			YValues: fitY,
			Style:   gochart.Style{StrokeColor: colorTrend, StrokeWidth: 2},
		}))
		if len(projX) > 0 {
			series = append(series, gochart.TimeSeries{
				Name:    "Projected",
				XValues: projX,
				YValues: projY,
				Style: gochart.Style{
					StrokeColor:     colorProjected,
					StrokeWidth:     2,
					StrokeDashArray: []float64{6, 4},
				},
			})
		}
	}

	ch := gochart.Chart{
		Title:      tm.Label,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:           "Month",
			ValueFormatter: gochart.TimeValueFormatterWithFormat("2006-01"),
		},
		YAxis:  gochart.YAxis{Name: "Clients"},
		Series: series,
	}
	if r := flatRange(series); r != nil {
		ch.YAxis.Range = r
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("rendering %s: %w", column, err)
	}
	return nil
}

// WriteDir renders every tracked column into dir as <column>.png and returns
// the written paths.
func WriteDir(dir string, d model.Dashboard, opts Options) ([]string, error) {
	if d.Empty() {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating chart dir: %w", err)
	}

	var paths []string
	for _, tm := range d.Tracked {
		path := filepath.Join(dir, tm.Column+".png")
		if err := writeFile(path, d, tm.Column, opts); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, d model.Dashboard, column string, opts Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Render(f, d, column, opts)
}

func lookup(tracked []model.TrackedMetric, column string) (model.TrackedMetric, bool) {
	for _, tm := range tracked {
		if tm.Column == column {
			return tm, true
		}
	}
	return model.TrackedMetric{}, false
}

// flatRange returns an explicit y range when every value is equal, since
// go-chart rejects a zero-height range. Otherwise it returns nil.
func flatRange(series []gochart.Series) *gochart.ContinuousRange {
	first := true
	var lo, hi float64
	for _, s := range series {
		ts, ok := s.(gochart.TimeSeries)
		if !ok {
			continue
		}
		for _, y := range ts.YValues {
			if first {
				lo, hi = y, y
				first = false
			}
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
	}
	if first || hi > lo {
		return nil
	}
	pad := math.Max(1, math.Abs(hi)*0.1)
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// padded widens a single-point series to two points one month apart, since
// go-chart cannot derive an axis range from one x value.
func padded(ts gochart.TimeSeries) gochart.TimeSeries {
	if len(ts.XValues) != 1 {
		return ts
	}
	ts.XValues = []time.Time{ts.XValues[0], ts.XValues[0].AddDate(0, 1, 0)}
	ts.YValues = []float64{ts.YValues[0], ts.YValues[0]}
	return ts
}
