package pipeline

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/theirongolddev/snapdash/internal/model"
)

// EffectiveDegree is the degree actually fitted to n points: the requested
// degree clamped to 1..4, then to n-1 so the system is never underdetermined.
func EffectiveDegree(requested, n int) int {
	d := model.TrendParams{Degree: requested}.Normalize().Degree
	if n-1 < d {
		d = n - 1
	}
	if d < 0 {
		d = 0
	}
	return d
}

// FitPolynomial least-squares fits y over x = 0..len(y)-1 and returns the
// coefficients lowest order first.
func FitPolynomial(y []float64, degree int) ([]float64, error) {
	n := len(y)
	if n == 0 {
		return nil, errors.New("no points to fit")
	}
	if degree < 0 || degree > n-1 {
		return nil, fmt.Errorf("degree %d out of range for %d points", degree, n)
	}

	// Fit on x scaled to [0, 1] to keep the Vandermonde matrix well conditioned.
	scale := 1.0
	if n > 1 {
		scale = float64(n - 1)
	}

	cols := degree + 1
	a := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / scale
		p := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, p)
			p *= x
		}
	}
	b := mat.NewDense(n, 1, append([]float64(nil), y...))

	var coef mat.Dense
	if err := coef.Solve(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("solving least squares: %w", err)
		}
	}

	out := make([]float64, cols)
	div := 1.0
	for j := 0; j < cols; j++ {
		out[j] = coef.At(j, 0) / div
		div *= scale
	}
	return out, nil
}

// EvalPolynomial evaluates coefficients (lowest order first) at x.
func EvalPolynomial(coef []float64, x float64) float64 {
	v := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		v = v*x + coef[i]
	}
	return v
}

// Project fits a trendline to values and extends it params.FuturePeriods
// months forward. Point i is dated start advanced by i months, where start is
// the first month of the data (day 1, UTC). The result has len(values) +
// FuturePeriods points, or none when the trendline is disabled or values is
// empty.
func Project(column string, values []float64, start time.Time, params model.TrendParams) model.ProjectedSeries {
	params = params.Normalize()
	series := model.ProjectedSeries{
		Column:          column,
		RequestedDegree: params.Degree,
	}
	n := len(values)
	if !params.Enabled || n == 0 {
		return series
	}

	series.Degree = EffectiveDegree(params.Degree, n)
	coef, err := FitPolynomial(values, series.Degree)
	if err != nil {
		// Only reachable on a numerically singular system; fall back to the mean.
		series.Degree = 0
		coef = []float64{mean(values)}
	}
	series.Coefficients = coef

	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	total := n + params.FuturePeriods
	series.Points = make([]model.Point, total)
	for i := 0; i < total; i++ {
		series.Points[i] = model.Point{
			Date:      start.AddDate(0, i, 0),
			Value:     EvalPolynomial(coef, float64(i)),
			Projected: i >= n,
		}
	}
	return series
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
