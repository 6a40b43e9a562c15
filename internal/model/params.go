package model

// Trend parameter bounds.
const (
	MinDegree        = 1
	MaxDegree        = 4
	DefaultDegree    = 2
	MaxFuturePeriods = 120
)

// TrendParams controls trendline fitting and projection.
type TrendParams struct {
	FuturePeriods int  `json:"num_future_periods"`
	Degree        int  `json:"trendline_degree"`
	Enabled       bool `json:"show_trendline"`
}

// DefaultTrendParams returns zero future periods, degree 2, trendline shown.
func DefaultTrendParams() TrendParams {
	return TrendParams{FuturePeriods: 0, Degree: DefaultDegree, Enabled: true}
}

// Normalize clamps out-of-range values to the nearest bound.
func (p TrendParams) Normalize() TrendParams {
	if p.FuturePeriods < 0 {
		p.FuturePeriods = 0
	}
	if p.FuturePeriods > MaxFuturePeriods {
		p.FuturePeriods = MaxFuturePeriods
	}
	if p.Degree < MinDegree {
		p.Degree = MinDegree
	}
	if p.Degree > MaxDegree {
		p.Degree = MaxDegree
	}
	return p
}

// NextDegree cycles 1 -> 2 -> 3 -> 4 -> 1.
func (p TrendParams) NextDegree() TrendParams {
	p.Degree++
	if p.Degree > MaxDegree {
		p.Degree = MinDegree
	}
	return p
}
