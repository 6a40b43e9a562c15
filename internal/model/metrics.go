package model

import "time"

// Metric groups used for chart layout.
const (
	GroupCurrentMonth  = "current_month_estimate"
	GroupPreviousMonth = "previous_month_complete"
)

// TrackedMetric maps a snapshot metric key onto a flat MonthlyRecord column.
type TrackedMetric struct {
	Key    string `toml:"key" json:"key"`
	Column string `toml:"column" json:"column"`
	Label  string `toml:"label" json:"label"`
	Group  string `toml:"group,omitempty" json:"group,omitempty"`
}

// DefaultTrackedMetrics is the tracked set used when the config does not override it.
var DefaultTrackedMetrics = []TrackedMetric{
	{Key: "clientcount.current_month_estimate.type.entity", Column: "current_month_estimate_entity", Label: "Entity Estimate", Group: GroupCurrentMonth},
	{Key: "clientcount.current_month_estimate.type.nonentity", Column: "current_month_estimate_nonentity", Label: "Non-Entity Estimate", Group: GroupCurrentMonth},
	{Key: "clientcount.current_month_estimate.type.secret_sync", Column: "current_month_estimate_secret_sync", Label: "Secret Sync Estimate", Group: GroupCurrentMonth},
	{Key: "clientcount.current_month_estimate.type.acme_client", Column: "current_month_estimate_acme_client", Label: "ACME Client Estimate", Group: GroupCurrentMonth},
	{Key: "clientcount.previous_month_complete.type.entity", Column: "previous_month_complete_entity", Label: "Previous Month Entity", Group: GroupPreviousMonth},
	{Key: "clientcount.previous_month_complete.type.nonentity", Column: "previous_month_complete_nonentity", Label: "Previous Month Non-Entity", Group: GroupPreviousMonth},
	{Key: "clientcount.previous_month_complete.type.secret_sync", Column: "previous_month_complete_secret_sync", Label: "Previous Month Secret Sync", Group: GroupPreviousMonth},
	{Key: "clientcount.previous_month_complete.type.acme_client", Column: "previous_month_complete_acme_client", Label: "Previous Month ACME Client", Group: GroupPreviousMonth},
}

// MonthlyRecord is the latest snapshot's tracked values for one calendar month.
type MonthlyRecord struct {
	YearMonth  string           `json:"year_month"`
	SnapshotAt time.Time        `json:"snapshot_at"`
	Values     map[string]int64 `json:"values"`
}

// Value returns the value of a tracked column, 0 if absent.
func (r MonthlyRecord) Value(column string) int64 {
	return r.Values[column]
}

// Point is one (date, value) pair of a projected series.
type Point struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Projected bool      `json:"projected"`
}

// ProjectedSeries is a fitted trendline over the historical months followed by
// the extrapolated future periods.
type ProjectedSeries struct {
	Column          string    `json:"column"`
	RequestedDegree int       `json:"requested_degree"`
	Degree          int       `json:"degree"`
	Coefficients    []float64 `json:"coefficients"` // lowest order first
	Points          []Point   `json:"points"`
}

// Clamped reports whether the fit used a lower degree than requested.
func (p ProjectedSeries) Clamped() bool {
	return p.Degree < p.RequestedDegree
}

// Last returns the final point of the series.
func (p ProjectedSeries) Last() (Point, bool) {
	if len(p.Points) == 0 {
		return Point{}, false
	}
	return p.Points[len(p.Points)-1], true
}

// Dashboard is the complete derived view of one payload under one set of params.
type Dashboard struct {
	Records []MonthlyRecord   `json:"records"`
	Series  []ProjectedSeries `json:"series"`
	Tracked []TrackedMetric   `json:"tracked"`
	Params  TrendParams       `json:"params"`
	Total   int               `json:"total"`
	Dropped int               `json:"dropped"`
}

// Empty reports whether there is nothing to display.
func (d Dashboard) Empty() bool {
	return len(d.Records) == 0
}

// SeriesFor returns the projected series for column.
func (d Dashboard) SeriesFor(column string) (ProjectedSeries, bool) {
	for _, s := range d.Series {
		if s.Column == column {
			return s, true
		}
	}
	return ProjectedSeries{}, false
}

// ColumnValues returns the column's monthly values in record order.
func (d Dashboard) ColumnValues(column string) []float64 {
	vals := make([]float64, len(d.Records))
	for i, r := range d.Records {
		vals[i] = float64(r.Value(column))
	}
	return vals
}
