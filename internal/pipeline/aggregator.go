// Package pipeline reduces snapshots to monthly records, fits trendlines,
// and orchestrates payload loading and caching.
package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/snapdash/internal/model"
)

// ReduceMonthly groups snapshots by calendar month and keeps the latest snapshot
// of each month, flattened to the tracked columns. Snapshots are expected in
// input order: when two share the maximum timestamp, the later one wins.
// Missing metric keys read as 0. Records are sorted by month ascending.
func ReduceMonthly(snapshots []model.Snapshot, tracked []model.TrackedMetric) []model.MonthlyRecord {
	if len(snapshots) == 0 {
		return nil
	}

	latest := make(map[string]model.Snapshot)
	for _, s := range snapshots {
		month := s.YearMonth()
		cur, ok := latest[month]
		if !ok || !s.Timestamp.Before(cur.Timestamp) {
			latest[month] = s
		}
	}

	records := make([]model.MonthlyRecord, 0, len(latest))
	for month, s := range latest {
		values := make(map[string]int64, len(tracked))
		for _, tm := range tracked {
			values[tm.Column] = s.Value(tm.Key)
		}
		records = append(records, model.MonthlyRecord{
			YearMonth:  month,
			SnapshotAt: s.Timestamp,
			Values:     values,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].YearMonth < records[j].YearMonth
	})
	return records
}

// MonthStart returns day 1 (UTC) of the record's month.
func MonthStart(yearMonth string) (time.Time, bool) {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Build reduces the snapshots and projects every tracked column.
func Build(snapshots []model.Snapshot, tracked []model.TrackedMetric, params model.TrendParams) model.Dashboard {
	records := ReduceMonthly(snapshots, tracked)
	return BuildFromRecords(records, tracked, params)
}

// BuildFromRecords projects every tracked column of already-reduced records.
func BuildFromRecords(records []model.MonthlyRecord, tracked []model.TrackedMetric, params model.TrendParams) model.Dashboard {
	params = params.Normalize()
	d := model.Dashboard{
		Records: records,
		Tracked: tracked,
		Params:  params,
	}
	if !params.Enabled || len(records) == 0 {
		return d
	}

	start, ok := MonthStart(records[0].YearMonth)
	if !ok {
		return d
	}
	for _, tm := range tracked {
		d.Series = append(d.Series, Project(tm.Column, d.ColumnValues(tm.Column), start, params))
	}
	return d
}

// FilterTracked returns the tracked metrics whose column is in columns,
// preserving tracked order. An empty filter returns tracked unchanged.
func FilterTracked(tracked []model.TrackedMetric, columns []string) []model.TrackedMetric {
	if len(columns) == 0 {
		return tracked
	}
	want := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		want[c] = struct{}{}
	}
	var out []model.TrackedMetric
	for _, tm := range tracked {
		if _, ok := want[tm.Column]; ok {
			out = append(out, tm)
		}
	}
	return out
}

// FilterGroup returns the tracked metrics belonging to group.
func FilterGroup(tracked []model.TrackedMetric, group string) []model.TrackedMetric {
	var out []model.TrackedMetric
	for _, tm := range tracked {
		if tm.Group == group {
			out = append(out, tm)
		}
	}
	return out
}
