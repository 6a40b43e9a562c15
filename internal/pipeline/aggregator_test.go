package pipeline

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/source"
)

const entityKey = "clientcount.current_month_estimate.type.entity"

var entityOnly = []model.TrackedMetric{
	{Key: entityKey, Column: "current_month_estimate_entity", Label: "Entity"},
}

func snap(t *testing.T, idx int, ts string, values map[string]int64) model.Snapshot {
	t.Helper()
	parsed, ok := source.ParseTimestamp(ts)
	if !ok {
		t.Fatalf("bad test timestamp %q", ts)
	}
	s := model.Snapshot{Index: idx, Timestamp: parsed, Metrics: make(map[string]model.MetricValue)}
	for k, v := range values {
		s.Metrics[k] = model.MetricValue{Key: k, Value: v, Mode: "write"}
	}
	return s
}

func TestReduceMonthly_EndToEnd(t *testing.T) {
	doc := []byte(`{"snapshots":[
		{"timestamp":"2024-01-15T00:00:00-08:00","metrics":{"` + entityKey + `":{"key":"` + entityKey + `","value":10,"mode":"write"}}},
		{"timestamp":"2024-01-20T00:00:00-08:00","metrics":{"` + entityKey + `":{"key":"` + entityKey + `","value":15,"mode":"write"}}},
		{"timestamp":"2024-02-10T00:00:00-08:00","metrics":{"` + entityKey + `":{"key":"` + entityKey + `","value":20,"mode":"write"}}}
	]}`)
	result := LoadBytes(doc)
	records := ReduceMonthly(result.Snapshots, entityOnly)

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	want := []struct {
		month string
		value int64
	}{{"2024-01", 15}, {"2024-02", 20}}
	for i, w := range want {
		if records[i].YearMonth != w.month {
			t.Errorf("records[%d].YearMonth = %s, want %s", i, records[i].YearMonth, w.month)
		}
		if got := records[i].Value("current_month_estimate_entity"); got != w.value {
			t.Errorf("records[%d] entity = %d, want %d", i, got, w.value)
		}
	}
}

func TestReduceMonthly_MaxTimestampWins(t *testing.T) {
	// Later input position but earlier instant must lose.
	snaps := []model.Snapshot{
		snap(t, 0, "2024-03-25T12:00:00Z", map[string]int64{entityKey: 99}),
		snap(t, 1, "2024-03-02T12:00:00Z", map[string]int64{entityKey: 1}),
		snap(t, 2, "2024-03-10T12:00:00Z", map[string]int64{entityKey: 5}),
	}
	records := ReduceMonthly(snaps, entityOnly)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if got := records[0].Value("current_month_estimate_entity"); got != 99 {
		t.Errorf("entity = %d, want 99", got)
	}
	if !records[0].SnapshotAt.Equal(snaps[0].Timestamp) {
		t.Errorf("SnapshotAt = %v, want %v", records[0].SnapshotAt, snaps[0].Timestamp)
	}
}

func TestReduceMonthly_TieGoesToLaterInput(t *testing.T) {
	snaps := []model.Snapshot{
		snap(t, 0, "2024-03-25T12:00:00Z", map[string]int64{entityKey: 1}),
		snap(t, 1, "2024-03-25T12:00:00Z", map[string]int64{entityKey: 2}),
	}
	records := ReduceMonthly(snaps, entityOnly)
	if got := records[0].Value("current_month_estimate_entity"); got != 2 {
		t.Errorf("entity = %d, want 2 (later input wins ties)", got)
	}

	// Same instant written in different offsets is still a tie.
	snaps = []model.Snapshot{
		snap(t, 0, "2024-03-25T12:00:00Z", map[string]int64{entityKey: 1}),
		snap(t, 1, "2024-03-25T13:00:00+01:00", map[string]int64{entityKey: 3}),
	}
	records = ReduceMonthly(snaps, entityOnly)
	if got := records[0].Value("current_month_estimate_entity"); got != 3 {
		t.Errorf("entity = %d, want 3", got)
	}
}

func TestReduceMonthly_MissingKeyIsZero(t *testing.T) {
	snaps := []model.Snapshot{snap(t, 0, "2024-05-01T00:00:00Z", nil)}
	records := ReduceMonthly(snaps, model.DefaultTrackedMetrics)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	for _, tm := range model.DefaultTrackedMetrics {
		v, ok := records[0].Values[tm.Column]
		if !ok {
			t.Errorf("column %s missing from record", tm.Column)
		}
		if v != 0 {
			t.Errorf("%s = %d, want 0", tm.Column, v)
		}
	}
}

func TestReduceMonthly_MalformedTimestampIsolated(t *testing.T) {
	good := []byte(`{"snapshots":[
		{"timestamp":"2024-01-20T00:00:00Z","metrics":{"` + entityKey + `":{"value":7}}},
		{"timestamp":"2024-02-20T00:00:00Z","metrics":{"` + entityKey + `":{"value":8}}}
	]}`)
	withBad := []byte(`{"snapshots":[
		{"timestamp":"2024-01-20T00:00:00Z","metrics":{"` + entityKey + `":{"value":7}}},
		{"timestamp":"garbage","metrics":{"` + entityKey + `":{"value":1000}}},
		{"timestamp":"2024-02-20T00:00:00Z","metrics":{"` + entityKey + `":{"value":8}}}
	]}`)

	a := ReduceMonthly(LoadBytes(good).Snapshots, entityOnly)
	loaded := LoadBytes(withBad)
	b := ReduceMonthly(loaded.Snapshots, entityOnly)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("malformed entry changed the reduction:\n got %+v\nwant %+v", b, a)
	}
	if loaded.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", loaded.Dropped)
	}
}

func TestReduceMonthly_Idempotent(t *testing.T) {
	snaps := []model.Snapshot{
		snap(t, 0, "2024-01-05T00:00:00Z", map[string]int64{entityKey: 4}),
		snap(t, 1, "2024-01-25T00:00:00Z", map[string]int64{entityKey: 6}),
		snap(t, 2, "2024-02-05T00:00:00Z", map[string]int64{entityKey: 9}),
	}
	first := ReduceMonthly(snaps, entityOnly)

	// Feed the winners back in as snapshots.
	var again []model.Snapshot
	for i, r := range first {
		again = append(again, model.Snapshot{
			Index:     i,
			Timestamp: r.SnapshotAt,
			Metrics: map[string]model.MetricValue{
				entityKey: {Key: entityKey, Value: r.Value("current_month_estimate_entity")},
			},
		})
	}
	second := ReduceMonthly(again, entityOnly)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reduction not idempotent:\n first %+v\nsecond %+v", first, second)
	}
}

func TestReduceMonthly_SortedAndEmpty(t *testing.T) {
	if got := ReduceMonthly(nil, entityOnly); len(got) != 0 {
		t.Errorf("empty input gave %d records", len(got))
	}

	snaps := []model.Snapshot{
		snap(t, 0, "2024-12-01T00:00:00Z", nil),
		snap(t, 1, "2023-06-01T00:00:00Z", nil),
		snap(t, 2, "2024-02-01T00:00:00Z", nil),
	}
	records := ReduceMonthly(snaps, entityOnly)
	var months []string
	for _, r := range records {
		months = append(months, r.YearMonth)
	}
	want := []string{"2023-06", "2024-02", "2024-12"}
	if !reflect.DeepEqual(months, want) {
		t.Errorf("months = %v, want %v", months, want)
	}
}

func TestBuild_Dashboard(t *testing.T) {
	snaps := []model.Snapshot{
		snap(t, 0, "2024-01-05T00:00:00Z", map[string]int64{entityKey: 1}),
		snap(t, 1, "2024-02-05T00:00:00Z", map[string]int64{entityKey: 3}),
		snap(t, 2, "2024-03-05T00:00:00Z", map[string]int64{entityKey: 5}),
	}
	params := model.TrendParams{FuturePeriods: 2, Degree: 1, Enabled: true}
	d := Build(snaps, entityOnly, params)

	if len(d.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(d.Records))
	}
	s, ok := d.SeriesFor("current_month_estimate_entity")
	if !ok {
		t.Fatal("missing series")
	}
	if len(s.Points) != 5 {
		t.Fatalf("len(Points) = %d, want 5", len(s.Points))
	}
	last, _ := s.Last()
	if math.Abs(last.Value-9) > 1e-9 {
		t.Errorf("last value = %f, want 9", last.Value)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !last.Date.Equal(want) {
		t.Errorf("last date = %v, want %v", last.Date, want)
	}

	params.Enabled = false
	if d := Build(snaps, entityOnly, params); len(d.Series) != 0 {
		t.Errorf("disabled trend produced %d series", len(d.Series))
	}
}

func TestFilterTrackedAndGroup(t *testing.T) {
	got := FilterTracked(model.DefaultTrackedMetrics, []string{"previous_month_complete_entity", "current_month_estimate_entity"})
	if len(got) != 2 || got[0].Column != "current_month_estimate_entity" {
		t.Errorf("FilterTracked = %+v", got)
	}
	if got := FilterTracked(model.DefaultTrackedMetrics, nil); len(got) != 8 {
		t.Errorf("empty filter returned %d metrics, want 8", len(got))
	}
	if got := FilterGroup(model.DefaultTrackedMetrics, model.GroupPreviousMonth); len(got) != 4 {
		t.Errorf("FilterGroup = %d metrics, want 4", len(got))
	}
}
