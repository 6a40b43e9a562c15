package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/snapdash/internal/model"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestReductionRoundTrip(t *testing.T) {
	c := openTestCache(t)
	pst := time.FixedZone("", -8*3600)
	red := Reduction{
		Fingerprint: FingerprintKey(0xdeadbeef),
		Total:       10,
		Dropped:     2,
		Records: []model.MonthlyRecord{
			{YearMonth: "2024-01", SnapshotAt: time.Date(2024, 1, 20, 8, 0, 0, 0, pst), Values: map[string]int64{"a": 1, "b": 2}},
			{YearMonth: "2024-02", SnapshotAt: time.Date(2024, 2, 3, 8, 0, 0, 0, pst), Values: map[string]int64{"a": 3, "b": 0}},
		},
	}
	if err := c.SaveReduction(red); err != nil {
		t.Fatalf("SaveReduction: %v", err)
	}

	got, ok, err := c.LoadReduction(red.Fingerprint)
	if err != nil || !ok {
		t.Fatalf("LoadReduction: ok=%v err=%v", ok, err)
	}
	if got.Total != 10 || got.Dropped != 2 {
		t.Errorf("Total/Dropped = %d/%d, want 10/2", got.Total, got.Dropped)
	}
	if len(got.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(got.Records))
	}
	if got.Records[1].Value("a") != 3 || got.Records[0].Value("b") != 2 {
		t.Errorf("values = %+v", got.Records)
	}
	if !got.Records[0].SnapshotAt.Equal(red.Records[0].SnapshotAt) {
		t.Errorf("SnapshotAt = %v, want %v", got.Records[0].SnapshotAt, red.Records[0].SnapshotAt)
	}
	if got.Records[0].SnapshotAt.Format("2006-01") != "2024-01" {
		t.Error("offset not preserved")
	}

	// Saving again replaces rather than duplicates.
	red.Records = red.Records[:1]
	if err := c.SaveReduction(red); err != nil {
		t.Fatalf("SaveReduction (replace): %v", err)
	}
	got, _, _ = c.LoadReduction(red.Fingerprint)
	if len(got.Records) != 1 {
		t.Errorf("len(Records) after replace = %d, want 1", len(got.Records))
	}

	n, err := c.ReductionCount()
	if err != nil || n != 1 {
		t.Errorf("ReductionCount = %d, %v; want 1", n, err)
	}

	if err := c.DeleteReduction(red.Fingerprint); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.LoadReduction(red.Fingerprint); ok {
		t.Error("reduction still present after delete")
	}
}

func TestLoadReduction_Miss(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.LoadReduction("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected cache miss")
	}
}

func TestUploads(t *testing.T) {
	c := openTestCache(t)
	records := []model.MonthlyRecord{{YearMonth: "2024-01"}, {YearMonth: "2024-06"}}

	for i, src := range []string{"first.json", "second.json", "third.json"} {
		u := UploadFromRecords(src, FingerprintKey(uint64(i)), records, 5, 1)
		if err := c.RecordUpload(u); err != nil {
			t.Fatalf("RecordUpload: %v", err)
		}
	}

	uploads, err := c.Uploads(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 2 {
		t.Fatalf("len(uploads) = %d, want 2", len(uploads))
	}
	if uploads[0].Source != "third.json" {
		t.Errorf("newest upload = %s, want third.json", uploads[0].Source)
	}
	if uploads[0].FirstMonth != "2024-01" || uploads[0].LastMonth != "2024-06" || uploads[0].Months != 2 {
		t.Errorf("upload span = %+v", uploads[0])
	}
	if uploads[0].RecordedAt.IsZero() {
		t.Error("RecordedAt not set")
	}

	all, err := c.Uploads(0)
	if err != nil || len(all) != 3 {
		t.Errorf("Uploads(0) = %d, %v; want 3", len(all), err)
	}
}
