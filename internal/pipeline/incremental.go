package pipeline

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/store"
)

// CachedLoadResult is a reduction loaded either from the cache or from a fresh parse.
type CachedLoadResult struct {
	Records     []model.MonthlyRecord
	Total       int
	Dropped     int
	TotalFiles  int
	FileErrors  int
	NotJSON     int
	Errors      []error
	Fingerprint string
	CacheHit    bool
}

// NoData reports whether every input failed to parse as JSON.
func (r *CachedLoadResult) NoData() bool {
	return r.TotalFiles > 0 && r.NotJSON == r.TotalFiles
}

// Build projects the cached records.
func (r *CachedLoadResult) Build(tracked []model.TrackedMetric, params model.TrendParams) model.Dashboard {
	d := BuildFromRecords(r.Records, tracked, params)
	d.Total = r.Total
	d.Dropped = r.Dropped
	return d
}

// ReductionKey combines a payload fingerprint with the tracked metric set,
// since the same payload reduces differently under a different set.
func ReductionKey(payload uint64, tracked []model.TrackedMetric) string {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], payload)
	_, _ = h.Write(buf[:])
	for _, tm := range tracked {
		_, _ = h.WriteString(tm.Key)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(tm.Column)
		_, _ = h.WriteString("\x00")
	}
	return store.FingerprintKey(h.Sum64())
}

// LoadWithCache parses the payloads and returns their monthly reduction,
// reusing a cached reduction when the combined fingerprint has been seen.
// Cache errors are logged and never fail the load.
func LoadWithCache(paths []string, tracked []model.TrackedMetric, cache *store.Cache, progressFn ProgressFunc) (*CachedLoadResult, error) {
	loaded, err := Load(paths, progressFn)
	if err != nil {
		return nil, err
	}

	result := summarize(loaded, tracked)
	if loaded.ParsedFiles == 0 {
		return result, nil
	}

	red, ok, err := cache.LoadReduction(result.Fingerprint)
	if err != nil {
		log.Debug().Err(err).Str("fingerprint", result.Fingerprint).Msg("reading reduction cache")
	}
	if ok {
		result.Records = red.Records
		result.CacheHit = true
		return result, nil
	}

	result.Records = ReduceMonthly(loaded.Snapshots, tracked)
	err = cache.SaveReduction(store.Reduction{
		Fingerprint: result.Fingerprint,
		Records:     result.Records,
		Total:       result.Total,
		Dropped:     result.Dropped,
	})
	if err != nil {
		log.Debug().Err(err).Str("fingerprint", result.Fingerprint).Msg("writing reduction cache")
	}
	return result, nil
}

// Reduce reduces a fresh load without touching the cache.
func Reduce(loaded *LoadResult, tracked []model.TrackedMetric) *CachedLoadResult {
	result := summarize(loaded, tracked)
	result.Records = ReduceMonthly(loaded.Snapshots, tracked)
	return result
}

func summarize(loaded *LoadResult, tracked []model.TrackedMetric) *CachedLoadResult {
	return &CachedLoadResult{
		Total:       loaded.Total,
		Dropped:     loaded.Dropped,
		TotalFiles:  loaded.TotalFiles,
		FileErrors:  loaded.FileErrors,
		NotJSON:     loaded.NotJSON,
		Errors:      loaded.Errors,
		Fingerprint: ReductionKey(loaded.Fingerprint, tracked),
	}
}

// RecordUpload appends the load to the cache's upload history.
func (r *CachedLoadResult) RecordUpload(cache *store.Cache, src string) error {
	u := store.UploadFromRecords(src, r.Fingerprint, r.Records, r.Total, r.Dropped)
	if err := cache.RecordUpload(u); err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "snapdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "snapdash")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "reductions.db")
}
