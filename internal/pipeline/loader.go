package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/source"
)

// LoadResult holds the merged output of one or more payload files.
type LoadResult struct {
	Snapshots   []model.Snapshot
	TotalFiles  int
	ParsedFiles int
	FileErrors  int
	NotJSON     int
	Total       int // snapshot entries seen
	Dropped     int // entries with unparseable timestamps
	Fingerprint uint64
	Errors      []error
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Load expands paths into payload files and parses them with a bounded worker
// pool. Snapshots are concatenated in argument order and renumbered so that
// input-order tie-breaking spans all files.
func Load(paths []string, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := source.ScanPaths(paths)
	if err != nil {
		return nil, fmt.Errorf("scanning payloads: %w", err)
	}

	result := &LoadResult{TotalFiles: len(files)}
	if len(files) == 0 {
		return result, nil
	}

	results := make([]source.ParseResult, len(files))
	forEachParallel(len(files), func(idx int) {
		results[idx] = source.ParseFile(files[idx])
	}, progressFn)

	result.merge(files, results)
	return result, nil
}

// LoadBytes parses an in-memory payload the same way Load parses files.
func LoadBytes(data []byte) *LoadResult {
	result := &LoadResult{TotalFiles: 1}
	result.merge([]source.DiscoveredFile{{Name: "payload"}}, []source.ParseResult{source.Parse(data)})
	return result
}

func (r *LoadResult) merge(files []source.DiscoveredFile, results []source.ParseResult) {
	h := xxhash.New()
	var buf [8]byte
	for i, pr := range results {
		if pr.Err != nil {
			r.FileErrors++
			if errors.Is(pr.Err, source.ErrNotJSON) {
				r.NotJSON++
			}
			r.Errors = append(r.Errors, fmt.Errorf("%s: %w", files[i].Name, pr.Err))
			continue
		}
		r.ParsedFiles++
		r.Total += pr.Total
		r.Dropped += pr.Dropped

		binary.LittleEndian.PutUint64(buf[:], pr.Fingerprint)
		_, _ = h.Write(buf[:])

		for _, s := range pr.Snapshots {
			s.Index = len(r.Snapshots)
			r.Snapshots = append(r.Snapshots, s)
		}
	}
	r.Fingerprint = h.Sum64()
}

// Build reduces and projects the loaded snapshots.
func (r *LoadResult) Build(tracked []model.TrackedMetric, params model.TrendParams) model.Dashboard {
	d := Build(r.Snapshots, tracked, params)
	d.Total = r.Total
	d.Dropped = r.Dropped
	return d
}

// forEachParallel runs fn for 0..n-1 on a worker pool sized to GOMAXPROCS.
func forEachParallel(n int, fn func(idx int), progressFn ProgressFunc) {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > n {
		numWorkers = n
	}

	work := make(chan int, n)
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var processed atomic.Int64
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				fn(idx)
				done := processed.Add(1)
				if progressFn != nil {
					progressFn(int(done), n)
				}
			}
		}()
	}
	wg.Wait()
}
