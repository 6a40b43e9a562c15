package source

import (
	"errors"

	"github.com/theirongolddev/snapdash/internal/model"
)

// ErrNotJSON is returned when a payload is not a JSON document at all.
var ErrNotJSON = errors.New("payload is not valid JSON")

// DiscoveredFile is one payload file found on disk.
type DiscoveredFile struct {
	Path       string
	Name       string
	Compressed bool
}

// ParseResult holds the output of parsing a single payload.
type ParseResult struct {
	Snapshots   []model.Snapshot
	Total       int    // entries in the snapshots array
	Dropped     int    // entries whose timestamp did not parse
	Fingerprint uint64 // xxhash of the decoded document
	Size        int
	Err         error
}
