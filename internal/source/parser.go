// Package source reads usage-snapshot payloads and turns them into parsed snapshots.
package source

import (
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/gjson"

	"github.com/theirongolddev/snapdash/internal/model"
)

// timestampPrefix is how many leading characters of a timestamp are considered.
// Anything past microsecond precision (and any offset following it) is ignored.
const timestampPrefix = 26

// Layouts tried in order. Layouts without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the first 26 characters of s.
func ParseTimestamp(s string) (time.Time, bool) {
	if len(s) > timestampPrefix {
		s = s[:timestampPrefix]
	}
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseLayouts(s); ok {
		return t, true
	}
	// The cut can land inside an offset ("...00.1+05:3"). Drop the partial
	// offset and read the wall time as UTC.
	if i := strings.LastIndexAny(s, "+-"); i >= len("2006-01-02T15:04:05") {
		return parseLayouts(s[:i])
	}
	return time.Time{}, false
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSnapshot converts one element of the snapshots array. The bool is false
// when the element has no parseable timestamp; such elements are dropped.
func ParseSnapshot(raw gjson.Result, index int) (model.Snapshot, bool) {
	ts := raw.Get("timestamp")
	if ts.Type != gjson.String {
		return model.Snapshot{}, false
	}
	t, ok := ParseTimestamp(ts.Str)
	if !ok {
		return model.Snapshot{}, false
	}

	snap := model.Snapshot{
		Index:     index,
		Timestamp: t,
		Metrics:   make(map[string]model.MetricValue),
	}
	raw.Get("metrics").ForEach(func(key, value gjson.Result) bool {
		// The map key is authoritative even if the inner "key" disagrees.
		snap.Metrics[key.String()] = model.MetricValue{
			Key:   key.String(),
			Value: value.Get("value").Int(),
			Mode:  value.Get("mode").String(),
		}
		return true
	})
	return snap, true
}

// Parse decodes a payload document. Compressed documents and data URLs are
// unwrapped first. A document that is JSON but has no snapshots array yields an
// empty result; a document that is not JSON yields ErrNotJSON.
func Parse(data []byte) ParseResult {
	doc, err := Decode(data)
	if err != nil {
		return ParseResult{Err: err}
	}
	if !gjson.ValidBytes(doc) {
		return ParseResult{Err: ErrNotJSON, Size: len(doc)}
	}

	result := ParseResult{
		Fingerprint: xxhash.Sum64(doc),
		Size:        len(doc),
	}

	snapshots := gjson.GetBytes(doc, "snapshots")
	if !snapshots.IsArray() {
		return result
	}

	idx := 0
	snapshots.ForEach(func(_, value gjson.Result) bool {
		result.Total++
		snap, ok := ParseSnapshot(value, idx)
		idx++
		if !ok {
			result.Dropped++
			return true
		}
		result.Snapshots = append(result.Snapshots, snap)
		return true
	})
	return result
}

// ParseFile reads and parses one discovered payload file.
func ParseFile(df DiscoveredFile) ParseResult {
	data, err := ReadFile(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	return Parse(data)
}
