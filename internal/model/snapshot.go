// Package model defines domain types for snapdash snapshots and monthly metrics.
package model

import "time"

// MetricValue is one entry of a snapshot's metrics map.
type MetricValue struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
	Mode  string `json:"mode"`
}

// Snapshot is one timestamped observation whose timestamp parsed successfully.
// Index is the snapshot's position in the source payload(s) and breaks ties
// between snapshots sharing a timestamp.
type Snapshot struct {
	Index     int
	Timestamp time.Time
	Metrics   map[string]MetricValue
}

// YearMonth returns the month bucket label ("2006-01") in the timestamp's own offset.
func (s Snapshot) YearMonth() string {
	return s.Timestamp.Format("2006-01")
}

// Value returns the metric value for key, or 0 when the key is missing.
func (s Snapshot) Value(key string) int64 {
	mv, ok := s.Metrics[key]
	if !ok {
		return 0
	}
	return mv.Value
}

// Payload is the uploaded document envelope. Only Snapshots is required;
// the remaining fields mirror manual license-utilization reports.
type Payload struct {
	Version   string            `json:"version,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Signature string            `json:"signature,omitempty"`
	Checksum  uint64            `json:"checksum,omitempty"`
	Snapshots []PayloadSnapshot `json:"snapshots"`
}

// PayloadSnapshot is a snapshot as written in a payload document.
type PayloadSnapshot struct {
	SnapshotVersion int                    `json:"snapshot_version,omitempty"`
	ID              string                 `json:"id,omitempty"`
	SchemaVersion   string                 `json:"schema_version,omitempty"`
	Product         string                 `json:"product,omitempty"`
	ProcessID       string                 `json:"process_id,omitempty"`
	ProductVersion  string                 `json:"product_version,omitempty"`
	LicenseID       string                 `json:"license_id,omitempty"`
	Checksum        uint64                 `json:"checksum,omitempty"`
	Metadata        *SnapshotMetadata      `json:"metadata,omitempty"`
	Timestamp       string                 `json:"timestamp"`
	Metrics         map[string]MetricValue `json:"metrics"`
}

// SnapshotMetadata holds per-snapshot billing metadata.
type SnapshotMetadata struct {
	BillingStart string `json:"billing_start,omitempty"`
	ClusterID    string `json:"cluster_id,omitempty"`
}
