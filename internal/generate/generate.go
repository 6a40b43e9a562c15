// Package generate synthesizes sample usage-snapshot payloads.
package generate

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/theirongolddev/snapdash/internal/model"
)

// Options controls payload generation.
type Options struct {
	Months   int
	PerMonth int
	Start    time.Time // only year and month are used
	Offset   string    // appended to each naive timestamp, e.g. "-08:00"
	Seed     uint64
	Now      time.Time // envelope timestamp; zero means time.Now
}

// DefaultOptions generates 12 months of 5 snapshots from January 2024 at -08:00.
func DefaultOptions() Options {
	return Options{
		Months:   12,
		PerMonth: 5,
		Start:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Offset:   "-08:00",
		Seed:     1,
	}
}

type valueRange struct {
	key string
	max int64
}

// Upper bounds (inclusive) of the random value per metric.
var valueRanges = []valueRange{
	{"clientcount.current_month_estimate.type.acme_client", 100},
	{"clientcount.current_month_estimate.type.entity", 1000},
	{"clientcount.current_month_estimate.type.nonentity", 600},
	{"clientcount.current_month_estimate.type.secret_sync", 400},
	{"clientcount.previous_month_complete.type.acme_client", 100},
	{"clientcount.previous_month_complete.type.entity", 5000},
	{"clientcount.previous_month_complete.type.nonentity", 400},
	{"clientcount.previous_month_complete.type.secret_sync", 100},
}

// Payload builds a payload with opts.PerMonth snapshots in each of opts.Months
// consecutive months. Each snapshot lands on a random day 1-28 at a random
// hour and minute. The same seed always yields the same payload.
func Payload(opts Options) (model.Payload, error) {
	if opts.Months < 0 || opts.PerMonth < 0 {
		return model.Payload{}, fmt.Errorf("months and per-month must be non-negative")
	}
	if _, err := time.Parse("-07:00", opts.Offset); err != nil && opts.Offset != "Z" && opts.Offset != "" {
		return model.Payload{}, fmt.Errorf("invalid offset %q", opts.Offset)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], opts.Seed)
	src := rand.NewChaCha8(seed)
	rng := rand.New(src)

	newID := func() string {
		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}

	processID := newID()
	licenseID := newID()
	clusterID := newID()
	start := time.Date(opts.Start.Year(), opts.Start.Month(), 1, 0, 0, 0, 0, time.UTC)

	p := model.Payload{
		Version:   "2",
		Mode:      "manual",
		Timestamp: opts.Now.UTC().Format(time.RFC3339Nano),
		Snapshots: make([]model.PayloadSnapshot, 0, opts.Months*opts.PerMonth),
	}

	for m := 0; m < opts.Months; m++ {
		month := start.AddDate(0, m, 0)
		for i := 0; i < opts.PerMonth; i++ {
			ts := time.Date(month.Year(), month.Month(), 1+rng.IntN(28), rng.IntN(24), rng.IntN(60), 0, 0, time.UTC)
			snap := model.PayloadSnapshot{
				SnapshotVersion: 2,
				ID:              newID(),
				SchemaVersion:   "2.0.0",
				Product:         "vault",
				ProcessID:       processID,
				ProductVersion:  "1.16.0+ent",
				LicenseID:       licenseID,
				Metadata: &model.SnapshotMetadata{
					BillingStart: start.Format(time.RFC3339),
					ClusterID:    clusterID,
				},
				Timestamp: ts.Format("2006-01-02T15:04:05") + opts.Offset,
				Metrics:   randomMetrics(rng),
			}
			snap.Checksum = snapshotChecksum(snap)
			p.Snapshots = append(p.Snapshots, snap)
		}
	}

	body, err := json.Marshal(p.Snapshots)
	if err != nil {
		return model.Payload{}, err
	}
	p.Checksum = xxhash.Sum64(body)
	sum := sha256.Sum256(body)
	p.Signature = hex.EncodeToString(sum[:])
	return p, nil
}

func randomMetrics(rng *rand.Rand) map[string]model.MetricValue {
	metrics := make(map[string]model.MetricValue, len(valueRanges))
	for _, vr := range valueRanges {
		metrics[vr.key] = model.MetricValue{
			Key:   vr.key,
			Value: rng.Int64N(vr.max + 1),
			Mode:  "write",
		}
	}
	return metrics
}

func snapshotChecksum(s model.PayloadSnapshot) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(s.ID)
	_, _ = h.WriteString(s.Timestamp)
	for _, vr := range valueRanges {
		_, _ = fmt.Fprintf(h, "%s=%d;", vr.key, s.Metrics[vr.key].Value)
	}
	return h.Sum64()
}

// Write encodes p as indented JSON.
func Write(w io.Writer, p model.Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// WriteFile writes p to path, compressing when the name ends in .gz or .zst.
func WriteFile(path string, p model.Payload) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch lower := strings.ToLower(path); {
	case strings.HasSuffix(lower, ".gz"):
		zw := gzip.NewWriter(f)
		if err := Write(zw, p); err != nil {
			return err
		}
		return zw.Close()
	case strings.HasSuffix(lower, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		if err := Write(zw, p); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		return Write(f, p)
	}
}
