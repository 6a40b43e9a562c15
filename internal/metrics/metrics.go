// Package metrics provides Prometheus instrumentation for the dashboard server.
//
// Metrics exposed:
//   - snapdash_uploads_total: Counter of accepted payload uploads
//   - snapdash_upload_errors_total: Counter of rejected uploads by reason
//   - snapdash_recompute_seconds: Histogram of reduce + project duration
//   - snapdash_dropped_snapshots_total: Counter of snapshots dropped for bad timestamps
//   - snapdash_sessions_created_total: Counter of sessions created
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload error reasons.
const (
	ReasonNotJSON  = "not_json"
	ReasonTooLarge = "too_large"
	ReasonBadBody  = "bad_body"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	UploadsTotal          prometheus.Counter
	UploadErrorsTotal     *prometheus.CounterVec
	RecomputeSeconds      prometheus.Histogram
	DroppedSnapshotsTotal prometheus.Counter
	SessionsCreatedTotal  prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UploadsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "snapdash_uploads_total",
			Help: "Payload uploads accepted",
		}),
		UploadErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdash_upload_errors_total",
			Help: "Payload uploads rejected, by reason",
		}, []string{"reason"}),
		RecomputeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "snapdash_recompute_seconds",
			Help:    "Time spent reducing snapshots and projecting trendlines",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		DroppedSnapshotsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "snapdash_dropped_snapshots_total",
			Help: "Snapshots dropped because their timestamp did not parse",
		}),
		SessionsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "snapdash_sessions_created_total",
			Help: "Dashboard sessions created",
		}),
	}
}

// ObserveRecompute records the duration since start.
func (m *Metrics) ObserveRecompute(start time.Time) {
	m.RecomputeSeconds.Observe(time.Since(start).Seconds())
}

// UploadFailed counts a rejected upload.
func (m *Metrics) UploadFailed(reason string) {
	m.UploadErrorsTotal.WithLabelValues(reason).Inc()
}
