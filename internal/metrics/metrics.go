package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ScanLookups         *prometheus.CounterVec
	ScanCommits         prometheus.Counter
	ScanItemsCommitted  prometheus.Counter
	ScanItemsFailed     prometheus.Counter
	ScanSessionsCleaned prometheus.Counter
	PhotoPositionRepair prometheus.Counter
	HTTPDuration        *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScanLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scan_lookups_total",
			Help: "Barcode lookups by outcome.",
		}, []string{"status"}),
		ScanCommits: f.NewCounter(prometheus.CounterOpts{
			Name: "scan_commits_total",
			Help: "Scan session commits that reached materialization.",
		}),
		ScanItemsCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "scan_items_committed_total",
			Help: "Inventory items created or restored by commits.",
		}),
		ScanItemsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "scan_items_failed_total",
			Help: "Scan results that failed to materialize.",
		}),
		ScanSessionsCleaned: f.NewCounter(prometheus.CounterOpts{
			Name: "scan_sessions_cleaned_total",
			Help: "Idle scan sessions cancelled by the cleanup sweep.",
		}),
		PhotoPositionRepair: f.NewCounter(prometheus.CounterOpts{
			Name: "directory_photo_repairs_total",
			Help: "Listings whose photo positions were re-packed by the sweep.",
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Lookup(status string) {
	if m != nil {
		m.ScanLookups.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Commit(committed, failed int) {
	if m == nil {
		return
	}
	m.ScanCommits.Inc()
	m.ScanItemsCommitted.Add(float64(committed))
	m.ScanItemsFailed.Add(float64(failed))
}

func (m *Metrics) SessionsCleaned(n int) {
	if m != nil {
		m.ScanSessionsCleaned.Add(float64(n))
	}
}

func (m *Metrics) PositionsRepaired(n int) {
	if m != nil {
		m.PhotoPositionRepair.Add(float64(n))
	}
}
