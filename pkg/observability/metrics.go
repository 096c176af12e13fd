package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the scan counters of one engine, kept in their own registry so
// several engines in a process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	CommitsScanned  prometheus.Counter
	CommitFailures  prometheus.Counter
	RecordsAppended prometheus.Counter
	ObjectsResolved prometheus.Counter
	ResolveSeconds  prometheus.Histogram
	FrontierCommits prometheus.Gauge
	PhaseSeconds    *prometheus.GaugeVec
}

// NewMetrics creates and registers the scan metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CommitsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repodiet_commits_scanned_total",
			Help: "Commits whose records were stored.",
		}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repodiet_commit_failures_total",
			Help: "Commits skipped because an object could not be read.",
		}),
		RecordsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repodiet_records_appended_total",
			Help: "Blob records newly written to the cache.",
		}),
		ObjectsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repodiet_objects_resolved_total",
			Help: "Object size lookups.",
		}),
		ResolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "repodiet_resolve_seconds",
			Help:    "Latency of object size lookups.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		FrontierCommits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "repodiet_frontier_commits",
			Help: "Commits recorded as scanned.",
		}),
		PhaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "repodiet_phase_seconds",
			Help: "Duration of the last run of each phase.",
		}, []string{"phase"}),
	}
	m.Registry.MustRegister(
		m.CommitsScanned,
		m.CommitFailures,
		m.RecordsAppended,
		m.ObjectsResolved,
		m.ResolveSeconds,
		m.FrontierCommits,
		m.PhaseSeconds,
	)
	return m
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
