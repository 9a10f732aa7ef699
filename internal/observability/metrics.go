package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the counters and histograms tracked across a run.
// They are gathered into a local text-exposition file once, at the end
// of the run, rather than served over HTTP: nothing scrapes a batch job.
type Metrics struct {
	registry *prometheus.Registry

	EventsGenerated *prometheus.CounterVec
	SubscribersSkipped prometheus.Counter
	ShardDuration      prometheus.Histogram
	BytesWritten       prometheus.Counter
}

// NewMetrics constructs and registers the run's metric collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EventsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdrgen_events_generated_total",
			Help: "Number of CDR events generated, by event type.",
		}, []string{"event_type"}),
		SubscribersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdrgen_subscribers_skipped_total",
			Help: "Subscriber-days skipped for lack of an active identity snapshot.",
		}),
		ShardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdrgen_shard_duration_seconds",
			Help:    "Wall-clock time to generate one shard's events for one day.",
			Buckets: prometheus.DefBuckets,
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdrgen_bytes_written_total",
			Help: "Total DATA-session bytes (in + out) recorded in generated CDRs.",
		}),
	}
	reg.MustRegister(m.EventsGenerated, m.SubscribersSkipped, m.ShardDuration, m.BytesWritten)
	return m
}

// WriteSnapshot gathers the current metric values and writes them in
// Prometheus text-exposition format to <outDir>/metrics.prom.
func (m *Metrics) WriteSnapshot(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("observability: mkdir metrics dir: %w", err)
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("observability: gather metrics: %w", err)
	}
	f, err := os.Create(filepath.Join(outDir, "metrics.prom"))
	if err != nil {
		return fmt.Errorf("observability: create metrics file: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("observability: encode metric family: %w", err)
		}
	}
	return nil
}
