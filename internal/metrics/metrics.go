// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/voyagen/epgvault/internal/provider"
)

// Run results.
const (
	ResultCompleted  = "completed"
	ResultFailed     = "failed"
	ResultEmpty      = "empty"
	ResultInProgress = "in_progress"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	records     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	written     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epgvault",
			Name:      "provider_records_total",
			Help:      "Records handled per provider and stage.",
		}, []string{"provider", "stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epgvault",
			Name:      "provider_failures_total",
			Help:      "Soft and hard failures per provider.",
		}, []string{"provider", "kind"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epgvault",
			Name:      "store_written_total",
			Help:      "Records written to the store per kind.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epgvault",
			Name:      "runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "epgvault",
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epgvault",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}
	reg.MustRegister(m.records, m.failures, m.written, m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveProvider records the stage counts of one scrape.
func (m *Metrics) ObserveProvider(res provider.Result) {
	c := res.Counts
	for stage, n := range map[string]int{
		"raw_channels": c.RawChannels,
		"raw_shows":    c.RawShows,
		"shows":        c.Shows,
		"channels":     c.Channels,
	} {
		m.records.WithLabelValues(res.Provider, stage).Add(float64(n))
	}
	m.failures.WithLabelValues(res.Provider, "fetch").Add(float64(c.FetchFailures))
	m.failures.WithLabelValues(res.Provider, "parse").Add(float64(c.ShowErrors + c.ChannelErrors))
}

// AuthFailed counts a token exchange failure of name.
func (m *Metrics) AuthFailed(name string) {
	m.failures.WithLabelValues(name, "auth").Inc()
}

// Written counts records written for kind.
func (m *Metrics) Written(kind string, n int) {
	m.written.WithLabelValues(kind).Add(float64(n))
}

// RunFinished records the outcome and duration of a run. Runs skipped for
// the lock only count.
func (m *Metrics) RunFinished(result string, elapsed time.Duration) {
	m.runs.WithLabelValues(result).Inc()
	if result == ResultInProgress {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if result == ResultCompleted {
		m.lastSuccess.SetToCurrentTime()
	}
}
