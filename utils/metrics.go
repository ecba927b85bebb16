package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one extraction run.
type Metrics struct {
	Registry      *prometheus.Registry
	LoginsTotal   *prometheus.CounterVec
	FetchesTotal  *prometheus.CounterVec
	ReloginsTotal prometheus.Counter
	FetchDuration prometheus.Histogram
	RowsWritten   prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	logins := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heureka_logins_total",
			Help: "Browser login attempts by result.",
		},
		[]string{"result"},
	)
	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heureka_fetches_total",
			Help: "Statistics page fetches by outcome.",
		},
		[]string{"outcome"},
	)
	relogins := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "heureka_relogins_total",
			Help: "Logins triggered by an invalid session during a fetch.",
		},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heureka_fetch_duration_seconds",
			Help:    "Latency of statistics page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "heureka_rows_written_total",
			Help: "Records handed to the output writer.",
		},
	)

	registry.MustRegister(logins, fetches, relogins, fetchDuration, rows)

	return &Metrics{
		Registry:      registry,
		LoginsTotal:   logins,
		FetchesTotal:  fetches,
		ReloginsTotal: relogins,
		FetchDuration: fetchDuration,
		RowsWritten:   rows,
	}
}

// IncLogin counts a login attempt with result "success" or "failure".
func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// IncFetch counts a fetch by outcome label.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// IncRelogin counts a session-recovery login.
func (m *Metrics) IncRelogin() {
	if m == nil {
		return
	}
	m.ReloginsTotal.Inc()
}

// ObserveFetch records a statistics request duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncRows counts a written record.
func (m *Metrics) IncRows() {
	if m == nil {
		return
	}
	m.RowsWritten.Inc()
}
