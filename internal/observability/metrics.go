package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// conditions engine.
type Metrics struct {
	ReportsAccepted prometheus.Counter
	ReportsRejected *prometheus.CounterVec // labels: reason={validation,rate_limit,duplicate}
	EngineRunning   prometheus.Gauge

	// Aggregation metrics.
	CompositeChanges prometheus.Counter
	IngestDuration   prometheus.Histogram

	// Lifecycle metrics.
	SweepDuration   prometheus.Histogram
	ReportsStaled   prometheus.Counter
	ReportsArchived prometheus.Counter
	RainResets      prometheus.Counter

	// Weather / dry-out metrics.
	WeatherRefreshes  *prometheus.CounterVec // labels: outcome={success,skipped,error}
	EstimatesComputed prometheus.Counter
	SitesDry          prometheus.Gauge
	EventsPublished   *prometheus.CounterVec // labels: kind
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsAccepted,
		m.ReportsRejected,
		m.EngineRunning,
		m.CompositeChanges,
		m.IngestDuration,
		m.SweepDuration,
		m.ReportsStaled,
		m.ReportsArchived,
		m.RainResets,
		m.WeatherRefreshes,
		m.EstimatesComputed,
		m.SitesDry,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "reports_accepted_total",
			Help:      "Total condition reports accepted into aggregation.",
		}),
		ReportsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "reports_rejected_total",
			Help:      "Total submissions rejected, by reason.",
		}, []string{"reason"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parkcheck",
			Name:      "engine_running",
			Help:      "1 when the consume loop is active, 0 when shut down.",
		}),
		CompositeChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "composite_changes_total",
			Help:      "Times a site's composite status changed value.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parkcheck",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of one submission's validate-record-aggregate cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parkcheck",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full lifecycle sweep across all sites.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		ReportsStaled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "reports_staled_total",
			Help:      "Reports marked stale by the sweeper.",
		}),
		ReportsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "reports_archived_total",
			Help:      "Reports moved to per-day archival storage.",
		}),
		RainResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "rain_resets_total",
			Help:      "Site composite statuses invalidated by a rain-stop transition.",
		}),
		WeatherRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "weather_refreshes_total",
			Help:      "Weather refresh cycles, by outcome.",
		}, []string{"outcome"}),
		EstimatesComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "dry_estimates_computed_total",
			Help:      "Per-site dry-out estimates computed.",
		}),
		SitesDry: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parkcheck",
			Name:      "sites_dry",
			Help:      "Sites currently estimated dry.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkcheck",
			Name:      "events_published_total",
			Help:      "Condition events emitted to the events topic, by kind.",
		}, []string{"kind"}),
	}
}
