package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_monitor"

// Metrics holds the Prometheus collectors for pipeline runs, publishing and
// upstream data sources.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec   // labels: outcome={success,failure}
	QualityScore         *prometheus.GaugeVec     // labels: package
	StageDuration        *prometheus.HistogramVec // labels: stage
	ObservationsAssessed prometheus.Counter
	PackagesPublished    prometheus.Counter
	PublishRetries       prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Upstream fetch metrics.
	SourceRequests    *prometheus.CounterVec // labels: source, outcome={success,error}
	SourceAPIDuration *prometheus.HistogramVec

	// Registry manifest cache.
	RegistryCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		QualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Latest composite quality score per package.",
		}, []string{"package"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ObservationsAssessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_assessed_total",
			Help:      "Total observation records scored by the quality engine.",
		}),
		PackagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_published_total",
			Help:      "Total package versions pushed to the registry.",
		}),
		PublishRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_retries_total",
			Help:      "Push attempts retried after a transient failure.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Upstream data source requests by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_api_duration_seconds",
			Help:      "Upstream data source request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		RegistryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_cache_total",
			Help:      "Manifest cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.QualityScore,
		m.StageDuration,
		m.ObservationsAssessed,
		m.PackagesPublished,
		m.PublishRetries,
		m.PipelineRunning,
		m.SourceRequests,
		m.SourceAPIDuration,
		m.RegistryCache,
	}
}
