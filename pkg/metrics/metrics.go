// Package metrics defines the Prometheus collectors for index builds. Each
// Metrics value owns its registry so a build can export exactly its own
// numbers to a textfile or a scrape endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the builder.
type Metrics struct {
	registry *prometheus.Registry

	BuildsTotal        *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	DocumentsTotal     prometheus.Counter
	TokensTotal        prometheus.Counter
	PostingsTotal      prometheus.Counter
	TermsTotal         prometheus.Counter
	BlocksTotal        prometheus.Counter
	RunFiles           prometheus.Gauge
	RunBytesTotal      prometheus.Counter
	ArtifactBytes      *prometheus.GaugeVec
	PublishTotal       *prometheus.CounterVec
	LastSuccessSeconds prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Total index builds by status (success, failure).",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_build_stage_duration_seconds",
				Help:    "Wall time of each build stage in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"stage"},
		),
		DocumentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_documents_total",
				Help: "Total documents read from the corpus.",
			},
		),
		TokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_tokens_total",
				Help: "Total tokens extracted from document bodies.",
			},
		),
		PostingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_postings_total",
				Help: "Total postings written to the inverted file.",
			},
		),
		TermsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_terms_total",
				Help: "Total lexicon entries written.",
			},
		),
		BlocksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_blocks_total",
				Help: "Total compressed posting blocks written.",
			},
		),
		RunFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_run_files",
				Help: "Number of run files produced by the last emission stage.",
			},
		),
		RunBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_run_bytes_total",
				Help: "Total bytes spilled to run files.",
			},
		),
		ArtifactBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_artifact_bytes",
				Help: "Size of each output artifact of the last successful build.",
			},
			[]string{"artifact"},
		),
		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_publish_total",
				Help: "Post-build notifications by sink and status.",
			},
			[]string{"sink", "status"},
		),
		LastSuccessSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_last_success_timestamp_seconds",
				Help: "Unix time of the last successful build.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builder_http_requests_total",
				Help: "Requests to the builder's probe endpoints by path and status code.",
			},
			[]string{"path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_builder_http_request_duration_seconds",
				Help:    "Latency of the builder's probe endpoints.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BuildsTotal,
		m.StageDuration,
		m.DocumentsTotal,
		m.TokensTotal,
		m.PostingsTotal,
		m.TermsTotal,
		m.BlocksTotal,
		m.RunFiles,
		m.RunBytesTotal,
		m.ArtifactBytes,
		m.PublishTotal,
		m.LastSuccessSeconds,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Registry exposes the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records how long a stage ran.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// BuildFinished counts a build and, on success, stamps its completion time.
func (m *Metrics) BuildFinished(err error) {
	if err != nil {
		m.BuildsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.BuildsTotal.WithLabelValues("success").Inc()
	m.LastSuccessSeconds.SetToCurrentTime()
}

// WriteTextfile writes every metric in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
