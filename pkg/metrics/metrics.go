// Package metrics defines the Prometheus metric collectors used across the
// archive services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the ingestion pipeline. A nil
// *Metrics is valid and records nothing, which keeps the pipeline components
// testable without touching the global registry.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	PagesListed          prometheus.Counter
	DocumentsEnqueued    prometheus.Counter
	EnqueueChunkFailures prometheus.Counter
	ContinuationsEmitted prometheus.Counter
	RunsHalted           *prometheus.CounterVec
	MessagesProcessed    *prometheus.CounterVec
	ConsumedBatchSize    prometheus.Histogram
	UpsertDuration       prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PagesListed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_pages_listed_total",
				Help: "Total object-store listing pages processed.",
			},
		),
		DocumentsEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_documents_enqueued_total",
				Help: "Total document messages enqueued.",
			},
		),
		EnqueueChunkFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_enqueue_chunk_failures_total",
				Help: "Total queue batch-send chunks that failed.",
			},
		),
		ContinuationsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_continuations_emitted_total",
				Help: "Total pagination continuation messages emitted.",
			},
		),
		RunsHalted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_halted_total",
				Help: "Pagination runs halted by a guard, by reason.",
			},
			[]string{"reason"},
		),
		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_messages_processed_total",
				Help: "Queue messages processed, by outcome.",
			},
			[]string{"outcome"},
		),
		ConsumedBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_consumed_batch_size",
				Help:    "Number of messages per consumed batch.",
				Buckets: []float64{1, 5, 10, 25, 50, 100},
			},
		),
		UpsertDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_upsert_duration_seconds",
				Help:    "Index-store upsert latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PagesListed,
		m.DocumentsEnqueued,
		m.EnqueueChunkFailures,
		m.ContinuationsEmitted,
		m.RunsHalted,
		m.MessagesProcessed,
		m.ConsumedBatchSize,
		m.UpsertDuration,
	)

	return m
}

// Nil-safe recording helpers. Components hold a *Metrics that may be nil in
// tests.

func (m *Metrics) PageListed(enqueued int, failedChunks int) {
	if m == nil {
		return
	}
	m.PagesListed.Inc()
	m.DocumentsEnqueued.Add(float64(enqueued))
	m.EnqueueChunkFailures.Add(float64(failedChunks))
}

func (m *Metrics) ContinuationEmitted() {
	if m == nil {
		return
	}
	m.ContinuationsEmitted.Inc()
}

func (m *Metrics) RunHalted(reason string) {
	if m == nil {
		return
	}
	m.RunsHalted.WithLabelValues(reason).Inc()
}

func (m *Metrics) MessageProcessed(outcome string) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BatchConsumed(size int) {
	if m == nil {
		return
	}
	m.ConsumedBatchSize.Observe(float64(size))
}

func (m *Metrics) UpsertObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.UpsertDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
