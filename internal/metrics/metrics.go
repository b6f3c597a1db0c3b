package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the instrumentation for the processing pipeline. One
// instance per process, registered on its own registry so tests can create
// instances freely.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsTotal      *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	EngineUsedTotal     *prometheus.CounterVec
	DuplicatesTotal     prometheus.Counter
	ReviewEnqueuedTotal *prometheus.CounterVec
	AnomaliesTotal      *prometheus.CounterVec
	OCRConfidence       prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.DocumentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docproc",
		Name:      "documents_total",
		Help:      "Documents that finished the pipeline, by terminal status.",
	}, []string{"status"})

	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docproc",
		Name:      "stage_duration_seconds",
		Help:      "Wall time per pipeline stage.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	m.EngineUsedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docproc",
		Name:      "ocr_engine_used_total",
		Help:      "Which recognition engine won each document.",
	}, []string{"engine"})

	m.DuplicatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "docproc",
		Name:      "duplicate_submissions_total",
		Help:      "Submissions rejected by the duplicate guard.",
	})

	m.ReviewEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docproc",
		Name:      "review_enqueued_total",
		Help:      "Items routed to human review, by priority.",
	}, []string{"priority"})

	m.AnomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docproc",
		Name:      "anomalies_total",
		Help:      "Anomalies detected per scan, by type.",
	}, []string{"type"})

	m.OCRConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docproc",
		Name:      "ocr_confidence",
		Help:      "Document-level mean OCR confidence.",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
	})

	m.registry.MustRegister(
		m.DocumentsTotal,
		m.StageDuration,
		m.EngineUsedTotal,
		m.DuplicatesTotal,
		m.ReviewEnqueuedTotal,
		m.AnomaliesTotal,
		m.OCRConfidence,
	)
	return m
}

// ObserveStage records one stage timing.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler serves the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
