// Package metrics collects pipeline counters and writes them in the
// Prometheus text format for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Veraticus/paperflow/internal/model"
)

// Stage names used by ObserveStage.
const (
	StageOCR      = "ocr"
	StageClassify = "classify"
	StageExtract  = "extract"
	StageDispatch = "dispatch"
)

// PipelineMetrics is a private registry for one run.
type PipelineMetrics struct {
	registry *prometheus.Registry

	documents     *prometheus.CounterVec
	provenance    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New registers the pipeline collectors.
func New() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	documents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperflow",
			Name:      "documents_total",
			Help:      "Processed documents by filing outcome.",
		},
		[]string{"outcome"},
	)
	provenance := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperflow",
			Name:      "classifications_total",
			Help:      "Classified documents by provenance.",
		},
		[]string{"provenance"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paperflow",
			Name:      "stage_duration_seconds",
			Help:      "Per-document stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "paperflow",
			Name:      "documents_in_flight",
			Help:      "Documents currently being processed.",
		},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "paperflow",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished.",
		},
	)

	registry.MustRegister(documents, provenance, stageDuration, inFlight, lastRun)

	return &PipelineMetrics{
		registry:      registry,
		documents:     documents,
		provenance:    provenance,
		stageDuration: stageDuration,
		inFlight:      inFlight,
		lastRun:       lastRun,
	}
}

// StartDocument marks a document as in flight.
func (m *PipelineMetrics) StartDocument() {
	m.inFlight.Inc()
}

// FinishDocument counts a document once its audit record exists.
func (m *PipelineMetrics) FinishDocument(record model.AuditRecord) {
	m.inFlight.Dec()
	m.documents.WithLabelValues(string(record.Outcome)).Inc()
	if record.Classification.Provenance != "" {
		m.provenance.WithLabelValues(string(record.Classification.Provenance)).Inc()
	}
}

// AbandonDocument releases a document that produced no record.
func (m *PipelineMetrics) AbandonDocument() {
	m.inFlight.Dec()
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// FinishRun stamps the run end time.
func (m *PipelineMetrics) FinishRun(at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
}

// Registry exposes the underlying gatherer.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes all metrics to path.
func (m *PipelineMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
