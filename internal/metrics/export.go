package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExportMetrics tracks dataset exports. A nil *ExportMetrics records nothing.
type ExportMetrics struct {
	exportsTotal       *prometheus.CounterVec
	exportDuration     *prometheus.HistogramVec
	filesWritten       *prometheus.CounterVec
	annotationsSkipped *prometheus.CounterVec
}

// NewExportMetrics creates and registers export metrics.
func NewExportMetrics(registry *prometheus.Registry) (*ExportMetrics, error) {
	m := &ExportMetrics{
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notum_exports_total",
				Help: "Total number of export runs",
			},
			[]string{"format", "status"}, // status: success, error
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notum_export_duration_seconds",
				Help:    "Time taken to export a project",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"format"},
		),
		filesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notum_export_files_written_total",
				Help: "Total number of files written by exports",
			},
			[]string{"format"},
		),
		annotationsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notum_export_annotations_skipped_total",
				Help: "Annotations left out of an export (unknown category or degenerate polygon)",
			},
			[]string{"format"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *ExportMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.exportsTotal.Describe(ch)
	m.exportDuration.Describe(ch)
	m.filesWritten.Describe(ch)
	m.annotationsSkipped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *ExportMetrics) Collect(ch chan<- prometheus.Metric) {
	m.exportsTotal.Collect(ch)
	m.exportDuration.Collect(ch)
	m.filesWritten.Collect(ch)
	m.annotationsSkipped.Collect(ch)
}

// RecordExport records one finished export.
func (m *ExportMetrics) RecordExport(format, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(format, status).Inc()
	m.exportDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordOutput records the files written and annotations skipped by one export.
func (m *ExportMetrics) RecordOutput(format string, files, skipped int) {
	if m == nil {
		return
	}
	m.filesWritten.WithLabelValues(format).Add(float64(files))
	m.annotationsSkipped.WithLabelValues(format).Add(float64(skipped))
}
