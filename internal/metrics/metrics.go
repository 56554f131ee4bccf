// Package metrics provides the Prometheus collectors exposed on /metrics.
package metrics

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the server.
type Metrics struct {
	registry *prometheus.Registry
	Export   *ExportMetrics
	Segment  *SegmentMetrics
}

// New creates a registry with the Go runtime collectors and every
// application collector registered on it.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exportMetrics, err := NewExportMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create export metrics: %w", err)
	}

	segmentMetrics, err := NewSegmentMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Export:   exportMetrics,
		Segment:  segmentMetrics,
	}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
