package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SegmentMetrics tracks image encoding, mask prediction and the embedding
// cache. A nil *SegmentMetrics records nothing.
type SegmentMetrics struct {
	encodeDuration  prometheus.Histogram
	predictDuration prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	cacheEvictions  prometheus.Counter
	cacheEntries    prometheus.Gauge
	errorsTotal     *prometheus.CounterVec
}

// NewSegmentMetrics creates and registers segmentation metrics.
func NewSegmentMetrics(registry *prometheus.Registry) (*SegmentMetrics, error) {
	m := &SegmentMetrics{
		encodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notum_segment_encode_duration_seconds",
			Help:    "Time taken by the image encoder",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		predictDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notum_segment_predict_duration_seconds",
			Help:    "Time taken to predict a mask and extract its polygon",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notum_segment_cache_lookups_total",
				Help: "Embedding cache lookups",
			},
			[]string{"result"}, // result: hit, miss
		),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notum_segment_cache_evictions_total",
			Help: "Embeddings evicted from the cache",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notum_segment_cache_entries",
			Help: "Embeddings currently cached",
		}),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notum_segment_errors_total",
				Help: "Segmentation requests that returned an error",
			},
			[]string{"operation", "error_type"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *SegmentMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.encodeDuration.Describe(ch)
	m.predictDuration.Describe(ch)
	m.cacheLookups.Describe(ch)
	m.cacheEvictions.Describe(ch)
	m.cacheEntries.Describe(ch)
	m.errorsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *SegmentMetrics) Collect(ch chan<- prometheus.Metric) {
	m.encodeDuration.Collect(ch)
	m.predictDuration.Collect(ch)
	m.cacheLookups.Collect(ch)
	m.cacheEvictions.Collect(ch)
	m.cacheEntries.Collect(ch)
	m.errorsTotal.Collect(ch)
}

func (m *SegmentMetrics) ObserveEncode(d time.Duration) {
	if m == nil {
		return
	}
	m.encodeDuration.Observe(d.Seconds())
}

func (m *SegmentMetrics) ObservePredict(d time.Duration) {
	if m == nil {
		return
	}
	m.predictDuration.Observe(d.Seconds())
}

// RecordCacheLookup counts a hit or a miss.
func (m *SegmentMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheState records the entry count after an insert and whether it evicted.
func (m *SegmentMetrics) RecordCacheState(entries int, evicted bool) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(entries))
	if evicted {
		m.cacheEvictions.Inc()
	}
}

func (m *SegmentMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
