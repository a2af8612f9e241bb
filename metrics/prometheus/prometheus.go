// Package prometheus provides a Prometheus metrics.Collector implementation
// for volley. This package is optional and only imported when Prometheus
// metrics are needed.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/volleygo/volley/metrics"
)

// Collector implements metrics.Collector for Prometheus
type Collector struct {
	cacheLookups     *prometheus.CounterVec
	cacheLookupTime  *prometheus.HistogramVec
	cacheSize        prometheus.Gauge
	cacheEntries     prometheus.Gauge
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
	retriesExhausted *prometheus.CounterVec
	dedupes          *prometheus.CounterVec
	prunedEntries    prometheus.Counter
	prunedBytes      prometheus.Counter
}

// CollectorConfig provides configuration options for the Prometheus collector
type CollectorConfig struct {
	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// Namespace for metrics (default: "volley")
	Namespace string

	// Subsystem for metrics (optional)
	Subsystem string

	// ConstLabels are labels added to all metrics
	ConstLabels prometheus.Labels
}

// NewCollector creates a new Prometheus collector with default registry and configuration
func NewCollector() *Collector {
	return NewCollectorWithConfig(CollectorConfig{})
}

// NewCollectorWithRegistry creates a new Prometheus collector with a custom registry
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	return NewCollectorWithConfig(CollectorConfig{
		Registry: reg,
	})
}

// NewCollectorWithConfig creates a new Prometheus collector with custom configuration
func NewCollectorWithConfig(config CollectorConfig) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "volley"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_lookups_total",
				Help:        "Total number of Cache Dispatcher lookups by result",
				ConstLabels: config.ConstLabels,
			},
			[]string{"result"},
		),
		cacheLookupTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_lookup_duration_seconds",
				Help:        "Duration of disk cache lookups in seconds",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
				ConstLabels: config.ConstLabels,
			},
			[]string{"result"},
		),
		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_size_bytes",
				Help:        "Current on-disk size of the cache store in bytes",
				ConstLabels: config.ConstLabels,
			},
		),
		cacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_entries_total",
				Help:        "Current number of entries in the cache store",
				ConstLabels: config.ConstLabels,
			},
		),
		dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "dispatches_total",
				Help:        "Total number of Network Dispatcher attempts",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "outcome"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "dispatch_duration_seconds",
				Help:        "Duration of Transport.Perform calls in seconds",
				Buckets:     []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "outcome"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "queue_depth",
				Help:        "Current depth of the cache and network priority queues",
				ConstLabels: config.ConstLabels,
			},
			[]string{"queue"},
		),
		retriesExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "retries_exhausted_total",
				Help:        "Total number of requests abandoned after their retry policy ran out",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method"},
		),
		dedupes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "dedupes_total",
				Help:        "Total number of requests joined to an in-flight duplicate instead of dispatched",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method"},
		),
		prunedEntries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "pruned_entries_total",
				Help:        "Total number of cache entries evicted to stay under the byte budget",
				ConstLabels: config.ConstLabels,
			},
		),
		prunedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "pruned_bytes_total",
				Help:        "Total bytes reclaimed by pruning cycles",
				ConstLabels: config.ConstLabels,
			},
		),
	}
}

func (c *Collector) RecordCacheLookup(result string, duration time.Duration) {
	c.cacheLookups.WithLabelValues(result).Inc()
	c.cacheLookupTime.WithLabelValues(result).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheSize(sizeBytes int64) {
	c.cacheSize.Set(float64(sizeBytes))
}

func (c *Collector) RecordCacheEntries(count int64) {
	c.cacheEntries.Set(float64(count))
}

func (c *Collector) RecordDispatch(method, outcome string, duration time.Duration) {
	c.dispatches.WithLabelValues(method, outcome).Inc()
	c.dispatchDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

func (c *Collector) RecordQueueDepth(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (c *Collector) RecordRetryExhausted(method string) {
	c.retriesExhausted.WithLabelValues(method).Inc()
}

func (c *Collector) RecordDedupe(method string) {
	c.dedupes.WithLabelValues(method).Inc()
}

func (c *Collector) RecordPrune(evictedEntries int, evictedBytes int64) {
	c.prunedEntries.Add(float64(evictedEntries))
	c.prunedBytes.Add(float64(evictedBytes))
}

// Verify interface implementation at compile time
var _ metrics.Collector = (*Collector)(nil)
