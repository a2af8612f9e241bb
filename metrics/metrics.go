// Package metrics provides an interface for collecting request-pipeline
// metrics. This package defines a generic interface that can be implemented
// by various metrics systems (Prometheus, OpenTelemetry, Datadog, etc.)
// without adding dependencies to the core volley package.
package metrics

import (
	"time"
)

// Collector defines the interface for metrics collection.
// Implementations of this interface can collect metrics for various
// monitoring systems without requiring changes to the volley core.
type Collector interface {
	// RecordCacheLookup records a single Cache Dispatcher lookup.
	// Parameters:
	//   - result: "hit", "miss", "expired", or "soft_expired"
	//   - duration: time spent on the disk lookup
	RecordCacheLookup(result string, duration time.Duration)

	// RecordCacheSize records the store's current on-disk footprint.
	// Parameters:
	//   - sizeBytes: current total bytes tracked by the store's index
	RecordCacheSize(sizeBytes int64)

	// RecordCacheEntries records the store's current entry count.
	// Parameters:
	//   - count: number of entries currently indexed
	RecordCacheEntries(count int64)

	// RecordDispatch records a single Network Dispatcher attempt.
	// Parameters:
	//   - method: HTTP method
	//   - outcome: "success", "not_modified", "retry", or "error"
	//   - duration: time spent in Transport.Perform
	RecordDispatch(method, outcome string, duration time.Duration)

	// RecordQueueDepth records the current depth of one of the two
	// priority queues.
	// Parameters:
	//   - queue: "cache" or "network"
	//   - depth: number of requests currently waiting
	RecordQueueDepth(queue string, depth int)

	// RecordRetryExhausted records a request abandoned after its
	// RetryPolicy ran out of attempts.
	// Parameters:
	//   - method: HTTP method
	RecordRetryExhausted(method string)

	// RecordDedupe records an in-flight request joining an existing
	// waiting-list entry instead of reaching the network.
	// Parameters:
	//   - method: HTTP method
	RecordDedupe(method string)

	// RecordPrune records a pruning cycle evicting entries to stay under
	// the store's byte budget.
	// Parameters:
	//   - evictedEntries: number of entries removed
	//   - evictedBytes: total bytes reclaimed
	RecordPrune(evictedEntries int, evictedBytes int64)
}

// NoOpCollector implements Collector with no-op operations.
// This is used as the default collector when metrics are not enabled,
// ensuring zero overhead for users who don't need metrics.
type NoOpCollector struct{}

// RecordCacheLookup does nothing (no-op implementation)
func (n *NoOpCollector) RecordCacheLookup(result string, duration time.Duration) {}

// RecordCacheSize does nothing (no-op implementation)
func (n *NoOpCollector) RecordCacheSize(sizeBytes int64) {}

// RecordCacheEntries does nothing (no-op implementation)
func (n *NoOpCollector) RecordCacheEntries(count int64) {}

// RecordDispatch does nothing (no-op implementation)
func (n *NoOpCollector) RecordDispatch(method, outcome string, duration time.Duration) {}

// RecordQueueDepth does nothing (no-op implementation)
func (n *NoOpCollector) RecordQueueDepth(queue string, depth int) {}

// RecordRetryExhausted does nothing (no-op implementation)
func (n *NoOpCollector) RecordRetryExhausted(method string) {}

// RecordDedupe does nothing (no-op implementation)
func (n *NoOpCollector) RecordDedupe(method string) {}

// RecordPrune does nothing (no-op implementation)
func (n *NoOpCollector) RecordPrune(evictedEntries int, evictedBytes int64) {}

// DefaultCollector is the default no-op collector used when metrics are not enabled
var DefaultCollector Collector = &NoOpCollector{}

// Verify that NoOpCollector implements Collector interface
var _ Collector = (*NoOpCollector)(nil)
