package volley

import (
	"github.com/volleygo/volley/metrics"
)

// QueueOption configures a RequestQueue at construction time.
type QueueOption func(*RequestQueue) error

// DefaultNetworkThreadPoolSize is the number of Network Dispatcher workers
// started when WithNetworkThreadPoolSize is not given, matching the
// reference implementation's default thread pool size.
const DefaultNetworkThreadPoolSize = 4

// WithNetworkThreadPoolSize sets the number of Network Dispatcher worker
// goroutines (§4.3). n <= 0 falls back to DefaultNetworkThreadPoolSize.
func WithNetworkThreadPoolSize(n int) QueueOption {
	return func(q *RequestQueue) error {
		if n > 0 {
			q.numNetworkWorkers = n
		}
		return nil
	}
}

// WithCache sets the Cache Store used by the Cache Dispatcher. Optional —
// a nil cache routes every request straight to the network, as if
// ShouldCache were false on all of them.
func WithCache(cache Cache) QueueOption {
	return func(q *RequestQueue) error {
		q.cache = cache
		return nil
	}
}

// WithTransport sets the Transport used by Network Dispatcher workers.
// Required — NewQueue returns an error if no transport is configured.
func WithTransport(t Transport) QueueOption {
	return func(q *RequestQueue) error {
		q.transport = t
		return nil
	}
}

// WithDelivery overrides the default ExecutorDelivery. Most callers should
// use WithExecutor instead; this is for swapping in a Delivery with
// different double-delivery or cancellation semantics entirely.
func WithDelivery(d Delivery) QueueOption {
	return func(q *RequestQueue) error {
		q.delivery = d
		return nil
	}
}

// WithExecutor sets the Executor the default delivery posts listener
// callbacks through (§4.5). If unset, callbacks run inline on the
// delivering dispatcher goroutine.
func WithExecutor(e Executor) QueueOption {
	return func(q *RequestQueue) error {
		q.executor = e
		return nil
	}
}

// WithResilience enables an outer circuit breaker around Network Dispatcher
// transport calls (resilience.go). Disabled by default.
func WithResilience(cfg *ResilienceConfig) QueueOption {
	return func(q *RequestQueue) error {
		q.resilience = cfg
		return nil
	}
}

// WithMetrics sets the metrics.Collector instrumented throughout the
// pipeline. Defaults to metrics.DefaultCollector (a no-op).
func WithMetrics(c metrics.Collector) QueueOption {
	return func(q *RequestQueue) error {
		if c != nil {
			q.metrics = c
		}
		return nil
	}
}

// WithAuditSink registers an AuditSink that receives a fire-and-forget
// record of every delivered or errored dispatch. Requests dropped as
// canceled before dispatch produce no record.
// Optional; nil (the default) disables audit logging.
func WithAuditSink(sink AuditSink) QueueOption {
	return func(q *RequestQueue) error {
		q.auditSink = sink
		return nil
	}
}
