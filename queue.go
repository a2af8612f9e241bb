package volley

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/volleygo/volley/metrics"
)

// RequestQueue is the entry point of the pipeline: it owns the two
// priority queues (cache-bound and network-bound), the Cache Dispatcher
// loop, the Network Dispatcher worker pool, and the waiting-map used to
// coalesce concurrent requests for the same cache key (§4.1, §4.2, §4.3).
type RequestQueue struct {
	cache      Cache
	transport  Transport
	delivery   Delivery
	executor   Executor
	resilience *ResilienceConfig
	metrics    metrics.Collector
	auditSink  AuditSink

	numNetworkWorkers int

	cacheQueue   *priorityQueue
	networkQueue *priorityQueue

	sequence atomic.Int64

	// waiting coalesces concurrent requests sharing a cache key that all
	// need a network fetch: the first arrival (the leader) is pushed to
	// networkQueue and its key recorded here with a nil-slice placeholder;
	// every later arrival for the same key is appended to that slice
	// instead of being queued itself. Once the fetch completes,
	// finishWaiting detaches the followers and completeNetwork delivers the
	// leader's result to each of them.
	waitingMu sync.Mutex
	waiting   map[string][]*Request

	// current tracks every request between Submit and Finish, for
	// CancelAll/CancelTag and Stats.
	currentMu sync.Mutex
	current   map[string]*Request

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	startOnce sync.Once
	stopOnce  sync.Once
}

// Stats is a point-in-time snapshot of queue depths and in-flight counts.
type Stats struct {
	CacheQueueDepth   int
	NetworkQueueDepth int
	InFlight          int
	Waiting           int
}

// NewQueue builds a RequestQueue. WithTransport is required; WithCache is
// optional (nil routes every request straight to the network, as if every
// Request had ShouldCache false).
func NewQueue(opts ...QueueOption) (*RequestQueue, error) {
	q := &RequestQueue{
		numNetworkWorkers: DefaultNetworkThreadPoolSize,
		metrics:           metrics.DefaultCollector,
		cacheQueue:        newPriorityQueue(),
		networkQueue:      newPriorityQueue(),
		waiting:           map[string][]*Request{},
		current:           map[string]*Request{},
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, fmt.Errorf("volley: queue option: %w", err)
		}
	}
	if q.transport == nil {
		return nil, fmt.Errorf("volley: NewQueue requires WithTransport")
	}
	if q.delivery == nil {
		q.delivery = NewExecutorDelivery(q.executor)
	}
	return q, nil
}

// Start launches the Cache Dispatcher and the Network Dispatcher worker
// pool. Calling Start more than once is a no-op.
func (q *RequestQueue) Start() {
	q.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		q.ctx = ctx
		q.cancel = cancel
		group, gctx := errgroup.WithContext(ctx)
		q.group = group
		q.ctx = gctx

		group.Go(func() error {
			q.runCacheDispatcher(gctx)
			return nil
		})
		for i := 0; i < q.numNetworkWorkers; i++ {
			group.Go(func() error {
				q.runNetworkDispatcher(gctx)
				return nil
			})
		}
	})
}

// Stop closes both priority queues, which wakes every blocked dispatcher
// goroutine, then waits for them to exit. Calling Stop more than once is a
// no-op; calling it before Start is a no-op.
func (q *RequestQueue) Stop() {
	q.stopOnce.Do(func() {
		if q.cancel == nil {
			return
		}
		q.cacheQueue.Close()
		q.networkQueue.Close()
		q.cancel()
		_ = q.group.Wait()
	})
}

// Submit assigns req its sequence number, registers it for
// cancellation/Stats tracking, and routes it to the Cache Dispatcher (if
// ShouldCache and a cache is configured) or straight to the Network
// Dispatcher otherwise. Returns req for chaining.
func (q *RequestQueue) Submit(req *Request) *Request {
	req.assignSequence(q.sequence.Add(1))

	q.currentMu.Lock()
	q.current[req.Identifier()] = req
	q.currentMu.Unlock()

	if req.ShouldCache && q.cache != nil {
		q.cacheQueue.Push(req)
	} else {
		q.networkQueue.Push(req)
	}
	q.reportQueueDepths()
	return req
}

// Finish removes req from the in-flight set. Dispatchers call this exactly
// once per request, after delivery (success, error, or drop-on-cancel).
func (q *RequestQueue) Finish(req *Request, reason string) {
	q.currentMu.Lock()
	delete(q.current, req.Identifier())
	q.currentMu.Unlock()
	GetLogger().Debug("volley: request finished", "identifier", req.Identifier(), "reason", reason)
}

// CancelAll marks every in-flight request for which filter returns true as
// canceled. A nil filter cancels everything.
func (q *RequestQueue) CancelAll(filter func(*Request) bool) {
	q.currentMu.Lock()
	defer q.currentMu.Unlock()
	for _, req := range q.current {
		if filter == nil || filter(req) {
			req.Cancel()
		}
	}
}

// CancelTag cancels every in-flight request whose Tag equals tag.
func (q *RequestQueue) CancelTag(tag any) {
	q.CancelAll(func(r *Request) bool { return r.Tag == tag })
}

// Stats returns a snapshot of current queue depths and in-flight counts.
func (q *RequestQueue) Stats() Stats {
	q.currentMu.Lock()
	inFlight := len(q.current)
	q.currentMu.Unlock()

	q.waitingMu.Lock()
	waiting := 0
	for _, followers := range q.waiting {
		waiting += len(followers)
	}
	q.waitingMu.Unlock()

	return Stats{
		CacheQueueDepth:   q.cacheQueue.Len(),
		NetworkQueueDepth: q.networkQueue.Len(),
		InFlight:          inFlight,
		Waiting:           waiting,
	}
}

func (q *RequestQueue) reportQueueDepths() {
	q.metrics.RecordQueueDepth("cache", q.cacheQueue.Len())
	q.metrics.RecordQueueDepth("network", q.networkQueue.Len())
}

// enqueueNetwork routes req to the Network Dispatcher, coalescing it with
// any in-flight fetch for the same cache key (§4.1's dedup contract). It
// returns true if req was queued as the leader for key and the caller (the
// Network Dispatcher) is responsible for calling finishWaiting once the
// fetch completes; false if req was folded into an existing leader's
// waiting list and the caller must not queue it.
func (q *RequestQueue) enqueueNetwork(req *Request, key string) (isLeader bool) {
	if key == "" {
		q.networkQueue.Push(req)
		return true
	}
	q.waitingMu.Lock()
	defer q.waitingMu.Unlock()
	if _, inFlight := q.waiting[key]; inFlight {
		q.waiting[key] = append(q.waiting[key], req)
		q.metrics.RecordDedupe(req.Method.String())
		return false
	}
	q.waiting[key] = nil
	q.networkQueue.Push(req)
	return true
}

// finishWaiting detaches and returns the followers that coalesced onto
// key's in-flight fetch, clearing the leader slot so a future request for
// the same key starts a fresh fetch.
func (q *RequestQueue) finishWaiting(key string) []*Request {
	if key == "" {
		return nil
	}
	q.waitingMu.Lock()
	defer q.waitingMu.Unlock()
	followers := q.waiting[key]
	delete(q.waiting, key)
	return followers
}
