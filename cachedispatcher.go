package volley

import (
	"context"
	"time"
)

// runCacheDispatcher is the single Cache Dispatcher worker loop (§4.2): take
// a request, check the disk cache, and either deliver a fresh hit, deliver a
// soft-expired hit as an intermediate result and continue to the network
// for a fresh one, or forward a miss/hard-expired entry to the network
// queue.
func (q *RequestQueue) runCacheDispatcher(ctx context.Context) {
	for {
		req, ok := q.cacheQueue.Take()
		if !ok {
			return
		}
		q.reportQueueDepths()
		if req.Canceled() {
			q.Finish(req, "canceled-before-cache-lookup")
			continue
		}
		q.dispatchCacheLookup(req)
	}
}

func (q *RequestQueue) dispatchCacheLookup(req *Request) {
	start := time.Now()
	entry, hit := q.cache.Get(req.CacheKey)
	now := time.Now()

	if !hit {
		q.metrics.RecordCacheLookup("miss", time.Since(start))
		q.forwardToNetwork(req)
		return
	}

	nowMs := now.UnixMilli()
	if entry.IsExpired(nowMs) {
		q.metrics.RecordCacheLookup("expired", time.Since(start))
		req.setCacheEntry(entry)
		q.forwardToNetwork(req)
		return
	}

	resp, err := req.parser.Parse(&NetworkResponse{
		StatusCode:  200,
		Data:        entry.Data,
		NotModified: false,
	})
	if err != nil {
		// A cached body the current parser can no longer make sense of
		// (e.g. a schema change) is treated like a miss: drop the entry and
		// refetch, rather than surfacing a parse error for a cache hit.
		GetLogger().Warn("volley: cache entry failed to parse, refetching", "key", req.CacheKey, "error", err)
		_ = q.cache.Remove(req.CacheKey)
		q.forwardToNetwork(req)
		return
	}

	if entry.RefreshNeeded(nowMs) {
		q.metrics.RecordCacheLookup("soft_expired", time.Since(start))
		resp.Intermediate = true
		req.setCacheEntry(entry)
		q.delivery.PostWithContinuation(req, resp, func() {
			q.forwardToNetwork(req)
		})
		return
	}

	q.metrics.RecordCacheLookup("hit", time.Since(start))
	q.delivery.Post(req, resp)
	q.Finish(req, "cache-hit")
	q.recordAudit(req, "delivered", true, nil)
}

// forwardToNetwork routes a cache miss/expired/soft-expired-continuation
// request onto the Network Dispatcher, coalescing it with any in-flight
// fetch sharing the same cache key.
func (q *RequestQueue) forwardToNetwork(req *Request) {
	if !req.ShouldCache {
		q.networkQueue.Push(req)
		q.reportQueueDepths()
		return
	}
	q.enqueueNetwork(req, req.CacheKey)
	q.reportQueueDepths()
}
