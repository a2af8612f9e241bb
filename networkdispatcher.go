package volley

import (
	"context"
	"fmt"
	"time"
)

// runNetworkDispatcher is one worker in the Network Dispatcher pool (§4.3).
// A canceled request is dropped here only when it has no possible
// followers (ShouldCache false, i.e. it bypassed the cache entirely);
// canceled dedup leaders still run, since followers coalesced onto them
// are waiting for a result regardless of the leader's own cancellation.
func (q *RequestQueue) runNetworkDispatcher(ctx context.Context) {
	for {
		req, ok := q.networkQueue.Take()
		if !ok {
			return
		}
		q.reportQueueDepths()
		if req.Canceled() && !req.ShouldCache {
			q.Finish(req, "canceled-before-dispatch")
			continue
		}
		q.dispatchNetwork(ctx, req)
	}
}

// dispatchNetwork runs the attempt/retry loop against the Transport,
// classifying the outcome and advancing req's RetryPolicy on a retryable
// failure, per §4.3 and retrypolicy.go.
func (q *RequestQueue) dispatchNetwork(ctx context.Context, req *Request) {
	var resp *NetworkResponse
	var dispatchErr error

	for {
		timeoutMs := int64(DefaultTimeoutMs)
		if req.RetryPolicy != nil {
			timeoutMs = req.RetryPolicy.CurrentTimeoutMs()
		}
		attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)

		start := time.Now()
		r, err := withResilience(q.resilience, func() (*NetworkResponse, error) {
			return q.transport.Perform(attemptCtx, req, req.conditionalHeaders())
		})
		dur := time.Since(start)
		cancel()

		if err == nil {
			err = classifyStatus(r)
		}

		if err == nil {
			resp = r
			q.metrics.RecordDispatch(req.Method.String(), dispatchOutcome(r), dur)
			break
		}

		if redirect, ok := err.(*RedirectError); ok && redirect.Location != "" {
			req.setRedirectURL(redirect.Location)
		}

		if !isRetryable(err) || req.RetryPolicy == nil {
			dispatchErr = err
			q.metrics.RecordDispatch(req.Method.String(), "error", dur)
			break
		}

		if retryErr := req.RetryPolicy.Retry(err); retryErr != nil {
			dispatchErr = retryErr
			q.metrics.RecordDispatch(req.Method.String(), "error", dur)
			q.metrics.RecordRetryExhausted(req.Method.String())
			break
		}
		q.metrics.RecordDispatch(req.Method.String(), "retry", dur)
	}

	q.completeNetwork(req, resp, dispatchErr)
}

// classifyStatus turns a NetworkResponse's status code into the typed
// errors of errors.go, per §7's error taxonomy. A nil return means the
// response should proceed to parsing.
func classifyStatus(resp *NetworkResponse) error {
	switch {
	case resp.NotModified, resp.StatusCode == 304:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == 301 || resp.StatusCode == 302 || resp.StatusCode == 307 || resp.StatusCode == 308:
		return &RedirectError{Response: resp, Location: resp.HeaderString("Location"), NetworkTimeMs: resp.NetworkTimeMs}
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return &AuthFailureError{Response: resp, NetworkTimeMs: resp.NetworkTimeMs}
	case resp.StatusCode >= 400:
		return &ServerError{Response: resp, NetworkTimeMs: resp.NetworkTimeMs}
	default:
		return nil
	}
}

func dispatchOutcome(resp *NetworkResponse) string {
	if resp.NotModified || resp.StatusCode == 304 {
		return "not_modified"
	}
	return "success"
}

// completeNetwork classifies the attempt's outcome, updates the cache on a
// fresh or revalidated response, and delivers the result to req and to
// every request coalesced onto it (§4.1's dedup contract, §4.3 step 6).
func (q *RequestQueue) completeNetwork(req *Request, resp *NetworkResponse, dispatchErr error) {
	key := ""
	if req.ShouldCache {
		key = req.CacheKey
	}
	followers := q.finishWaiting(key)

	if dispatchErr != nil {
		q.deliverError(req, dispatchErr)
		for _, follower := range followers {
			q.deliverError(follower, dispatchErr)
		}
		return
	}

	// A 304 must never be handed to the parser as-is: its Data is empty, and
	// a strict parser (e.g. JSON) would error on it. Reconstruct a synthetic
	// 200 from the cached body first, so the parser only ever sees "here are
	// bytes" (§4.3 step 6, DESIGN.md's "304 revalidation" decision). revalidated
	// is tracked separately from resp.NotModified because resp itself is
	// replaced below — the parser's own CacheEntry output must never
	// overwrite the header-merged entry just written for a 304.
	revalidated := resp.NotModified
	if revalidated {
		if entry := req.getCacheEntry(); entry != nil {
			refreshed := *entry
			applyValidators(&refreshed, resp)
			if q.cache != nil && req.ShouldCache {
				_ = q.cache.Put(req.CacheKey, &refreshed)
			}
			resp = &NetworkResponse{StatusCode: 200, Data: entry.Data, NetworkTimeMs: resp.NetworkTimeMs}
		}
		// No cache entry to revalidate against is anomalous (§4.3 step 6):
		// fall through and parse the empty-body 304 as-is.
	}

	parsed, parseErr := req.parser.Parse(resp)
	if parseErr != nil {
		wrapped := &ParseError{Response: resp, Cause: parseErr}
		q.deliverError(req, wrapped)
		for _, follower := range followers {
			q.deliverError(follower, wrapped)
		}
		return
	}

	if !revalidated && parsed.CacheEntry != nil && req.ShouldCache && q.cache != nil {
		_ = q.cache.Put(req.CacheKey, parsed.CacheEntry)
	}

	q.deliver(req, parsed)
	for _, follower := range followers {
		q.deliver(follower, parsed)
	}
}

func (q *RequestQueue) deliver(req *Request, parsed *ParsedResponse) {
	q.delivery.Post(req, parsed)
	q.Finish(req, "delivered")
	q.recordAudit(req, "delivered", false, nil)
}

func (q *RequestQueue) deliverError(req *Request, err error) {
	q.delivery.PostError(req, err)
	q.Finish(req, "error")
	q.recordAudit(req, "error", false, err)
}

// recordAudit reports rec to the configured AuditSink, if any. cacheHit
// marks a result that was served from the disk cache without reaching the
// network.
func (q *RequestQueue) recordAudit(req *Request, outcome string, cacheHit bool, err error) {
	if q.auditSink == nil {
		return
	}
	rec := AuditRecord{
		Identifier: req.Identifier(),
		Method:     req.Method.String(),
		URL:        req.EffectiveURL(),
		Outcome:    outcome,
		CacheHit:   cacheHit,
		OccurredAt: time.Now(),
	}
	if req.RetryPolicy != nil {
		rec.RetryCount = req.RetryPolicy.CurrentRetryCount()
	}
	if err != nil {
		rec.Outcome = fmt.Sprintf("%s: %v", outcome, err)
	}
	q.auditSink.Record(rec)
}
