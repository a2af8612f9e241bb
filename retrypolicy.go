package volley

import "sync"

// Default retry state, matching §3's Retry state defaults.
const (
	DefaultTimeoutMs         = 2500
	DefaultMaxRetries        = 0
	DefaultBackoffMultiplier = 1.0
)

// RetryPolicy is mutable per-request state tracking the current timeout, the
// number of attempts used, and whether another attempt is permitted. It is
// owned by the Request and is not safe to share between requests.
type RetryPolicy struct {
	mu                sync.Mutex
	currentTimeoutMs  int64
	currentRetryCount int
	maxRetries        int
	backoffMultiplier float64
}

// NewRetryPolicy builds a RetryPolicy with the given initial timeout, max
// retry count, and backoff multiplier. A zero initialTimeoutMs falls back to
// DefaultTimeoutMs.
func NewRetryPolicy(initialTimeoutMs int64, maxRetries int, backoffMultiplier float64) *RetryPolicy {
	if initialTimeoutMs <= 0 {
		initialTimeoutMs = DefaultTimeoutMs
	}
	return &RetryPolicy{
		currentTimeoutMs:  initialTimeoutMs,
		maxRetries:        maxRetries,
		backoffMultiplier: backoffMultiplier,
	}
}

// DefaultRetryPolicy returns a RetryPolicy with the spec's defaults: a
// 2500ms initial timeout, zero retries, and a 1.0 backoff multiplier (so a
// non-zero max retries would double the timeout on each retry).
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(DefaultTimeoutMs, DefaultMaxRetries, DefaultBackoffMultiplier)
}

// CurrentTimeoutMs returns the timeout to use for the next attempt.
func (r *RetryPolicy) CurrentTimeoutMs() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTimeoutMs
}

// CurrentRetryCount returns the number of retry attempts already consumed.
func (r *RetryPolicy) CurrentRetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRetryCount
}

// Retry advances the retry state in response to err: it increments the
// attempt count and grows the timeout by the backoff multiplier. If the
// attempt budget (maxRetries) is exhausted, it returns err unchanged so the
// caller propagates it as a final failure; otherwise it returns nil and the
// caller should retry using the new CurrentTimeoutMs.
func (r *RetryPolicy) Retry(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentRetryCount++
	r.currentTimeoutMs += int64(float64(r.currentTimeoutMs) * r.backoffMultiplier)

	if r.currentRetryCount > r.maxRetries {
		return err
	}
	return nil
}
