package volley

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var identifierCounter int64

// nextIdentifier builds the opaque, unique-per-submission identifier
// described in §3: sha1("Request:" + method + ":" + url + ":" + ms_timestamp
// + ":" + monotonic_counter).
func nextIdentifier(method Method, rawURL string) string {
	n := atomic.AddInt64(&identifierCounter, 1)
	ms := time.Now().UnixMilli()
	h := sha1.New()
	fmt.Fprintf(h, "Request:%s:%s:%d:%d", method.String(), rawURL, ms, n)
	return hex.EncodeToString(h.Sum(nil))
}

// Request is an immutable submission descriptor, except for the handful of
// queue-managed fields (sequence, canceled, responseDelivered, redirectURL,
// cacheEntry) that the pipeline itself mutates over the request's lifetime.
type Request struct {
	Method   Method
	URL      string
	Headers  map[string]string
	Body     []byte
	Priority Priority
	CacheKey string

	// ShouldCache defaults to true; set false to bypass the cache stage
	// entirely and go straight to the network queue (§4.1 step 1).
	ShouldCache bool

	RetryPolicy *RetryPolicy
	Tag         any

	parser Parser

	onSuccess func(*ParsedResponse)
	onError   func(error)

	identifier          string
	cacheKeyHeaderNames []string

	mu                sync.Mutex
	sequence          int64
	sequenceAssigned  bool
	canceled          bool
	responseDelivered bool
	redirectURL       string
	cacheEntry        *CacheEntry
}

// RequestOption configures a Request at construction time.
type RequestOption func(*Request)

func WithHeaders(h map[string]string) RequestOption {
	return func(r *Request) { r.Headers = h }
}

func WithPriority(p Priority) RequestOption {
	return func(r *Request) { r.Priority = p }
}

func WithCacheKey(key string) RequestOption {
	return func(r *Request) { r.CacheKey = key }
}

func WithShouldCache(should bool) RequestOption {
	return func(r *Request) { r.ShouldCache = should }
}

func WithRetryPolicy(rp *RetryPolicy) RequestOption {
	return func(r *Request) { r.RetryPolicy = rp }
}

func WithTag(tag any) RequestOption {
	return func(r *Request) { r.Tag = tag }
}

// WithCacheKeyHeaders folds the named request header values into the
// default cache key (effective URL), so that e.g. an Authorization header
// can separate cache entries per identity. Has no effect if WithCacheKey
// sets an explicit key.
func WithCacheKeyHeaders(names []string) RequestOption {
	return func(r *Request) { r.cacheKeyHeaderNames = names }
}

// WithParams builds a POST/PUT/PATCH body from params, URL-encoded with the
// standard application/x-www-form-urlencoded content type, per §3. It does
// nothing for methods that don't carry a body.
func WithParams(params map[string]string) RequestOption {
	return func(r *Request) {
		if len(params) == 0 {
			return
		}
		switch r.Method {
		case MethodPost, MethodPut, MethodPatch, MethodLegacyGetOrPost:
		default:
			return
		}
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := url.Values{}
		for _, k := range keys {
			vals.Set(k, params[k])
		}
		r.Body = []byte(vals.Encode())
		if r.Headers == nil {
			r.Headers = map[string]string{}
		}
		if _, ok := r.Headers["Content-Type"]; !ok {
			r.Headers["Content-Type"] = "application/x-www-form-urlencoded; charset=UTF-8"
		}
	}
}

// NewRequest constructs a Request for a parser that produces T, with
// listener closures invoked on success/error — the "pair of closures" model
// prescribed by Design Notes §9 in place of Listener<T>/ErrorListener
// interfaces.
func NewRequest[T any](
	method Method,
	rawURL string,
	parse func(resp *NetworkResponse) (T, *CacheEntry, bool, error),
	onSuccess func(result T, intermediate bool),
	onError func(error),
	opts ...RequestOption,
) *Request {
	r := &Request{
		Method:      method,
		URL:         rawURL,
		Priority:    PriorityNormal,
		ShouldCache: true,
		RetryPolicy: DefaultRetryPolicy(),
		identifier:  nextIdentifier(method, rawURL),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.CacheKey == "" {
		r.CacheKey = cacheKeyWithHeaders(r.EffectiveURL(), r.Headers, r.cacheKeyHeaderNames)
	}
	r.parser = ParserFunc[T]{ParseFn: func(resp *NetworkResponse) (T, *CacheEntry, bool, error) {
		return parse(resp)
	}}
	r.onSuccess = func(p *ParsedResponse) {
		if onSuccess != nil {
			onSuccess(Result[T](p), p.Intermediate)
		}
	}
	r.onError = onError
	return r
}

// Identifier returns the opaque, unique identifier assigned at construction.
func (r *Request) Identifier() string { return r.identifier }

// EffectiveURL is the redirect URL if one has been set by a 3xx response,
// otherwise the original URL. This is the default cache key per §3.
func (r *Request) EffectiveURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.redirectURL != "" {
		return r.redirectURL
	}
	return r.URL
}

func (r *Request) setRedirectURL(u string) {
	r.mu.Lock()
	r.redirectURL = u
	r.mu.Unlock()
}

// assignSequence sets sequence exactly once, per the invariant in §3.
func (r *Request) assignSequence(seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sequenceAssigned {
		panic("volley: sequence assigned twice")
	}
	r.sequence = seq
	r.sequenceAssigned = true
}

func (r *Request) Sequence() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sequence
}

// Cancel flips the cooperative cancellation flag. Dispatchers observe it at
// dequeue time; in-flight transport calls are not aborted (§5).
func (r *Request) Cancel() {
	r.mu.Lock()
	r.canceled = true
	r.mu.Unlock()
}

func (r *Request) Canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canceled
}

func (r *Request) setCacheEntry(e *CacheEntry) {
	r.mu.Lock()
	r.cacheEntry = e
	r.mu.Unlock()
}

func (r *Request) getCacheEntry() *CacheEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cacheEntry
}

// markDelivered transitions responseDelivered false->true exactly once and
// reports whether this call performed the transition.
func (r *Request) markDelivered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responseDelivered {
		return false
	}
	r.responseDelivered = true
	return true
}

func (r *Request) delivered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responseDelivered
}

// conditionalHeaders builds the If-None-Match / If-Modified-Since pair from
// a carried cache entry, per §4.3 step 4.
func (r *Request) conditionalHeaders() map[string]string {
	entry := r.getCacheEntry()
	if entry == nil {
		return nil
	}
	h := map[string]string{}
	if entry.ETag != "" {
		h["If-None-Match"] = entry.ETag
	}
	if entry.LastModified != 0 {
		h["If-Modified-Since"] = formatHTTPDate(entry.LastModified)
	}
	return h
}

func formatHTTPDate(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	return t.Format(httpDateLayout)
}

// httpDateLayout is the RFC 1123 date format HTTP validators use, rendered
// with the GMT literal net/http.TimeFormat also uses.
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// cacheKeyWithHeaders mirrors the teacher's cacheKey helper. NewRequest uses
// it to build the default key: with no header names (the default) it
// returns key unchanged; names set through WithCacheKeyHeaders fold those
// request header values into the key, e.g. to keep an Authorization-scoped
// cache from colliding across identities.
func cacheKeyWithHeaders(key string, headers map[string]string, names []string) string {
	if len(names) == 0 {
		return key
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if v, ok := headers[n]; ok && v != "" {
			parts = append(parts, n+":"+v)
		}
	}
	if len(parts) == 0 {
		return key
	}
	sort.Strings(parts)
	return key + "|" + strings.Join(parts, "|")
}
