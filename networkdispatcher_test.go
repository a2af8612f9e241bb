package volley

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func newTestQueue(t *testing.T, transport Transport) *RequestQueue {
	t.Helper()
	q, err := NewQueue(WithTransport(transport))
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	q.Start()
	t.Cleanup(q.Stop)
	return q
}

func TestClassifyStatusSuccessAndNotModified(t *testing.T) {
	if err := classifyStatus(&NetworkResponse{StatusCode: 200}); err != nil {
		t.Errorf("200: got %v, want nil", err)
	}
	if err := classifyStatus(&NetworkResponse{NotModified: true, StatusCode: 304}); err != nil {
		t.Errorf("304: got %v, want nil", err)
	}
}

func TestClassifyStatusRedirect(t *testing.T) {
	resp := &NetworkResponse{StatusCode: 302, Headers: http.Header{"Location": []string{"https://example.com/b"}}}
	err := classifyStatus(resp)
	redirect, ok := err.(*RedirectError)
	if !ok {
		t.Fatalf("got %T, want *RedirectError", err)
	}
	if redirect.Location != "https://example.com/b" {
		t.Errorf("Location = %q", redirect.Location)
	}
}

func TestClassifyStatusAuthFailure(t *testing.T) {
	if _, ok := classifyStatus(&NetworkResponse{StatusCode: 401}).(*AuthFailureError); !ok {
		t.Fatal("expected *AuthFailureError for 401")
	}
	if _, ok := classifyStatus(&NetworkResponse{StatusCode: 403}).(*AuthFailureError); !ok {
		t.Fatal("expected *AuthFailureError for 403")
	}
}

func TestClassifyStatusServerError(t *testing.T) {
	if _, ok := classifyStatus(&NetworkResponse{StatusCode: 500}).(*ServerError); !ok {
		t.Fatal("expected *ServerError for 500")
	}
	if _, ok := classifyStatus(&NetworkResponse{StatusCode: 418}).(*ServerError); !ok {
		t.Fatal("expected *ServerError for any >= 400")
	}
}

func TestDispatchNetworkRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	transport := TransportFunc(func(ctx context.Context, req *Request, extra map[string]string) (*NetworkResponse, error) {
		n := calls.Add(1)
		if n < 3 {
			// 401/403, like 3xx redirects, are status-derived errors
			// isRetryable lets through the retry loop (§7's
			// auth-failure-is-retryable rule).
			return &NetworkResponse{StatusCode: 401}, nil
		}
		return &NetworkResponse{StatusCode: 200, Data: []byte("ok")}, nil
	})
	q := newTestQueue(t, transport)

	done := make(chan string, 1)
	req := NewRequest(MethodGet, "https://example.com/flaky", stringParser,
		func(result string, intermediate bool) { done <- result },
		func(err error) { t.Errorf("unexpected error: %v", err) },
		WithShouldCache(false),
		WithRetryPolicy(NewRetryPolicy(50, 5, 1.0)),
	)
	q.Submit(req)

	select {
	case got := <-done:
		if got != "ok" {
			t.Fatalf("result = %q, want ok", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never delivered")
	}
	if calls.Load() != 3 {
		t.Fatalf("transport called %d times, want 3", calls.Load())
	}
}

func TestDispatchNetworkGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int64
	transport := TransportFunc(func(ctx context.Context, req *Request, extra map[string]string) (*NetworkResponse, error) {
		calls.Add(1)
		return nil, &TimeoutError{Cause: errors.New("deadline exceeded")}
	})
	q := newTestQueue(t, transport)

	done := make(chan error, 1)
	req := NewRequest(MethodGet, "https://example.com/always-fails", stringParser,
		func(result string, intermediate bool) { t.Error("unexpected success") },
		func(err error) { done <- err },
		WithShouldCache(false),
		WithRetryPolicy(NewRetryPolicy(20, 2, 1.0)),
	)
	q.Submit(req)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never errored")
	}
	if calls.Load() != 3 {
		t.Fatalf("transport called %d times, want 3 (1 initial + 2 retries)", calls.Load())
	}
}

// strictParser rejects an empty body, the way a JSON/protobuf parser would.
// It exists to catch the regression where a 304's raw (bodyless)
// NetworkResponse was handed to the parser before the cached body was
// reconstructed.
func strictParser(resp *NetworkResponse) (string, *CacheEntry, bool, error) {
	if len(resp.Data) == 0 {
		return "", nil, false, errors.New("strictParser: empty body")
	}
	future := time.Now().Add(time.Minute).UnixMilli()
	return string(resp.Data), &CacheEntry{Data: resp.Data, TTL: future, SoftTTL: future}, false, nil
}

// TestNetworkDispatcher304DeliversCachedBody is scenario S3: a cache primed
// with body "X" and an expired TTL forces revalidation; the transport
// replies 304, and the caller must receive the cached body "X" (not a
// ParseError from an empty-body parse), with headers merged and the cache
// body left unchanged (§4.3 step 6, property #4).
func TestNetworkDispatcher304DeliversCachedBody(t *testing.T) {
	cache := newFakeCache()
	cache.entries["https://example.com/conditional"] = &CacheEntry{
		Data: []byte("X"),
		ETag: "v1",
		TTL:  0, // already expired: forces revalidation
	}

	var gotIfNoneMatch string
	transport := TransportFunc(func(ctx context.Context, req *Request, extra map[string]string) (*NetworkResponse, error) {
		gotIfNoneMatch = extra["If-None-Match"]
		return &NetworkResponse{
			StatusCode:  304,
			NotModified: true,
			Headers:     http.Header{"Date": []string{"Wed, 21 Oct 2026 07:28:00 GMT"}},
		}, nil
	})

	q, err := NewQueue(WithTransport(transport), WithCache(cache))
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	q.Start()
	t.Cleanup(q.Stop)

	done := make(chan string, 1)
	req := NewRequest(MethodGet, "https://example.com/conditional", strictParser,
		func(result string, intermediate bool) { done <- result },
		func(err error) { t.Fatalf("unexpected error (304 should deliver the cached body): %v", err) },
	)
	q.Submit(req)

	select {
	case got := <-done:
		if got != "X" {
			t.Fatalf("delivered body = %q, want %q", got, "X")
		}
	case <-time.After(time.Second):
		t.Fatal("request never delivered")
	}

	if gotIfNoneMatch != "v1" {
		t.Fatalf("If-None-Match sent = %q, want %q", gotIfNoneMatch, "v1")
	}

	entry, ok := cache.Get("https://example.com/conditional")
	if !ok {
		t.Fatal("cache entry missing after revalidation")
	}
	if string(entry.Data) != "X" {
		t.Fatalf("cached body mutated by 304: got %q, want %q", entry.Data, "X")
	}
	if entry.ResponseHeaders["Date"] != "Wed, 21 Oct 2026 07:28:00 GMT" {
		t.Fatalf("merged headers = %v, want refreshed Date header", entry.ResponseHeaders)
	}
}

func TestDispatchNetworkNonRetryableFailsImmediately(t *testing.T) {
	var calls atomic.Int64
	transport := TransportFunc(func(ctx context.Context, req *Request, extra map[string]string) (*NetworkResponse, error) {
		calls.Add(1)
		return &NetworkResponse{StatusCode: 500}, nil
	})
	q := newTestQueue(t, transport)

	done := make(chan error, 1)
	req := NewRequest(MethodGet, "https://example.com/server-error", stringParser,
		func(result string, intermediate bool) { t.Error("unexpected success") },
		func(err error) { done <- err },
		WithShouldCache(false),
		WithRetryPolicy(NewRetryPolicy(20, 5, 1.0)),
	)
	q.Submit(req)

	select {
	case err := <-done:
		var serverErr *ServerError
		if !errors.As(err, &serverErr) {
			t.Fatalf("got %T, want *ServerError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never errored")
	}
	if calls.Load() != 1 {
		t.Fatalf("transport called %d times, want 1 (ServerError isn't retryable)", calls.Load())
	}
}
