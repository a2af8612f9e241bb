package volley

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ComputeFreshness derives the TTL and SoftTTL (both millisecond epoch,
// per §3) a response's headers imply, given the moment it was received.
// Cache-Control: max-age sets TTL; stale-while-revalidate sets SoftTTL to
// TTL itself and pushes the hard expiry out by that many additional
// seconds. A response with neither directive gets TTL=0, which
// CacheEntry.IsExpired treats as already expired, so every later hit is
// revalidated with the stored validators.
func ComputeFreshness(headers http.Header, receivedAt time.Time) (ttlMs, softTTLMs int64) {
	if headers == nil {
		return 0, 0
	}
	directives := parseCacheControlDirectives(headers.Get("Cache-Control"))

	if _, noStore := directives["no-store"]; noStore {
		return 0, 0
	}

	maxAge, hasMaxAge := directives["max-age"]
	if !hasMaxAge {
		return 0, 0
	}
	seconds, err := strconv.ParseInt(maxAge, 10, 64)
	if err != nil || seconds < 0 {
		return 0, 0
	}
	ttl := receivedAt.Add(time.Duration(seconds) * time.Second).UnixMilli()

	if swr, ok := directives["stale-while-revalidate"]; ok {
		swrSeconds, err := strconv.ParseInt(swr, 10, 64)
		if err == nil && swrSeconds > 0 {
			return receivedAt.Add(time.Duration(seconds+swrSeconds) * time.Second).UnixMilli(), ttl
		}
	}
	return ttl, ttl
}

func parseCacheControlDirectives(header string) map[string]string {
	directives := map[string]string{}
	if header == "" {
		return directives
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		directives[strings.ToLower(strings.TrimSpace(name))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return directives
}

// applyValidators refreshes an existing CacheEntry's server-assigned
// timestamps after a 304 Not Modified response revalidates it (§4.3 step
// 6), leaving Data untouched and merging the revalidation response's
// headers into the entry's own ResponseHeaders (e.g. a refreshed Date).
func applyValidators(entry *CacheEntry, resp *NetworkResponse) {
	now := time.Now()
	if etag := resp.HeaderString("ETag"); etag != "" {
		entry.ETag = etag
	}
	if lm := resp.HeaderString("Last-Modified"); lm != "" {
		if t, err := time.Parse(httpDateLayout, lm); err == nil {
			entry.LastModified = t.UnixMilli()
		}
	}
	entry.ServerDate = now.UnixMilli()
	entry.TTL, entry.SoftTTL = ComputeFreshness(resp.Headers, now)

	if len(resp.Headers) > 0 {
		if entry.ResponseHeaders == nil {
			entry.ResponseHeaders = map[string]string{}
		}
		for name := range resp.Headers {
			entry.ResponseHeaders[name] = resp.HeaderString(name)
		}
	}
}
