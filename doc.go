// Package volley provides a priority-ordered, deduplicating, caching pipeline
// for dispatching typed HTTP requests.
//
// Callers submit a Request to a RequestQueue. The queue assigns a monotonic
// sequence number, deduplicates submissions that share a cache key, and
// routes cacheable requests to a single cache dispatcher (which can satisfy
// the request from disk, trigger a soft-TTL background refresh, or demote it
// to the network) and everything else directly to a pool of network
// dispatchers. Parsed results or typed errors are handed to a Delivery, which
// is responsible for posting them onto whatever execution context the caller
// cares about (a UI thread, an actor mailbox, or — in the common case — a
// plain goroutine).
//
// The concrete HTTP transport, the per-request byte-to-T parser, and the
// delivery target are all external collaborators the caller supplies; this
// package owns only the pipeline: queueing, deduplication, the on-disk cache
// format, and the retry/backoff state machine.
package volley
