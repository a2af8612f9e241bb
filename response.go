package volley

import (
	"net/http"

	"github.com/volleygo/volley/diskcache"
)

// NetworkResponse is what the Transport hands back from a single attempt.
type NetworkResponse struct {
	StatusCode    int
	Data          []byte
	Headers       http.Header // case-insensitive lookup via Headers.Get
	NotModified   bool
	NetworkTimeMs int64
}

// HeaderString returns the first value of the given header, or "" if unset.
// A thin convenience wrapper kept because Headers.Get already does the
// case-insensitive canonicalization net/http provides.
func (r *NetworkResponse) HeaderString(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// CacheEntry and CacheHeader are defined in diskcache, which owns the
// on-disk binary format they describe; aliased here so callers building
// Requests/Parsers never need to import diskcache directly.
type CacheEntry = diskcache.CacheEntry
type CacheHeader = diskcache.CacheHeader

// ParsedResponse is the parser's output for a single delivered attempt: a
// type-erased result (retrieve it with Result[T]), an optional cache entry
// to persist, and whether this is a soft-expired "intermediate" delivery
// that a fresh network response will follow.
type ParsedResponse struct {
	Value        any
	CacheEntry   *CacheEntry
	Intermediate bool
}

// Result type-asserts a ParsedResponse's Value to T. It panics if the parser
// stored a different type, which indicates a Parser/Request mismatch bug,
// not a runtime condition callers need to recover from.
func Result[T any](p *ParsedResponse) T {
	return p.Value.(T)
}
