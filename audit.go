package volley

import "time"

// AuditRecord is a fire-and-forget summary of one completed dispatch,
// handed to an AuditSink after delivery. It carries no body data — only
// metadata useful for an audit trail.
type AuditRecord struct {
	Identifier string
	Method     string
	URL        string
	Outcome    string // "delivered", or "error: <message>"; requests dropped as canceled before dispatch get no record
	StatusCode int
	CacheHit   bool
	RetryCount int
	DurationMs int64
	OccurredAt time.Time
}

// AuditSink receives AuditRecords. The Queue calls Record synchronously
// from the delivering dispatcher goroutine, so implementations must not
// block on I/O — buffer and flush asynchronously instead (see
// auditlog/postgres).
type AuditSink interface {
	Record(rec AuditRecord)
}
