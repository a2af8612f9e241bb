// Package postgres provides a pgx-backed volley.AuditSink that writes a
// fire-and-forget record of every completed dispatch to PostgreSQL.
package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/volleygo/volley"
)

// DefaultTableName is the table audit records are inserted into.
const DefaultTableName = "volley_audit_log"

// DefaultQueueSize is the buffered channel capacity backing Sink.Record.
// When full, Record drops the record rather than blocking the dispatcher
// goroutine that called it.
const DefaultQueueSize = 1024

// DefaultFlushInterval is how often queued records are sent to the database
// as one pgx batch of single-row inserts.
const DefaultFlushInterval = 2 * time.Second

// DefaultBatchSize caps how many records one flush sends in a single batch.
const DefaultBatchSize = 200

// Config holds the configuration for the PostgreSQL audit sink.
type Config struct {
	// TableName is the name of the table records are inserted into
	// (default: "volley_audit_log").
	TableName string
	// QueueSize is the buffered channel capacity (default: 1024).
	QueueSize int
	// FlushInterval batches queued records together (default: 2s).
	FlushInterval time.Duration
	// BatchSize caps records sent per flush batch (default: 200).
	BatchSize int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		TableName:     DefaultTableName,
		QueueSize:     DefaultQueueSize,
		FlushInterval: DefaultFlushInterval,
		BatchSize:     DefaultBatchSize,
	}
}

// Sink is an async, write-only volley.AuditSink backed by a pgxpool.Pool.
// Record enqueues onto an internal channel and returns immediately; a
// background goroutine batches queued records into periodic inserts.
type Sink struct {
	pool   *pgxpool.Pool
	cfg    Config
	queue  chan volley.AuditRecord
	done   chan struct{}
	logger *slog.Logger
}

// New creates a Sink writing through pool. Call Run in its own goroutine to
// start the flush loop, and Close to drain and stop it.
func New(pool *pgxpool.Pool, cfg *Config) *Sink {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	resolved := *cfg
	if resolved.TableName == "" {
		resolved.TableName = DefaultTableName
	}
	if resolved.QueueSize <= 0 {
		resolved.QueueSize = DefaultQueueSize
	}
	if resolved.FlushInterval <= 0 {
		resolved.FlushInterval = DefaultFlushInterval
	}
	if resolved.BatchSize <= 0 {
		resolved.BatchSize = DefaultBatchSize
	}
	return &Sink{
		pool:   pool,
		cfg:    resolved,
		queue:  make(chan volley.AuditRecord, resolved.QueueSize),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
}

// CreateTable creates the audit table if it doesn't exist.
func (s *Sink) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.cfg.TableName + ` (
			id SERIAL PRIMARY KEY,
			identifier TEXT NOT NULL,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			cache_hit BOOLEAN NOT NULL,
			retry_count INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)
	`
	_, err := s.pool.Exec(ctx, query)
	return err
}

// Record enqueues rec for the next flush. It never blocks: if the queue is
// full the record is dropped and logged, since an audit trail must never
// slow down request delivery.
func (s *Sink) Record(rec volley.AuditRecord) {
	select {
	case s.queue <- rec:
	default:
		s.logger.Warn("auditlog/postgres: queue full, dropping record", "identifier", rec.Identifier)
	}
}

// Run flushes queued records every FlushInterval until ctx is canceled or
// Close is called, then performs one final flush.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(ctx)
		case <-s.done:
			s.flush(context.Background())
			return
		case <-ctx.Done():
			s.flush(context.Background())
			return
		}
	}
}

// Close stops Run's flush loop after one last drain.
func (s *Sink) Close() {
	close(s.done)
}

func (s *Sink) flush(ctx context.Context) {
	batch := make([]volley.AuditRecord, 0, s.cfg.BatchSize)
drain:
	for len(batch) < s.cfg.BatchSize {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		return
	}

	query := `INSERT INTO ` + s.cfg.TableName + `
		(identifier, method, url, outcome, status_code, cache_hit, retry_count, duration_ms, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	var pgBatch pgx.Batch
	for _, rec := range batch {
		pgBatch.Queue(query,
			rec.Identifier, rec.Method, rec.URL, rec.Outcome,
			rec.StatusCode, rec.CacheHit, rec.RetryCount, rec.DurationMs, rec.OccurredAt,
		)
	}

	results := s.pool.SendBatch(ctx, &pgBatch)
	defer results.Close()
	for range batch {
		if _, err := results.Exec(); err != nil {
			s.logger.Warn("auditlog/postgres: flush failed", "records", len(batch), "error", err)
			return
		}
	}
}

// Verify interface implementation at compile time
var _ volley.AuditSink = (*Sink)(nil)
