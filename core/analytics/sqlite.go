package analytics

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore implements Store with a SQLite backend and write batching.
type SQLiteStore struct {
	db       *sql.DB
	buffer   chan Event
	flushReq chan flushRequest
	done     chan struct{}
	wg       sync.WaitGroup

	batchSize     int
	flushInterval time.Duration
}

// flushRequest asks the flusher goroutine to write everything it holds.
type flushRequest struct {
	ctx   context.Context
	reply chan error
}

// SQLiteConfig configures the SQLite analytics store.
type SQLiteConfig struct {
	// BatchSize is the number of events batched before a write.
	BatchSize int
	// FlushInterval is the maximum time between writes.
	FlushInterval time.Duration
	// BufferSize is the size of the in-memory event buffer.
	BufferSize int
}

// NewSQLiteStore creates a SQLite-backed analytics store and starts its
// background flusher.
func NewSQLiteStore(db *sql.DB, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 10000
	}

	s := &SQLiteStore{
		db:            db,
		buffer:        make(chan Event, cfg.BufferSize),
		flushReq:      make(chan flushRequest),
		done:          make(chan struct{}),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}

	if err := s.createTable(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.flusher()

	return s, nil
}

func (s *SQLiteStore) createTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS request_events (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			module TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_request_events_module ON request_events(module);
		CREATE INDEX IF NOT EXISTS idx_request_events_timestamp ON request_events(timestamp);
	`)
	return err
}

// Record buffers an event (non-blocking).
func (s *SQLiteStore) Record(event Event) {
	select {
	case s.buffer <- event:
	default:
		// Buffer full, drop event (best-effort)
	}
}

// Flush forces pending events to be written. The request is served by the
// flusher goroutine, the single owner of the in-progress batch, so events
// it has already pulled off the buffer are written too.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, reply: make(chan error, 1)}

	select {
	case s.flushReq <- req:
	case <-s.done:
		// Flusher stopped; its shutdown path already wrote the batch,
		// only the buffer can still hold events.
		if events := s.drain(); len(events) > 0 {
			return s.write(ctx, events)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteStore) drain() []Event {
	var events []Event
	for {
		select {
		case e := <-s.buffer:
			events = append(events, e)
		default:
			return events
		}
	}
}

func (s *SQLiteStore) flusher() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	var batch []Event

	for {
		select {
		case <-s.done:
			if len(batch) > 0 {
				s.write(context.Background(), batch)
			}
			if remaining := s.drain(); len(remaining) > 0 {
				s.write(context.Background(), remaining)
			}
			return

		case e := <-s.buffer:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				s.write(context.Background(), batch)
				batch = nil
			}

		case req := <-s.flushReq:
			batch = append(batch, s.drain()...)
			var err error
			if len(batch) > 0 {
				err = s.write(req.ctx, batch)
				batch = nil
			}
			req.reply <- err

		case <-ticker.C:
			if len(batch) > 0 {
				s.write(context.Background(), batch)
				batch = nil
			}
		}
	}
}

func (s *SQLiteStore) write(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO request_events (id, timestamp, module, method, path, status_code, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}

		_, err := stmt.ExecContext(ctx,
			e.ID, e.Timestamp.Format(time.RFC3339Nano),
			e.Module, e.Method, e.Path, e.StatusCode, e.DurationNS,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ModuleSummaries returns per-module aggregates over all stored events.
func (s *SQLiteStore) ModuleSummaries(ctx context.Context) ([]ModuleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN status_code >= 500 THEN 1 ELSE 0 END), 0),
		       COALESCE(CAST(AVG(duration_ns) AS INTEGER), 0)
		FROM request_events
		GROUP BY module
		ORDER BY module
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleSummary
	for rows.Next() {
		var m ModuleSummary
		if err := rows.Scan(&m.Module, &m.Requests, &m.Errors, &m.AvgDurationNS); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close stops the flusher, writes remaining events, and leaves the
// database handle to the caller.
func (s *SQLiteStore) Close() error {
	close(s.done)
	s.wg.Wait()
	return nil
}
