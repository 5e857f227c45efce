package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Pure Go SQLite driver, avoids a cgo cross-compilation step.
	_ "modernc.org/sqlite"

	"github.com/corvuslab/meshbus/internal/hub"
)

// SQLiteSink persists audit events to a local SQLite file. Intended for the
// standalone deployment profile, where there is no cluster-wide store to
// audit against.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (creating if absent) a SQLite-backed audit sink at
// path.
func NewSQLiteSink(ctx context.Context, path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("audit: sqlite path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping sqlite: %w", err)
	}

	s := &SQLiteSink{db: db, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    hub_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    path TEXT NOT NULL,
    status TEXT NOT NULL,
    metadata TEXT NOT NULL,
    timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_events_hub_id ON audit_events(hub_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("audit: init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteSink) insert(ctx context.Context, e Event) error {
	e.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, hub_id, kind, path, status, metadata, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.HubID, string(e.Kind), e.Path, e.Status, e.Metadata, e.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// RecordResolution implements Sink.
func (s *SQLiteSink) RecordResolution(ctx context.Context, hubID string, req hub.Request, resp hub.Response) error {
	return s.insert(ctx, resolutionEvent(hubID, req, resp))
}

// RecordPublish implements Sink.
func (s *SQLiteSink) RecordPublish(ctx context.Context, hubID string, msg hub.Message, result hub.PublishResult) error {
	return s.insert(ctx, publishEvent(hubID, msg, result))
}

// Recent implements Sink, returning up to limit most recent events.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hub_id, kind, path, status, metadata, timestamp FROM audit_events ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		var ts int64
		if err := rows.Scan(&e.ID, &e.HubID, &kind, &e.Path, &e.Status, &e.Metadata, &ts); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Timestamp = time.UnixMilli(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
