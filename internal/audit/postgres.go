package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver registration for goose

	"github.com/corvuslab/meshbus/internal/hub"
)

// PostgresSink persists audit events to PostgreSQL via a pgxpool, for the
// clustered deployment profile where multiple hub processes share one audit
// trail.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresSink connects to dsn and runs pending migrations from
// migrationsDir before returning.
func NewPostgresSink(ctx context.Context, dsn, migrationsDir string, logger *slog.Logger) (*PostgresSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: parse postgres dsn: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("audit: connect postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}

	if migrationsDir != "" {
		if err := runMigrations(dsn, migrationsDir, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresSink{pool: pool, logger: logger}, nil
}

// runMigrations opens a parallel database/sql handle, since goose operates
// on *sql.DB rather than pgxpool.Pool.
func runMigrations(dsn, dir string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("audit: open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("audit: set goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("audit: run migrations: %w", err)
	}
	logger.Info("audit: migrations applied", "dir", dir)
	return nil
}

func (s *PostgresSink) insert(ctx context.Context, e Event) error {
	e.ID = uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, hub_id, kind, path, status, metadata, timestamp) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		e.ID, e.HubID, string(e.Kind), e.Path, e.Status, e.Metadata, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// RecordResolution implements Sink.
func (s *PostgresSink) RecordResolution(ctx context.Context, hubID string, req hub.Request, resp hub.Response) error {
	return s.insert(ctx, resolutionEvent(hubID, req, resp))
}

// RecordPublish implements Sink.
func (s *PostgresSink) RecordPublish(ctx context.Context, hubID string, msg hub.Message, result hub.PublishResult) error {
	return s.insert(ctx, publishEvent(hubID, msg, result))
}

// Recent implements Sink.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hub_id, kind, path, status, metadata::text, timestamp FROM audit_events ORDER BY timestamp DESC LIMIT $1`,
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
		if err := rows.Scan(&e.ID, &e.HubID, &kind, &e.Path, &e.Status, &e.Metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
