// Package postgres provides the PostgreSQL implementation of the durable
// log store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible pool defaults.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// Store implements store.LogStore using PostgreSQL via the pgx stdlib driver.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens a connection pool, verifies connectivity, and ensures the schema.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// schema creates the log table and the indexes backing the supported filter
// combinations: (timestamp), (client_id, timestamp), (trace_id, span_id),
// (severity).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS log_entries (
		id           BIGSERIAL PRIMARY KEY,
		timestamp    TIMESTAMPTZ NOT NULL,
		client_id    VARCHAR(100) NOT NULL,
		severity     VARCHAR(20) NOT NULL,
		body         TEXT NOT NULL,
		attributes   JSONB,
		resource     JSONB,
		trace_id     VARCHAR(32),
		span_id      VARCHAR(16),
		severity_num INTEGER,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_client_timestamp ON log_entries (client_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_trace_span ON log_entries (trace_id, span_id)`,
	`CREATE INDEX IF NOT EXISTS idx_log_entries_severity ON log_entries (severity)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
