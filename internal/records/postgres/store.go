// Package postgres indexes DayRecords in Postgres as JSONB rows keyed by date.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
)

// DefaultTable holds one row per day.
const DefaultTable = "day_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store upserts DayRecords into Postgres.
type Store struct {
	pool  execCloser
	table string
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("records.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	date       date PRIMARY KEY,
	name       text NOT NULL,
	run_id     text NOT NULL DEFAULT '',
	published  boolean NOT NULL DEFAULT false,
	record     jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save implements bing.RecordStore. A later run for the same date replaces the row.
func (s *Store) Save(ctx context.Context, record bing.DayRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("%w: postgres store is not configured", bing.ErrPersistence)
	}
	if record.Date == "" {
		return fmt.Errorf("%w: record has no date", bing.ErrPersistence)
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %w", bing.ErrPersistence, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (date, name, run_id, published, record, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (date) DO UPDATE
SET name = EXCLUDED.name,
	run_id = EXCLUDED.run_id,
	published = EXCLUDED.published,
	record = EXCLUDED.record,
	updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, record.Date, record.Name, record.RunID, record.Published, doc); err != nil {
		return fmt.Errorf("%w: upsert record: %w", bing.ErrPersistence, err)
	}
	return nil
}
