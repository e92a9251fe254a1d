// Package postgres provides a Postgres-backed case catalog.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

const defaultTable = "cases"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for case rows.
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

// CaseStore upserts scraped case records keyed by link number.
type CaseStore struct {
	pool  execCloser
	table string
}

var _ archive.CaseCatalog = (*CaseStore)(nil)

// New connects to Postgres and ensures the case table exists.
func New(ctx context.Context, cfg Config) (*CaseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("catalog.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	store := &CaseStore{pool: pool, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*CaseStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &CaseStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *CaseStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the case table when it is missing.
func (s *CaseStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	link_number TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	title       TEXT NOT NULL,
	case_date   TEXT NOT NULL,
	full_text   TEXT NOT NULL,
	year        INTEGER NOT NULL,
	month       TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// UpsertCases writes every record of a month, replacing rows with the same
// link number.
func (s *CaseStore) UpsertCases(ctx context.Context, period archive.Period, records []archive.CaseRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("case store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (link_number, url, title, case_date, full_text, year, month, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (link_number) DO UPDATE SET
	url = EXCLUDED.url,
	title = EXCLUDED.title,
	case_date = EXCLUDED.case_date,
	full_text = EXCLUDED.full_text,
	year = EXCLUDED.year,
	month = EXCLUDED.month,
	updated_at = NOW()`, s.table)

	for _, rec := range records {
		if rec.DocumentID == "" {
			return fmt.Errorf("upsert case: link number is required")
		}
		if _, err := s.pool.Exec(ctx, query,
			rec.DocumentID,
			rec.URL,
			rec.Title,
			rec.Date,
			rec.Excerpt,
			period.Year,
			period.MonthAbbrev(),
		); err != nil {
			return fmt.Errorf("upsert case %s: %w", rec.DocumentID, err)
		}
	}
	return nil
}
