// Package postgres persists analysis results in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitescope/internal/analysis"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "site_analyses"

// AnalysisStoreConfig controls the Postgres connection pool used for analysis rows.
type AnalysisStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// AnalysisStore writes analysis rows into Postgres and implements
// analysis.Sink.
type AnalysisStore struct {
	pool  pool
	table string
}

// NewAnalysisStore creates a Postgres-backed AnalysisStore using the provided config.
func NewAnalysisStore(ctx context.Context, cfg AnalysisStoreConfig) (*AnalysisStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
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
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &AnalysisStore{pool: p, table: table}, nil
}

// NewAnalysisStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewAnalysisStoreWithPool(p pool, table string) (*AnalysisStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &AnalysisStore{pool: p, table: table}, nil
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

// EnsureSchema creates the table when it does not exist.
func (s *AnalysisStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	site TEXT NOT NULL,
	model TEXT NOT NULL,
	analysis TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	input_hash TEXT NOT NULL,
	document_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, site)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create analysis table: %w", err)
	}
	return nil
}

// Name implements analysis.Sink.
func (s *AnalysisStore) Name() string { return "postgres" }

// Write inserts one analysis row. Re-running a site within the same run
// replaces the previous row.
func (s *AnalysisStore) Write(ctx context.Context, res analysis.Result) error {
	if res.RunID == "" || res.Site == "" {
		return fmt.Errorf("run id and site are required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	site,
	model,
	analysis,
	input_tokens,
	input_hash,
	document_count,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (run_id, site) DO UPDATE SET
	model = EXCLUDED.model,
	analysis = EXCLUDED.analysis,
	input_tokens = EXCLUDED.input_tokens,
	input_hash = EXCLUDED.input_hash,
	document_count = EXCLUDED.document_count,
	created_at = EXCLUDED.created_at`, s.table)

	args := []any{
		res.RunID,
		res.Site,
		res.Model,
		res.Analysis,
		res.InputTokens,
		res.InputHash,
		res.DocumentCount,
		res.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// Latest returns the newest analysis per site.
func (s *AnalysisStore) Latest(ctx context.Context) ([]analysis.Result, error) {
	query := fmt.Sprintf(`
SELECT DISTINCT ON (site)
	run_id, site, model, analysis, input_tokens, input_hash, document_count, created_at
FROM %s
ORDER BY site, created_at DESC`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []analysis.Result
	for rows.Next() {
		var r analysis.Result
		if err := rows.Scan(
			&r.RunID, &r.Site, &r.Model, &r.Analysis,
			&r.InputTokens, &r.InputHash, &r.DocumentCount, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

// Close implements analysis.Sink. The pool stays open for readers; use
// Shutdown to release it.
func (s *AnalysisStore) Close(context.Context) error { return nil }

// Shutdown releases the underlying pool resources.
func (s *AnalysisStore) Shutdown() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
