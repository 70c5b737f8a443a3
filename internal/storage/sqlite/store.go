// Package sqlite implements a DocumentStore in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/storage"
)

// Config locates the database file.
type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DocumentStore keeps every site in one database. A site row exists for
// every stored origin so that empty document sets are still listed.
type DocumentStore struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and ensures the schema.
func Open(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	s := &DocumentStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func (s *DocumentStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sites (
		origin TEXT PRIMARY KEY,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		origin TEXT NOT NULL REFERENCES sites(origin) ON DELETE CASCADE,
		url TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (origin, url)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Put replaces every document of origin in a single transaction.
func (s *DocumentStore) Put(ctx context.Context, origin string, docs crawler.DocumentSet) (err error) {
	if err := storage.ValidateOrigin(origin); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE origin = ?`, origin); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sites (origin, updated_at) VALUES (?, ?)
		 ON CONFLICT(origin) DO UPDATE SET updated_at = excluded.updated_at`,
		origin, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (origin, url, text) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, url := range docs.Keys() {
		if _, err = stmt.ExecContext(ctx, origin, url, docs[url]); err != nil {
			return fmt.Errorf("insert document %s: %w", url, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get loads every document stored for origin.
func (s *DocumentStore) Get(ctx context.Context, origin string) (crawler.DocumentSet, error) {
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT origin FROM sites WHERE origin = ?`, origin).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", origin, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup site: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT url, text FROM documents WHERE origin = ?`, origin)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := crawler.DocumentSet{}
	for rows.Next() {
		var url, text string
		if err := rows.Scan(&url, &text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs[url] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// List returns stored origins in lexical order.
func (s *DocumentStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT origin FROM sites ORDER BY origin`)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		origins = append(origins, origin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return origins, nil
}
