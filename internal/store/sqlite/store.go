// Package sqlite is a core.Store backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for imported statistics.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// The schema is created if missing. Use ":memory:" for a private
// in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection also keeps
	// ":memory:" databases alive for the store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertBatch writes the import entry and its records in one transaction.
func (s *Store) InsertBatch(ctx context.Context, entry core.ImportEntry, records []core.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, source, row_count, imported_at, rolled_back)
		VALUES (?, ?, ?, ?, 0)
	`, entry.ID.String(), entry.Source, entry.Rows, entry.ImportedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO statistics (import_id, date, value, code)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			entry.ID.String(),
			r.Date.Format(core.DateLayout),
			r.Value.String(),
			r.Code,
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Records returns every record ordered by id.
func (s *Store) Records(ctx context.Context) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, import_id, date, value, code
		FROM statistics
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var (
			r        core.Record
			importID string
			date     string
			value    string
		)
		if err := rows.Scan(&r.ID, &importID, &date, &value, &r.Code); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.ImportID, err = uuid.Parse(importID); err != nil {
			return nil, fmt.Errorf("record %d: import id: %w", r.ID, err)
		}
		if r.Date, err = time.Parse(core.DateLayout, date); err != nil {
			return nil, fmt.Errorf("record %d: date: %w", r.ID, err)
		}
		if r.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("record %d: value: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statistics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Imports returns the import history ordered by import time.
func (s *Store) Imports(ctx context.Context) ([]core.ImportEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, row_count, imported_at, rolled_back
		FROM imports
		ORDER BY imported_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportEntry
	for rows.Next() {
		var (
			e  core.ImportEntry
			id string
		)
		if err := rows.Scan(&id, &e.Source, &e.Rows, &e.ImportedAt, &e.RolledBack); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("import id %q: %w", id, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteImport removes the records of one import and marks it rolled back.
func (s *Store) DeleteImport(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rolledBack bool
	err = tx.QueryRowContext(ctx, `SELECT rolled_back FROM imports WHERE id = ?`, id.String()).Scan(&rolledBack)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrImportNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get import: %w", err)
	}
	if rolledBack {
		return 0, core.ErrAlreadyRolledBack
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM statistics WHERE import_id = ?`, id.String())
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE imports SET rolled_back = 1 WHERE id = ?`, id.String()); err != nil {
		return 0, fmt.Errorf("mark rolled back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

// Reset deletes every record and import entry.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM statistics`, `DELETE FROM imports`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

var _ core.Store = (*Store)(nil)
