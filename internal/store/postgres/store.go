// Package postgres is a core.Store backed by PostgreSQL through pgx.
//
// Batches are written with the COPY protocol inside a single transaction, so a
// failed import leaves no rows behind.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// copyColumns lists the statistics columns in the order copyRow emits them.
var copyColumns = []string{"import_id", "date", "value", "code"}

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PoolOptions configures the connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store persists statistics in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses url, connects a pool, verifies it and ensures the schema.
func Open(ctx context.Context, url string, opts PoolOptions) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of the schema.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// InsertBatch inserts the import entry and COPYs every record in one
// transaction.
func (s *Store) InsertBatch(ctx context.Context, entry core.ImportEntry, records []core.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	importID := toPgUUID(entry.ID)

	_, err = tx.Exec(ctx, `
		INSERT INTO imports (id, source, row_count, imported_at)
		VALUES ($1, $2, $3, $4)
	`, importID, entry.Source, entry.Rows, entry.ImportedAt)
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"statistics"},
		copyColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return copyRow(importID, records[i])
		}),
	)
	if err != nil {
		return fmt.Errorf("copy records: %w", err)
	}
	if copied != int64(len(records)) {
		return fmt.Errorf("copy records: wrote %d of %d rows", copied, len(records))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// copyRow converts a record to COPY values in copyColumns order.
func copyRow(importID pgtype.UUID, r core.Record) ([]any, error) {
	value, err := toPgNumeric(r.Value)
	if err != nil {
		return nil, err
	}
	return []any{importID, toPgDate(r.Date), value, r.Code}, nil
}

// Records returns every record ordered by id.
func (s *Store) Records(ctx context.Context) ([]core.Record, error) {
	return queryRecords(ctx, s.pool)
}

func queryRecords(ctx context.Context, db DBTX) ([]core.Record, error) {
	rows, err := db.Query(ctx, `
		SELECT id, import_id, date, value::text, code
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
			importID pgtype.UUID
			date     pgtype.Date
			value    string
		)
		if err := rows.Scan(&r.ID, &importID, &date, &value, &r.Code); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.ImportID = uuid.UUID(importID.Bytes)
		r.Date = date.Time
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
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM statistics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Imports returns the import history ordered by import time.
func (s *Store) Imports(ctx context.Context) ([]core.ImportEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, row_count, imported_at, rolled_back
		FROM imports
		ORDER BY imported_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportEntry
	for rows.Next() {
		var (
			e  core.ImportEntry
			id pgtype.UUID
		)
		if err := rows.Scan(&id, &e.Source, &e.Rows, &e.ImportedAt, &e.RolledBack); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		e.ID = uuid.UUID(id.Bytes)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteImport removes the records of one import and marks it rolled back.
func (s *Store) DeleteImport(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pgID := toPgUUID(id)

	var rolledBack bool
	err = tx.QueryRow(ctx, `SELECT rolled_back FROM imports WHERE id = $1 FOR UPDATE`, pgID).Scan(&rolledBack)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, core.ErrImportNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get import: %w", err)
	}
	if rolledBack {
		return 0, core.ErrAlreadyRolledBack
	}

	tag, err := tx.Exec(ctx, `DELETE FROM statistics WHERE import_id = $1`, pgID)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE imports SET rolled_back = TRUE WHERE id = $1`, pgID); err != nil {
		return 0, fmt.Errorf("mark rolled back: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Reset deletes every record and import entry.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE statistics, imports`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// toPgDate keeps 0001-01-01, the zero time.Time, as a real date.
func toPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t.UTC(), Valid: true}
}

func toPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("numeric %s: %w", d.String(), err)
	}
	return n, nil
}

var _ core.Store = (*Store)(nil)
