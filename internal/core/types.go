package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldCount is the number of tab-separated fields every input line carries.
const FieldCount = 3

// DateLayout is the only accepted textual date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Record is one validated (date, value, code) statistic.
type Record struct {
	ID       int64     // Assigned by the store; 0 before persistence
	ImportID uuid.UUID // Import batch that created the row
	Date     time.Time // Calendar date at UTC midnight
	Value    decimal.Decimal
	Code     string
}

// ImportEntry describes one committed import batch.
type ImportEntry struct {
	ID         uuid.UUID
	Source     string // File path, or "-" for stdin
	Rows       int
	ImportedAt time.Time
	RolledBack bool
}

// ImportResult contains the outcome of a single import call.
type ImportResult struct {
	ImportID   uuid.UUID
	Source     string
	TotalLines int
	Inserted   int
	Failures   []LineError // Every malformed line; non-empty means nothing was persisted
	Duration   time.Duration
	Err        error // Non-nil if the import persisted nothing because of a failure
}

// Committed reports whether the import wrote its batch to the store.
func (r *ImportResult) Committed() bool {
	return r != nil && r.Err == nil && r.Inserted > 0
}

// RollbackResult contains the result of a rollback operation.
type RollbackResult struct {
	ImportID    string `json:"importId"`
	Source      string `json:"source,omitempty"`
	RowsDeleted int64  `json:"rowsDeleted"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// Store is the persistence collaborator of the importer.
//
// InsertBatch must be atomic: either the entry and every record are visible
// afterwards, or none of them are.
type Store interface {
	InsertBatch(ctx context.Context, entry ImportEntry, records []Record) error
	Records(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int64, error)
	Imports(ctx context.Context) ([]ImportEntry, error)

	// DeleteImport removes the records of one import and marks it rolled back.
	// Returns ErrImportNotFound or ErrAlreadyRolledBack.
	DeleteImport(ctx context.Context, id uuid.UUID) (int64, error)

	// Reset deletes every record and import entry.
	Reset(ctx context.Context) error
	Close() error
}
