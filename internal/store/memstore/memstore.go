// Package memstore is an in-memory core.Store. Data lives only as long as the
// process; it backs tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/google/uuid"
)

// Store keeps records and import history in slices guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	records []core.Record
	imports []core.ImportEntry

	// FailInsert, when non-nil, is returned by InsertBatch without storing anything.
	FailInsert error
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// InsertBatch appends the entry and all records under a single lock, so
// readers see either the whole batch or none of it.
func (s *Store) InsertBatch(ctx context.Context, entry core.ImportEntry, records []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsert != nil {
		return s.FailInsert
	}
	for _, e := range s.imports {
		if e.ID == entry.ID {
			return fmt.Errorf("insert import: %s already exists", entry.ID)
		}
	}

	batch := make([]core.Record, len(records))
	for i, r := range records {
		s.nextID++
		r.ID = s.nextID
		r.ImportID = entry.ID
		batch[i] = r
	}

	s.records = append(s.records, batch...)
	s.imports = append(s.imports, entry)
	return nil
}

// Records returns a copy of every record in insertion order.
func (s *Store) Records(ctx context.Context) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Imports returns the import history ordered by ImportedAt.
func (s *Store) Imports(ctx context.Context) ([]core.ImportEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ImportEntry, len(s.imports))
	copy(out, s.imports)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ImportedAt.Before(out[j].ImportedAt)
	})
	return out, nil
}

// DeleteImport removes the records of one import and marks it rolled back.
func (s *Store) DeleteImport(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.imports {
		if s.imports[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, core.ErrImportNotFound
	}
	if s.imports[idx].RolledBack {
		return 0, core.ErrAlreadyRolledBack
	}

	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.ImportID == id {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	s.imports[idx].RolledBack = true

	return deleted, nil
}

// Reset drops every record and import entry.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.imports = nil
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ core.Store = (*Store)(nil)
