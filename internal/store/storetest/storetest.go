// Package storetest holds the behaviour every core.Store must share.
// Store packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Run closes it when the subtest ends.
type Factory func(t *testing.T) core.Store

// Run exercises the core.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.Store)
	}{
		{"InsertBatchAndRead", testInsertBatchAndRead},
		{"FailedBatchLeavesNothing", testFailedBatchLeavesNothing},
		{"CancelledBatchLeavesNothing", testCancelledBatchLeavesNothing},
		{"EmptyStore", testEmptyStore},
		{"HistoryOrder", testHistoryOrder},
		{"DeleteImport", testDeleteImport},
		{"DeleteImportErrors", testDeleteImportErrors},
		{"Reset", testReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// batch builds an entry with n records whose codes are prefix0, prefix1, ...
func batch(prefix string, n int, at time.Time) (core.ImportEntry, []core.Record) {
	entry := core.ImportEntry{
		ID:         uuid.New(),
		Source:     prefix + ".tsv",
		Rows:       n,
		ImportedAt: at,
	}
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.Record{
			ImportID: entry.ID,
			Date:     date(2023, 10, 1+i),
			Value:    decimal.RequireFromString("100.25").Add(decimal.NewFromInt(int64(i))),
			Code:     prefix + string(rune('0'+i)),
		}
	}
	return entry, records
}

func testInsertBatchAndRead(t *testing.T, s core.Store) {
	ctx := context.Background()
	entry, records := batch("AB", 3, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, s.InsertBatch(ctx, entry, records))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, r := range got {
		assert.NotZero(t, r.ID)
		assert.Equal(t, entry.ID, r.ImportID)
		assert.True(t, records[i].Date.Equal(r.Date), "date %v != %v", r.Date, records[i].Date)
		assert.True(t, records[i].Value.Equal(r.Value), "value %s != %s", r.Value, records[i].Value)
		assert.Equal(t, records[i].Code, r.Code)
	}

	history, err := s.Imports(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
	assert.Equal(t, entry.Source, history[0].Source)
	assert.Equal(t, 3, history[0].Rows)
	assert.True(t, entry.ImportedAt.Equal(history[0].ImportedAt))
	assert.False(t, history[0].RolledBack)
}

func testFailedBatchLeavesNothing(t *testing.T, s core.Store) {
	ctx := context.Background()
	entry, records := batch("DU", 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.InsertBatch(ctx, entry, records))

	// Reusing the import ID must fail, and none of the new records may remain.
	_, more := batch("DU", 3, entry.ImportedAt.Add(time.Minute))
	require.Error(t, s.InsertBatch(ctx, entry, more))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	history, err := s.Imports(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Rows)
}

func testCancelledBatchLeavesNothing(t *testing.T, s core.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry, records := batch("CA", 2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, s.InsertBatch(ctx, entry, records))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	history, err := s.Imports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func testEmptyStore(t *testing.T, s core.Store) {
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	history, err := s.Imports(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func testHistoryOrder(t *testing.T, s core.Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	later, laterRecords := batch("LA", 1, base.Add(time.Hour))
	earlier, earlierRecords := batch("EA", 1, base)

	require.NoError(t, s.InsertBatch(ctx, later, laterRecords))
	require.NoError(t, s.InsertBatch(ctx, earlier, earlierRecords))

	history, err := s.Imports(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, earlier.ID, history[0].ID)
	assert.Equal(t, later.ID, history[1].ID)
}

func testDeleteImport(t *testing.T, s core.Store) {
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, firstRecords := batch("FI", 2, at)
	second, secondRecords := batch("SE", 1, at.Add(time.Minute))
	require.NoError(t, s.InsertBatch(ctx, first, firstRecords))
	require.NoError(t, s.InsertBatch(ctx, second, secondRecords))

	deleted, err := s.DeleteImport(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.ID, records[0].ImportID)

	history, err := s.Imports(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].RolledBack)
	assert.False(t, history[1].RolledBack)
}

func testDeleteImportErrors(t *testing.T, s core.Store) {
	ctx := context.Background()

	_, err := s.DeleteImport(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrImportNotFound)

	entry, records := batch("RB", 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.InsertBatch(ctx, entry, records))

	_, err = s.DeleteImport(ctx, entry.ID)
	require.NoError(t, err)

	_, err = s.DeleteImport(ctx, entry.ID)
	assert.ErrorIs(t, err, core.ErrAlreadyRolledBack)
}

func testReset(t *testing.T, s core.Store) {
	ctx := context.Background()

	entry, records := batch("RS", 2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.InsertBatch(ctx, entry, records))
	require.NoError(t, s.Reset(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	history, err := s.Imports(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}
