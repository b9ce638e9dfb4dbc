package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/JonMunkholm/statimport/internal/store/storetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store { return New() })
}

func TestInsertBatch_FailInsertStoresNothing(t *testing.T) {
	s := New()
	s.FailInsert = errors.New("boom")

	entry := core.ImportEntry{ID: uuid.New(), Rows: 1, ImportedAt: time.Now()}
	err := s.InsertBatch(context.Background(), entry, []core.Record{{Code: "AB"}})
	require.EqualError(t, err, "boom")

	n, _ := s.Count(context.Background())
	assert.Zero(t, n)
	history, _ := s.Imports(context.Background())
	assert.Empty(t, history)
}

func TestInsertBatch_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.InsertBatch(ctx, core.ImportEntry{ID: uuid.New()}, []core.Record{{Code: "AB"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecords_ReturnsCopy(t *testing.T) {
	s := New()
	entry := core.ImportEntry{ID: uuid.New(), Rows: 1, ImportedAt: time.Now()}
	require.NoError(t, s.InsertBatch(context.Background(), entry, []core.Record{{Code: "AB"}}))

	got, err := s.Records(context.Background())
	require.NoError(t, err)
	got[0].Code = "changed"

	again, _ := s.Records(context.Background())
	assert.Equal(t, "AB", again[0].Code)
}
