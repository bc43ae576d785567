package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
	"github.com/poiesic/flowrun/storage/badger"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestExecutor(t *testing.T, store storage.Store, opts ...Option) *Executor {
	t.Helper()
	exe, err := NewExecutor(store, opts...)
	require.NoError(t, err)
	t.Cleanup(exe.Release)
	return exe
}

func insert(t *testing.T, store storage.Store, table, id string, fields map[string]any) {
	t.Helper()
	_, err := store.Create(context.Background(), &core.Record{Table: table, ID: id, Fields: fields})
	require.NoError(t, err)
}

// stampWith returns a handler that commits stamp = hash through the store.
func stampWith(store storage.Store, stamp string) Handler {
	return func(ctx context.Context, rec *core.Record, hash string) error {
		return Commit(ctx, store, rec, stamp, hash, nil)
	}
}

var errInjected = errors.New("injected failure")

// faultyStore fails Find for one table and, optionally, every flow upsert.
type faultyStore struct {
	storage.Store
	failFindTable string
	failUpsert    bool
	failList      bool
}

func (s *faultyStore) Find(ctx context.Context, q query.Query) ([]*core.Record, error) {
	if q.Table == s.failFindTable {
		return nil, errInjected
	}
	return s.Store.Find(ctx, q)
}

func (s *faultyStore) UpsertFlow(ctx context.Context, f *core.Flow) (*core.Flow, error) {
	if s.failUpsert {
		return nil, errInjected
	}
	return s.Store.UpsertFlow(ctx, f)
}

func (s *faultyStore) ListFlows(ctx context.Context) ([]*core.Flow, error) {
	if s.failList {
		return nil, errInjected
	}
	return s.Store.ListFlows(ctx)
}
