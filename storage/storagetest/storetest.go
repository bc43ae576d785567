// Package storagetest holds a behavioural test suite shared by every
// storage.Store implementation.
package storagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"CreateAssignsID", testCreateAssignsID},
		{"PutReplaces", testPutReplaces},
		{"GetMissing", testGetMissing},
		{"MergeUnsets", testMergeUnsets},
		{"Delete", testDelete},
		{"FindPredicates", testFindPredicates},
		{"FindNullIsAbsent", testFindNullIsAbsent},
		{"FindPaging", testFindPaging},
		{"FindInvalid", testFindInvalid},
		{"UpdateIf", testUpdateIf},
		{"UpdateIfConcurrent", testUpdateIfConcurrent},
		{"UpsertFlowPreservesSeq", testUpsertFlowPreservesSeq},
		{"ListFlowsOrder", testListFlowsOrder},
		{"DeleteFlow", testDeleteFlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func newRecord(table, id string, fields map[string]any) *core.Record {
	return &core.Record{Table: table, ID: id, Fields: fields}
}

func testCreateAndGet(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, newRecord("document", "d1", map[string]any{"text": "hello", "size": 5}))
	require.NoError(t, err)
	assert.Equal(t, "d1", created.ID)

	got, err := s.Get(ctx, "document", "d1")
	require.NoError(t, err)
	assert.Equal(t, "document", got.Table)
	assert.Equal(t, "hello", got.String("text"))
	assert.Equal(t, float64(5), got.Fields["size"])
}

func testCreateDuplicate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, newRecord("document", "d1", nil))
	require.NoError(t, err)
	_, err = s.Create(ctx, newRecord("document", "d1", nil))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same ID in a different table is a different record.
	_, err = s.Create(ctx, newRecord("chunk", "d1", nil))
	assert.NoError(t, err)
}

func testCreateAssignsID(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, err := s.Create(ctx, newRecord("document", "", map[string]any{"n": 1}))
	require.NoError(t, err)
	b, err := s.Create(ctx, newRecord("document", "", map[string]any{"n": 2}))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Less(t, a.ID, b.ID)

	_, err = s.Create(ctx, newRecord("", "x", nil))
	assert.ErrorIs(t, err, core.ErrInvalidRecord)
}

func testPutReplaces(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, newRecord("document", "d1", map[string]any{"a": "1", "b": "2"})))
	require.NoError(t, s.Put(ctx, newRecord("document", "d1", map[string]any{"c": "3"})))

	got, err := s.Get(ctx, "document", "d1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c": "3"}, got.Fields)
}

func testGetMissing(t *testing.T, s storage.Store) {
	_, err := s.Get(context.Background(), "document", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testMergeUnsets(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, newRecord("document", "d1", map[string]any{"text": "x", "chunked": "h1"}))
	require.NoError(t, err)

	merged, err := s.Merge(ctx, "document", "d1", map[string]any{"chunked": nil, "title": "T"})
	require.NoError(t, err)
	assert.False(t, merged.Has("chunked"))
	assert.Equal(t, "T", merged.String("title"))

	got, err := s.Get(ctx, "document", "d1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "x", "title": "T"}, got.Fields)

	_, err = s.Merge(ctx, "document", "missing", map[string]any{"a": 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, newRecord("document", "d1", nil))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "document", "d1"))

	_, err = s.Get(ctx, "document", "d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "document", "d1"), storage.ErrNotFound)
}

func ids(records []*core.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func testFindPredicates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed := []*core.Record{
		newRecord("document", "a", map[string]any{"text": "one"}),
		newRecord("document", "b", map[string]any{"text": "two", "chunked": "h1"}),
		newRecord("document", "c", map[string]any{"title": "no text"}),
		newRecord("document", "d", map[string]any{"text": "four", "chunked": "h2"}),
		newRecord("chunk", "a", map[string]any{"text": "other table"}),
	}
	for _, r := range seed {
		_, err := s.Create(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		where query.Predicate
		want  []string
	}{
		{"all", nil, []string{"a", "b", "c", "d"}},
		{"candidates", query.And{query.Absent{Field: "chunked"}, query.Present{Field: "text"}}, []string{"a"}},
		{"present", query.Present{Field: "chunked"}, []string{"b", "d"}},
		{"equals", query.Equals{Field: "chunked", Value: "h2"}, []string{"d"}},
		{"not equals", query.NotEquals{Field: "chunked", Value: "h2"}, []string{"b"}},
		{"all present", query.AllPresent("text", "chunked"), []string{"b", "d"}},
		{"none", query.Present{Field: "missing"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(ctx, query.Query{Table: "document", Where: tt.where})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testFindNullIsAbsent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, newRecord("document", "a", map[string]any{"text": "x", "chunked": nil}))
	require.NoError(t, err)

	got, err := s.Find(ctx, query.Query{Table: "document", Where: query.Absent{Field: "chunked"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}

func testFindPaging(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, id := range []string{"05", "01", "04", "02", "03"} {
		_, err := s.Create(ctx, newRecord("chunk", id, map[string]any{"text": id}))
		require.NoError(t, err)
	}

	page, err := s.Find(ctx, query.Query{Table: "chunk", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02"}, ids(page))

	page, err = s.Find(ctx, query.Query{Table: "chunk", After: "02", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"03", "04"}, ids(page))

	page, err = s.Find(ctx, query.Query{Table: "chunk", After: "04", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"05"}, ids(page))
}

func testFindInvalid(t *testing.T, s storage.Store) {
	_, err := s.Find(context.Background(), query.Query{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func testUpdateIf(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, newRecord("document", "a", map[string]any{"text": "x"}))
	require.NoError(t, err)

	ok, err := s.UpdateIf(ctx, "document", "a", query.Absent{Field: "chunked"}, map[string]any{"chunked": "h1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateIf(ctx, "document", "a", query.Absent{Field: "chunked"}, map[string]any{"chunked": "h2"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "document", "a")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.String("chunked"))

	_, err = s.UpdateIf(ctx, "document", "missing", nil, map[string]any{"x": 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateIfConcurrent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, newRecord("document", "a", map[string]any{"text": "x"}))
	require.NoError(t, err)

	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpdateIf(ctx, "document", "a", query.Absent{Field: "stamp"}, map[string]any{"stamp": "v"})
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func testUpsertFlowPreservesSeq(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first, err := s.UpsertFlow(ctx, &core.Flow{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}, Hash: "h1"})
	require.NoError(t, err)
	assert.NotZero(t, first.Seq)
	assert.False(t, first.UpdatedAt.IsZero())

	second, err := s.UpsertFlow(ctx, &core.Flow{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}, Priority: 2, Hash: "h2"})
	require.NoError(t, err)
	assert.Equal(t, first.Seq, second.Seq)

	got, err := s.GetFlow(ctx, "chunk")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.Hash)
	assert.Equal(t, 2, got.Priority)
	assert.Equal(t, []string{"text"}, got.Dependencies)

	flows, err := s.ListFlows(ctx)
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	_, err = s.UpsertFlow(ctx, &core.Flow{Name: "bad", Table: "document"})
	assert.ErrorIs(t, err, core.ErrInvalidFlow)
}

func testListFlowsOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, f := range []*core.Flow{
		{Name: "zeta", Table: "t", Stamp: "s1", Priority: 1},
		{Name: "alpha", Table: "t", Stamp: "s2", Priority: 1},
		{Name: "top", Table: "t", Stamp: "s3", Priority: 10},
		{Name: "bottom", Table: "t", Stamp: "s4", Priority: -1},
	} {
		_, err := s.UpsertFlow(ctx, f)
		require.NoError(t, err)
	}

	flows, err := s.ListFlows(ctx)
	require.NoError(t, err)
	var names []string
	for _, f := range flows {
		names = append(names, f.Name)
	}
	// Equal priorities keep registration order.
	assert.Equal(t, []string{"top", "zeta", "alpha", "bottom"}, names)
}

func testDeleteFlow(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.UpsertFlow(ctx, &core.Flow{Name: "chunk", Table: "document", Stamp: "chunked"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteFlow(ctx, "chunk"))

	_, err = s.GetFlow(ctx, "chunk")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteFlow(ctx, "chunk"), storage.ErrNotFound)
}
