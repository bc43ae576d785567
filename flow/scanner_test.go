package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chunkFlow = &core.Flow{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}}

func TestCandidatePredicate(t *testing.T) {
	assert.Equal(t,
		query.And{query.Absent{Field: "chunked"}, query.Present{Field: "text"}},
		CandidatePredicate(chunkFlow))
	assert.Equal(t,
		query.And{query.Absent{Field: "done"}},
		CandidatePredicate(&core.Flow{Stamp: "done"}))
}

func TestScanner_AtMostOneStamp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	scanner := NewScanner(store, DefaultPageSize)

	insert(t, store, "document", "d1", map[string]any{"title": "no deps yet"})
	found, err := scanner.Find(ctx, chunkFlow)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = store.Merge(ctx, "document", "d1", map[string]any{"text": "now ready"})
	require.NoError(t, err)
	found, err = scanner.Find(ctx, chunkFlow)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, Commit(ctx, store, found[0], "chunked", "h", nil))
	found, err = scanner.Find(ctx, chunkFlow)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanner_NullDependencyIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insert(t, store, "document", "d1", map[string]any{"text": nil})

	found, err := NewScanner(store, 0).Find(ctx, chunkFlow)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanner_Pages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 7; i++ {
		insert(t, store, "document", fmt.Sprintf("d%d", i), map[string]any{"text": "x"})
	}

	scanner := NewScanner(store, 3)
	var sizes []int
	require.NoError(t, scanner.Pages(ctx, chunkFlow, func(page []*core.Record) bool {
		sizes = append(sizes, len(page))
		return true
	}))
	assert.Equal(t, []int{3, 3, 1}, sizes)

	all, err := scanner.Find(ctx, chunkFlow)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	first, err := scanner.FindPage(ctx, chunkFlow, "")
	require.NoError(t, err)
	assert.Equal(t, "d0", first[0].ID)
	next, err := scanner.FindPage(ctx, chunkFlow, "d2")
	require.NoError(t, err)
	assert.Equal(t, "d3", next[0].ID)

	var calls int
	require.NoError(t, scanner.Pages(ctx, chunkFlow, func(page []*core.Record) bool {
		calls++
		return false
	}))
	assert.Equal(t, 1, calls)
}
