package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce_ChunkEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	f, err := exe.Register(ctx, Spec{
		Name:         "chunk",
		Table:        "document",
		Stamp:        "chunked",
		Dependencies: []string{"text"},
	}, stampWith(store, "chunked"))
	require.NoError(t, err)
	require.NotEmpty(t, f.Hash)

	insert(t, store, "document", "with-text", map[string]any{"text": "hello world"})
	insert(t, store, "document", "without-text", map[string]any{"title": "empty"})

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"chunk": 1}, results)

	results, err = exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"chunk": 0}, results)

	rec, err := store.Get(ctx, "document", "with-text")
	require.NoError(t, err)
	assert.Equal(t, f.Hash, rec.String("chunked"))

	rec, err = store.Get(ctx, "document", "without-text")
	require.NoError(t, err)
	assert.False(t, rec.Has("chunked"))
}

func TestRunOnce_PriorityOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	var mu sync.Mutex
	var log []string
	logging := func(label, stamp string) Handler {
		return func(ctx context.Context, rec *core.Record, hash string) error {
			mu.Lock()
			log = append(log, label+":"+rec.ID)
			mu.Unlock()
			return Commit(ctx, store, rec, stamp, hash, nil)
		}
	}

	// Registered low first so registration order cannot explain the result.
	_, err := exe.Register(ctx, Spec{Name: "low", Table: "item", Stamp: "low_done", Priority: 1}, logging("low", "low_done"))
	require.NoError(t, err)
	_, err = exe.Register(ctx, Spec{Name: "high", Table: "item", Stamp: "high_done", Priority: 2}, logging("high", "high_done"))
	require.NoError(t, err)

	insert(t, store, "item", "a", map[string]any{"v": 1})
	insert(t, store, "item", "b", map[string]any{"v": 2})

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"high": 2, "low": 2}, results)
	assert.Equal(t, []string{"high:a", "high:b", "low:a", "low:b"}, log)
}

func TestRunOnce_DependencyChain(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	// "extract" produces the field "text" that "chunk" depends on, and runs first.
	_, err := exe.Register(ctx, Spec{Name: "extract", Table: "document", Stamp: "extracted", Dependencies: []string{"path"}, Priority: 2},
		func(ctx context.Context, rec *core.Record, hash string) error {
			return Commit(ctx, store, rec, "extracted", hash, map[string]any{"text": "from " + rec.String("path")})
		})
	require.NoError(t, err)
	_, err = exe.Register(ctx, Spec{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}, Priority: 1},
		stampWith(store, "chunked"))
	require.NoError(t, err)

	insert(t, store, "document", "d1", map[string]any{"path": "/tmp/a.txt"})

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"extract": 1, "chunk": 1}, results)
}

func TestRegister_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)
	h := stampWith(store, "chunked")

	first, err := exe.Register(ctx, Spec{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}, Priority: 1}, h)
	require.NoError(t, err)
	second, err := exe.Register(ctx, Spec{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text", "lang"}, Priority: 5}, h)
	require.NoError(t, err)
	assert.Equal(t, first.Seq, second.Seq)

	flows, err := store.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, 5, flows[0].Priority)
	assert.Equal(t, []string{"text", "lang"}, flows[0].Dependencies)
}

func TestRegister_DefaultNameAndValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	f, err := exe.Register(ctx, Spec{Table: "document", Stamp: "done"}, namedHandler)
	require.NoError(t, err)
	assert.Equal(t, "namedHandler", f.Name)

	_, err = exe.Register(ctx, Spec{Name: "bad", Table: "document", Stamp: "text", Dependencies: []string{"text"}}, namedHandler)
	assert.ErrorIs(t, err, core.ErrStampIsDependency)

	_, err = exe.Register(ctx, Spec{Name: "nil", Table: "document", Stamp: "x"}, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func namedHandler(ctx context.Context, rec *core.Record, hash string) error {
	return nil
}

func TestRunOnce_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	var calls atomic.Int32
	_, err := exe.Register(ctx, Spec{Name: "f", Table: "item", Stamp: "done"},
		func(ctx context.Context, rec *core.Record, hash string) error {
			calls.Add(1)
			if rec.ID == "a" {
				return errors.New("boom")
			}
			return Commit(ctx, store, rec, "done", hash, nil)
		})
	require.NoError(t, err)

	insert(t, store, "item", "a", nil)
	insert(t, store, "item", "b", nil)

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"f": 1}, results)

	a, err := store.Get(ctx, "item", "a")
	require.NoError(t, err)
	assert.False(t, a.Has("done"))
	b, err := store.Get(ctx, "item", "b")
	require.NoError(t, err)
	assert.True(t, b.Has("done"))

	// The failed record is retried by the next scan.
	_, err = exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunOnce_HandlerPanicIsFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	_, err := exe.Register(ctx, Spec{Name: "f", Table: "item", Stamp: "done"},
		func(ctx context.Context, rec *core.Record, hash string) error {
			if rec.ID == "a" {
				panic("handler bug")
			}
			return Commit(ctx, store, rec, "done", hash, nil)
		})
	require.NoError(t, err)

	insert(t, store, "item", "a", nil)
	insert(t, store, "item", "b", nil)

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"f": 1}, results)
}

func TestRunOnce_DispatchMiss(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	// A descriptor left behind by an earlier deployment, with no handler now.
	_, err := store.UpsertFlow(ctx, &core.Flow{Name: "orphan", Table: "item", Stamp: "orphaned", Priority: 10})
	require.NoError(t, err)
	_, err = exe.Register(ctx, Spec{Name: "live", Table: "item", Stamp: "done"}, stampWith(store, "done"))
	require.NoError(t, err)

	insert(t, store, "item", "a", nil)

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"orphan": 0, "live": 1}, results)

	a, err := store.Get(ctx, "item", "a")
	require.NoError(t, err)
	assert.False(t, a.Has("orphaned"))
}

func TestRunOnce_ScanFailureContinues(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	store := &faultyStore{Store: base, failFindTable: "broken"}
	exe := newTestExecutor(t, store)

	_, err := exe.Register(ctx, Spec{Name: "first", Table: "broken", Stamp: "done", Priority: 2}, stampWith(store, "done"))
	require.NoError(t, err)
	_, err = exe.Register(ctx, Spec{Name: "second", Table: "item", Stamp: "done", Priority: 1}, stampWith(store, "done"))
	require.NoError(t, err)

	insert(t, base, "item", "a", nil)

	results, err := exe.RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), "flow first")
	assert.Equal(t, Results{"first": 0, "second": 1}, results)
}

func TestRunOnce_StopMidPass(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)

	_, err := exe.Register(ctx, Spec{Name: "stopper", Table: "item", Stamp: "done", Priority: 2},
		func(ctx context.Context, rec *core.Record, hash string) error {
			exe.Stop()
			return Commit(ctx, store, rec, "done", hash, nil)
		})
	require.NoError(t, err)
	_, err = exe.Register(ctx, Spec{Name: "later", Table: "item", Stamp: "later_done", Priority: 1}, stampWith(store, "later_done"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		insert(t, store, "item", fmt.Sprintf("r%d", i), nil)
	}

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"stopper": 1}, results)
	assert.True(t, exe.Stopped())

	exe.Resume()
	results, err = exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, results["stopper"])
}

func TestRunOnce_RegistrationFailureStillRuns(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	store := &faultyStore{Store: base, failUpsert: true}
	exe := newTestExecutor(t, store)

	f, err := exe.Register(ctx, Spec{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}}, stampWith(store, "chunked"))
	require.ErrorIs(t, err, ErrRegistrationFailed)
	require.NotNil(t, f)

	insert(t, base, "document", "d1", map[string]any{"text": "x"})

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"chunk": 1}, results)
}

func TestRunOnce_ListFailureUsesLocalFlows(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	store := &faultyStore{Store: base}
	exe := newTestExecutor(t, store)

	_, err := exe.Register(ctx, Spec{Name: "chunk", Table: "document", Stamp: "chunked"}, stampWith(store, "chunked"))
	require.NoError(t, err)
	insert(t, base, "document", "d1", nil)

	store.failList = true
	results, err := exe.RunOnce(ctx)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, Results{"chunk": 1}, results)
}

func TestRunOnce_Paging(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store, WithPageSize(2))

	var calls atomic.Int32
	_, err := exe.Register(ctx, Spec{Name: "f", Table: "item", Stamp: "done"},
		func(ctx context.Context, rec *core.Record, hash string) error {
			calls.Add(1)
			if rec.ID == "r1" {
				return errors.New("always fails")
			}
			return Commit(ctx, store, rec, "done", hash, nil)
		})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		insert(t, store, "item", fmt.Sprintf("r%d", i), nil)
	}

	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"f": 4}, results)
	assert.Equal(t, int32(5), calls.Load(), "each candidate is visited once per pass")
}

func TestRunOnce_ConcurrentAtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const records = 40
	for i := 0; i < records; i++ {
		insert(t, store, "item", fmt.Sprintf("r%02d", i), map[string]any{"text": "x"})
	}

	// Two executors race over the same records; the conditional commit
	// lets exactly one of them stamp each record.
	var executors []*Executor
	for i := 0; i < 2; i++ {
		exe := newTestExecutor(t, store, WithConcurrency(4))
		_, err := exe.Register(ctx, Spec{Name: "f", Table: "item", Stamp: "done", Dependencies: []string{"text"}}, stampWith(store, "done"))
		require.NoError(t, err)
		executors = append(executors, exe)
	}

	var wg sync.WaitGroup
	totals := make([]int, len(executors))
	for i, exe := range executors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := exe.RunOnce(ctx)
			assert.NoError(t, err)
			totals[i] = results["f"]
		}()
	}
	wg.Wait()

	assert.Equal(t, records, totals[0]+totals[1])

	remaining, err := NewScanner(store, 0).Find(ctx, &core.Flow{Name: "f", Table: "item", Stamp: "done", Dependencies: []string{"text"}})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRunOnce_ContextCanceled(t *testing.T) {
	store := newTestStore(t)
	exe := newTestExecutor(t, store)
	_, err := exe.Register(context.Background(), Spec{Name: "f", Table: "item", Stamp: "done"}, stampWith(store, "done"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := exe.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestStaleAndReset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	exe := newTestExecutor(t, store)
	spec := Spec{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}}

	_, err := exe.Register(ctx, spec, stampWith(store, "chunked"), WithHash("v1"))
	require.NoError(t, err)
	insert(t, store, "document", "d1", map[string]any{"text": "a"})
	insert(t, store, "document", "d2", map[string]any{"text": "b"})
	_, err = exe.RunOnce(ctx)
	require.NoError(t, err)

	stale, err := exe.Stale(ctx, "chunk")
	require.NoError(t, err)
	assert.Empty(t, stale)

	// New logic version: existing stamps are stale but not re-surfaced.
	_, err = exe.Register(ctx, spec, stampWith(store, "chunked"), WithHash("v2"))
	require.NoError(t, err)
	results, err := exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"chunk": 0}, results)

	stale, err = exe.Stale(ctx, "chunk")
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	n, err := exe.Reset(ctx, "chunk", true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err = exe.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Results{"chunk": 2}, results)

	rec, err := store.Get(ctx, "document", "d1")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.String("chunked"))

	_, err = exe.Stale(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

// limitRecorder records the limit of every Find on one table.
type limitRecorder struct {
	storage.Store
	table  string
	limits []int
}

func (r *limitRecorder) Find(ctx context.Context, q query.Query) ([]*core.Record, error) {
	if q.Table == r.table {
		r.limits = append(r.limits, q.Limit)
	}
	return r.Store.Find(ctx, q)
}

func TestStaleAndReset_Paged(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	store := &limitRecorder{Store: base, table: "document"}
	exe := newTestExecutor(t, store, WithPageSize(2))
	spec := Spec{Name: "chunk", Table: "document", Stamp: "chunked"}

	for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		insert(t, base, "document", id, map[string]any{"chunked": "v1"})
	}
	_, err := exe.Register(ctx, spec, stampWith(base, "chunked"), WithHash("v2"))
	require.NoError(t, err)

	store.limits = nil
	stale, err := exe.Stale(ctx, "chunk")
	require.NoError(t, err)
	assert.Len(t, stale, 5)
	assert.Equal(t, []int{2, 2, 2}, store.limits)

	store.limits = nil
	n, err := exe.Reset(ctx, "chunk", true)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 2, 2}, store.limits)

	stale, err = exe.Stale(ctx, "chunk")
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestExecutor_Metrics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	reg := prometheus.NewRegistry()
	exe := newTestExecutor(t, store, WithMetrics(reg))

	_, err := exe.Register(ctx, Spec{Name: "f", Table: "item", Stamp: "done"},
		func(ctx context.Context, rec *core.Record, hash string) error {
			if rec.ID == "bad" {
				return errors.New("nope")
			}
			return Commit(ctx, store, rec, "done", hash, nil)
		})
	require.NoError(t, err)
	insert(t, store, "item", "bad", nil)
	insert(t, store, "item", "good", nil)

	_, err = exe.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(exe.metrics.processed.WithLabelValues("f")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exe.metrics.failures.WithLabelValues("f")))
	assert.Equal(t, float64(2), testutil.ToFloat64(exe.metrics.candidates.WithLabelValues("f")))

	// A second executor on the same registry reuses the collectors.
	_, err = NewExecutor(store, WithMetrics(reg))
	assert.NoError(t, err)
}

func TestNewExecutor_RequiresStore(t *testing.T) {
	_, err := NewExecutor(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

var _ storage.Store = (*faultyStore)(nil)
