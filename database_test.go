package flowrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/flowrun/ai/mock"
	"github.com/poiesic/flowrun/config"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/graph"
	"github.com/poiesic/flowrun/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guide = "# Flowrun\n\nEvery flow stamps the records it finished so the next pass skips them.\n"

func memoryConfig(driver, mode string) *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = driver
	cfg.Store.InMemory = true
	cfg.Scheduler.Mode = mode
	cfg.Retry.Delay = 0
	return cfg
}

func openTestDatabase(t *testing.T, cfg *config.Config) (*Database, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider()
	db, err := Open(context.Background(), cfg, WithProvider(provider), WithMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, provider
}

func writeGuide(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.md"), []byte(guide), 0o644))
	return dir
}

func findChunks(t *testing.T, db *Database) []*core.Record {
	t.Helper()
	chunks, err := db.Store().Find(context.Background(), query.Query{Table: graph.TableChunk})
	require.NoError(t, err)
	return chunks
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "postgres"

	db, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, db)
}

func TestOpen_BadPath(t *testing.T) {
	notADir := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(notADir, []byte("test"), 0o644))

	cfg := config.Default()
	cfg.Store.Path = notADir

	provider := mock.NewMockProvider()
	db, err := Open(context.Background(), cfg, WithProvider(provider))
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestOpen_FlowsMode(t *testing.T) {
	for _, driver := range []string{config.DriverBadger, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			db, _ := openTestDatabase(t, memoryConfig(driver, config.ModeFlows))

			flows, err := db.Executor().Flows(ctx)
			require.NoError(t, err)
			assert.Len(t, flows, len(graph.Specs()))
			assert.Same(t, db.Executor(), db.Runner())

			ingester, err := db.NewIngester()
			require.NoError(t, err)
			defer ingester.Release()

			report, err := ingester.IngestPaths(ctx, writeGuide(t))
			require.NoError(t, err)
			require.Len(t, report.Added, 1)

			results, err := db.Runner().RunOnce(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, results[graph.FlowConvert])
			assert.Equal(t, 1, results[graph.FlowChunk])

			chunks := findChunks(t, db)
			require.NotEmpty(t, chunks)
			assert.Equal(t, len(chunks), results[graph.FlowEmbed])

			searcher, err := db.NewSearcher()
			require.NoError(t, err)
			hits, err := searcher.Search(ctx, chunks[0].String(graph.FieldText), 3)
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, chunks[0].ID, hits[0].Chunk.ID)
			assert.Equal(t, report.Added[0], hits[0].Document)
		})
	}
}

func TestOpen_QueueMode(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t, memoryConfig(config.DriverBadger, config.ModeQueue))
	assert.Same(t, db.Queue(), db.Runner())

	ingester, err := db.NewIngester()
	require.NoError(t, err)
	defer ingester.Release()

	_, err = ingester.IngestPaths(ctx, writeGuide(t))
	require.NoError(t, err)

	counts, err := db.Queue().Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[core.TaskPending])

	results, err := db.Runner().RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, results[graph.FlowConvert])
	assert.Equal(t, 1, results[graph.FlowChunk])

	chunks := findChunks(t, db)
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), results[graph.FlowEmbed])
	assert.Equal(t, len(chunks), results[graph.FlowInfer])
	assert.Equal(t, len(chunks), results[graph.FlowSummarize])

	counts, err = db.Queue().Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[core.TaskPending])
	assert.Equal(t, 2+3*len(chunks), counts[core.TaskProcessed])
}

func TestDatabase_Scheduler(t *testing.T) {
	db, _ := openTestDatabase(t, memoryConfig(config.DriverBadger, config.ModeFlows))

	sched, err := db.NewScheduler()
	require.NoError(t, err)
	assert.NotNil(t, sched)
}

func TestDatabase_Close(t *testing.T) {
	provider := mock.NewMockProvider()
	db, err := Open(context.Background(), memoryConfig(config.DriverBadger, config.ModeFlows), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.True(t, provider.Closed())
}
