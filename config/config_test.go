package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverBadger, cfg.Store.Driver)
	assert.Equal(t, ModeFlows, cfg.Scheduler.Mode)
	assert.Equal(t, flow.DefaultBaseDelay, cfg.Scheduler.BaseDelay)
	assert.Equal(t, flow.DefaultMaxDelay, cfg.Scheduler.MaxDelay)
	assert.Equal(t, flow.DefaultPageSize, cfg.Scheduler.PageSize)
	assert.Equal(t, convert.DefaultChunkSize, cfg.Chunking.Size)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFile(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: sqlite
  path: /var/lib/flowrun/records.db
scheduler:
  mode: queue
  base_delay: 250ms
  max_delay: 30s
  concurrency: 8
ai:
  embedding_host: http://gpu-box:11434
  min_importance: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/flowrun/records.db", cfg.Store.Path)
	assert.Equal(t, ModeQueue, cfg.Scheduler.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.MaxDelay)
	assert.Equal(t, 8, cfg.Scheduler.Concurrency)
	assert.Equal(t, "http://gpu-box:11434/v1", cfg.AI.EmbeddingHost)
	assert.Equal(t, 4, cfg.AI.MinImportance)

	// Untouched sections keep their defaults.
	assert.Equal(t, flow.DefaultPageSize, cfg.Scheduler.PageSize)
	assert.Equal(t, convert.DefaultChunkOverlap, cfg.Chunking.Overlap)
	assert.Equal(t, Default().AI.ChatModel, cfg.AI.ChatModel)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown driver", "store:\n  driver: postgres\n"},
		{"unknown mode", "scheduler:\n  mode: cron\n"},
		{"max below base", "scheduler:\n  base_delay: 10s\n  max_delay: 1s\n"},
		{"zero concurrency", "scheduler:\n  concurrency: 0\n"},
		{"overlap too large", "chunking:\n  size: 100\n  overlap: 100\n"},
		{"bad importance", "ai:\n  min_importance: 11\n"},
		{"no path", "store:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeConfig(t, "store: [not, a, map"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(missing)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadIfExists(missing)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestInMemoryNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = ""
	cfg.Store.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Mode = ModeQueue

	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
