package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/flowrun/flow"
	"github.com/poiesic/flowrun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	app := newApp()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"flowrun"}, args...))
	return stdout.String(), stderr.String(), err
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := runApp(t, "--log-level", "chatty", "--in-memory", "flows")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRunCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "run")

	defaults := map[string]any{}
	for _, flag := range cmd.Flags {
		switch f := flag.(type) {
		case *cli.DurationFlag:
			defaults[f.Name] = f.Value
		case *cli.IntFlag:
			defaults[f.Name] = f.Value
		case *cli.StringFlag:
			defaults[f.Name] = f.Value
		}
	}

	assert.Equal(t, flow.DefaultBaseDelay, defaults["base-delay"])
	assert.Equal(t, flow.DefaultMaxDelay, defaults["max-delay"])
	assert.Equal(t, 1, defaults["concurrency"])
	assert.Equal(t, flow.DefaultPageSize, defaults["page-size"])
	assert.Equal(t, "", defaults["metrics-addr"])
	assert.Equal(t, "", defaults["mode"])
}

func TestRunCommand_InvalidDelays(t *testing.T) {
	_, _, err := runApp(t, "--in-memory", "run", "--base-delay", "10s", "--max-delay", "1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_delay")
}

func TestFlowsCommand(t *testing.T) {
	stdout, _, err := runApp(t, "--in-memory", "flows")
	require.NoError(t, err)

	assert.Contains(t, stdout, "NAME")
	for _, spec := range graph.Specs() {
		assert.Contains(t, stdout, spec.Name)
	}
}

func TestOnceCommand_Empty(t *testing.T) {
	stdout, _, err := runApp(t, "--in-memory", "once")
	require.NoError(t, err)
	assert.Contains(t, stdout, graph.FlowConvert)
	assert.Contains(t, stdout, "total")
}

func TestConfigFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "flowrun.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  driver: sqlite\n  path: "+filepath.Join(dir, "ignored.db")+"\n"), 0o644))

	dbPath := filepath.Join(dir, "records.db")
	_, _, err := runApp(t, "--config", cfgPath, "--db", dbPath, "flows")
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "store should be opened at the overriding path")
	_, err = os.Stat(filepath.Join(dir, "ignored.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigFileMissing(t *testing.T) {
	_, _, err := runApp(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "flows")
	assert.Error(t, err)
}

func TestIngestCommand(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.md"), []byte("# A\n\nalpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b.txt"), []byte("beta"), 0o644))
	dbPath := filepath.Join(dir, "store")

	_, _, err := runApp(t, "--db", dbPath, "ingest")
	require.Error(t, err)

	stdout, _, err := runApp(t, "--db", dbPath, "ingest", docs)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added: 2")

	stdout, _, err = runApp(t, "--db", dbPath, "ingest", docs)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added: 0, duplicates: 2")

	stdout, stderr, err := runApp(t, "--db", dbPath, "stale", graph.FlowConvert)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "0 stale records")
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"stale without flow", []string{"--in-memory", "stale"}},
		{"stale unknown flow", []string{"--in-memory", "stale", "nope"}},
		{"reset without flow", []string{"--in-memory", "reset"}},
		{"search without query", []string{"--in-memory", "search"}},
		{"enqueue missing args", []string{"--in-memory", "queue", "enqueue", "convert"}},
		{"requeue bad status", []string{"--in-memory", "queue", "requeue", "--from", "lost"}},
		{"unknown driver", []string{"--in-memory", "--driver", "postgres", "flows"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runApp(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestQueueCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store")

	stdout, _, err := runApp(t, "--db", dbPath, "queue", "enqueue", graph.FlowConvert, graph.TableDocument, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Enqueued task")

	stdout, _, err = runApp(t, "--db", dbPath, "queue", "status")
	require.NoError(t, err)
	assert.Regexp(t, `pending\s+1`, stdout)
	assert.Regexp(t, `failed\s+0`, stdout)

	stdout, _, err = runApp(t, "--db", dbPath, "queue", "requeue")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Requeued 0 tasks")
}
