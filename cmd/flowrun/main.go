// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/flowrun"
	"github.com/poiesic/flowrun/config"
	"github.com/poiesic/flowrun/flow"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "flowrun",
		Usage: "Incrementally convert, chunk, embed and index documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"FLOWRUN_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the store, overrides the config file",
				EnvVars: []string{"FLOWRUN_DB"},
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Store driver (badger, sqlite)",
			},
			&cli.BoolFlag{
				Name:  "in-memory",
				Usage: "Use a throwaway in-memory store",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "chat-host",
				Usage: "Chat service host URL for concept extraction and summaries",
			},
			&cli.StringFlag{
				Name:  "chat-model",
				Usage: "Chat model name for concept extraction and summaries",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Create document records for files",
				ArgsUsage: "PATH...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of files read concurrently",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Run passes until interrupted, backing off while idle",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Scheduling mode (flows, queue)",
					},
					&cli.DurationFlag{
						Name:  "base-delay",
						Usage: "First idle delay",
						Value: flow.DefaultBaseDelay,
					},
					&cli.DurationFlag{
						Name:  "max-delay",
						Usage: "Maximum idle delay",
						Value: flow.DefaultMaxDelay,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Candidates of one flow processed at once",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Candidates loaded per store query",
						Value: flow.DefaultPageSize,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address, e.g. :9090",
					},
				},
			},
			{
				Name:   "once",
				Usage:  "Run a single pass and report what was processed",
				Action: onceCommand,
			},
			{
				Name:   "flows",
				Usage:  "List registered flows",
				Action: flowsCommand,
			},
			{
				Name:      "stale",
				Usage:     "List records stamped by an older version of a flow",
				ArgsUsage: "FLOW",
				Action:    staleCommand,
			},
			{
				Name:      "reset",
				Usage:     "Clear a flow's stamps so its records are processed again",
				ArgsUsage: "FLOW",
				Action:    resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stale-only",
						Usage: "Only reset records stamped by an older version",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search ingested chunks",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity for a semantic hit",
						Value: 0.5,
					},
				},
			},
			{
				Name:  "queue",
				Usage: "Inspect and manage the task queue",
				Subcommands: []*cli.Command{
					{
						Name:      "enqueue",
						Usage:     "Add a task for one record",
						ArgsUsage: "KIND TABLE ID",
						Action:    queueEnqueueCommand,
					},
					{
						Name:   "requeue",
						Usage:  "Move tasks back to pending",
						Action: queueRequeueCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "from",
								Usage: "Status to requeue (failed, processing)",
								Value: "failed",
							},
						},
					},
					{
						Name:   "status",
						Usage:  "Show task counts by status",
						Action: queueStatusCommand,
					},
				},
			},
		},
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("db") {
		cfg.Store.Path = c.String("db")
	}
	if c.IsSet("driver") {
		cfg.Store.Driver = c.String("driver")
	}
	if c.Bool("in-memory") {
		cfg.Store.InMemory = true
	}
	if c.IsSet("embedding-host") {
		cfg.AI.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("chat-host") {
		cfg.AI.ChatHost = c.String("chat-host")
	}
	if c.IsSet("chat-model") {
		cfg.AI.ChatModel = c.String("chat-model")
	}
	if c.IsSet("workers") {
		cfg.Ingest.Workers = c.Int("workers")
	}
	if c.IsSet("mode") {
		cfg.Scheduler.Mode = c.String("mode")
	}
	if c.IsSet("base-delay") {
		cfg.Scheduler.BaseDelay = c.Duration("base-delay")
	}
	if c.IsSet("max-delay") {
		cfg.Scheduler.MaxDelay = c.Duration("max-delay")
	}
	if c.IsSet("concurrency") {
		cfg.Scheduler.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("page-size") {
		cfg.Scheduler.PageSize = c.Int("page-size")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(c *cli.Context, opts ...flowrun.DatabaseOption) (*flowrun.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := flowrun.Open(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// shutdownTimeout bounds how long the metrics server gets to drain.
const shutdownTimeout = 5 * time.Second
