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

package flowrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/flowrun/ai"
	"github.com/poiesic/flowrun/ai/openai"
	"github.com/poiesic/flowrun/config"
	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/flow"
	"github.com/poiesic/flowrun/graph"
	"github.com/poiesic/flowrun/ingestion"
	"github.com/poiesic/flowrun/queue"
	"github.com/poiesic/flowrun/search"
	"github.com/poiesic/flowrun/storage"
	"github.com/poiesic/flowrun/storage/badger"
	"github.com/poiesic/flowrun/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

// Database wires a record store, the document flows and the AI provider
// according to a config.Config.
type Database struct {
	cfg      *config.Config
	store    storage.Store
	provider ai.Provider
	executor *flow.Executor
	queue    *queue.Queue
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.Provider
	metrics  prometheus.Registerer
	readFile func(path string) ([]byte, error)
	logger   *slog.Logger
}

// WithProvider replaces the OpenAI-compatible provider built from the config.
// The Database takes ownership and closes it.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithMetrics registers the executor's collectors with reg.
func WithMetrics(reg prometheus.Registerer) DatabaseOption {
	return func(o *databaseOptions) {
		o.metrics = reg
	}
}

// WithReadFile replaces the function the convert flow reads documents with.
func WithReadFile(fn func(path string) ([]byte, error)) DatabaseOption {
	return func(o *databaseOptions) {
		o.readFile = fn
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// Open builds a Database from cfg. A nil cfg uses config.Default().
// Registration failures that leave flows running are logged, not returned.
func Open(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(&cfg.AI)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create AI provider: %w", err)
		}
	}

	db := &Database{
		cfg:      cfg,
		store:    store,
		provider: provider,
		logger:   options.logger.With("component", "database"),
	}
	if err := db.wire(ctx, options); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openStore(cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		path := cfg.Path
		if cfg.InMemory {
			path = ":memory:"
		}
		return sqlite.NewStore(path)
	default:
		if cfg.InMemory {
			return badger.NewMemoryStore()
		}
		return badger.NewStore(cfg.Path)
	}
}

func (db *Database) wire(ctx context.Context, options *databaseOptions) error {
	chunker, err := convert.NewChunker(db.cfg.Chunking.Size, db.cfg.Chunking.Overlap)
	if err != nil {
		return err
	}
	deps := graph.Deps{
		Store:         db.store,
		Embedder:      db.provider.Embedder(),
		Extractor:     db.provider.ConceptExtractor(),
		Summarizer:    db.provider.Summarizer(),
		Chunker:       chunker,
		ReadFile:      options.readFile,
		RetryAttempts: db.cfg.Retry.Attempts,
		RetryDelay:    db.cfg.Retry.Delay,
		Logger:        options.logger,
	}

	db.executor, err = flow.NewExecutor(db.store,
		flow.WithLogger(options.logger),
		flow.WithPageSize(db.cfg.Scheduler.PageSize),
		flow.WithConcurrency(db.cfg.Scheduler.Concurrency),
		flow.WithMetrics(options.metrics),
	)
	if err != nil {
		return err
	}
	db.queue, err = queue.New(db.store, queue.WithLogger(options.logger))
	if err != nil {
		return err
	}

	// Descriptors are registered in both modes so flows, stale and reset
	// work against the queue deployment too.
	_, err = graph.Register(ctx, db.executor, deps)
	if errors.Is(err, flow.ErrRegistrationFailed) {
		db.logger.Warn("flows registered locally only", "error", err)
	} else if err != nil {
		return err
	}

	if db.cfg.Scheduler.Mode == config.ModeQueue {
		deps.Emit = graph.EnqueueFollowUps(db.queue)
		return graph.RegisterQueue(db.queue, deps)
	}
	return nil
}

// Close releases the executor pool, the AI provider and the store.
func (db *Database) Close() error {
	if db.executor != nil {
		db.executor.Release()
	}
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

// Config returns the configuration the Database was opened with.
func (db *Database) Config() *config.Config {
	return db.cfg
}

// Store returns the underlying record store.
func (db *Database) Store() storage.Store {
	return db.store
}

// Executor returns the flow executor.
func (db *Database) Executor() *flow.Executor {
	return db.executor
}

// Queue returns the task queue.
func (db *Database) Queue() *queue.Queue {
	return db.queue
}

// Runner returns the executor or the queue, depending on the scheduler mode.
func (db *Database) Runner() flow.Runner {
	if db.cfg.Scheduler.Mode == config.ModeQueue {
		return db.queue
	}
	return db.executor
}

// NewScheduler creates a scheduler for Runner using the configured delays.
func (db *Database) NewScheduler(opts ...flow.SchedulerOption) (*flow.Scheduler, error) {
	opts = append([]flow.SchedulerOption{
		flow.WithDelays(db.cfg.Scheduler.BaseDelay, db.cfg.Scheduler.MaxDelay),
		flow.WithSchedulerLogger(db.logger),
	}, opts...)
	return flow.NewScheduler(db.Runner(), opts...)
}

// NewIngester creates an ingester over the store. In queue mode every new
// document gets a convert task.
func (db *Database) NewIngester(opts ...ingestion.Option) (*ingestion.Ingester, error) {
	opts = append([]ingestion.Option{ingestion.WithPoolSize(db.cfg.Ingest.Workers)}, opts...)
	if db.cfg.Scheduler.Mode == config.ModeQueue {
		opts = append(opts, ingestion.WithOnDocument(func(ctx context.Context, doc *core.Record) error {
			_, err := db.queue.Enqueue(ctx, graph.FlowConvert, doc.Table, doc.ID)
			return err
		}))
	}
	return ingestion.NewIngester(db.store, opts...)
}

// NewSearcher creates a searcher using the provider's embedder and concept
// extractor.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithExtractor(db.provider.ConceptExtractor())}, opts...)
	return search.NewSearcher(db.store, db.provider.Embedder(), opts...)
}
