package graph

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/flowrun/ai"
	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/storage"
)

// Defaults for calls to AI services.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
)

// ErrStoreRequired is returned when Deps has no store.
var ErrStoreRequired = errors.New("graph: store is required")

// Deps are the collaborators the handlers use. Flows whose AI service is nil
// are not registered.
type Deps struct {
	Store      storage.RecordRepository
	Embedder   ai.Embedder
	Extractor  ai.ConceptExtractor
	Summarizer ai.Summarizer
	Chunker    *convert.Chunker

	// ReadFile loads a document's bytes. Default os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	// Emit is called with each record a handler finishes or creates: the
	// document after convert and each new chunk after chunk. Queue
	// deployments use it to enqueue follow-up tasks.
	Emit func(ctx context.Context, rec *core.Record) error

	RetryAttempts int
	RetryDelay    time.Duration
	Logger        *slog.Logger
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Store == nil {
		return d, ErrStoreRequired
	}
	if d.Chunker == nil {
		c, err := convert.NewChunker(convert.DefaultChunkSize, convert.DefaultChunkOverlap)
		if err != nil {
			return d, err
		}
		d.Chunker = c
	}
	if d.ReadFile == nil {
		d.ReadFile = os.ReadFile
	}
	if d.RetryAttempts <= 0 {
		d.RetryAttempts = DefaultRetryAttempts
	}
	if d.RetryDelay <= 0 {
		d.RetryDelay = DefaultRetryDelay
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With("component", "graph")
	return d, nil
}

func (d Deps) emit(ctx context.Context, rec *core.Record) error {
	if d.Emit == nil {
		return nil
	}
	return d.Emit(ctx, rec)
}
