package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/storage"
)

// Registry is the catalogue of flow descriptors.
//
// Descriptors are persisted in a storage.FlowRepository so other tools can
// list them. Every descriptor registered by this process is also kept in
// memory and merged into List, so a flow whose descriptor failed to persist
// still runs.
type Registry struct {
	repo   storage.FlowRepository
	logger *slog.Logger

	mu        sync.Mutex
	local     map[string]*core.Flow
	localSeqs uint64
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo storage.FlowRepository, logger *slog.Logger) (*Registry, error) {
	if repo == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		repo:   repo,
		logger: logger.With("component", "flow-registry"),
		local:  make(map[string]*core.Flow),
	}, nil
}

// Upsert creates or replaces the descriptor with flow.Name. The latest
// registration wins.
//
// If the store write fails the error is logged and returned wrapped in
// ErrRegistrationFailed; the descriptor is still kept in memory.
func (r *Registry) Upsert(ctx context.Context, flow *core.Flow) (*core.Flow, error) {
	if err := core.ValidateFlow(flow); err != nil {
		return nil, err
	}

	stored, err := r.repo.UpsertFlow(ctx, flow)
	if err != nil {
		local := flow.Clone()
		r.mu.Lock()
		if prev, ok := r.local[local.Name]; ok {
			local.Seq = prev.Seq
		} else {
			// Unpersisted flows sort after persisted ones of equal priority.
			r.localSeqs++
			local.Seq = math.MaxUint64/2 + r.localSeqs
		}
		r.local[local.Name] = local
		r.mu.Unlock()

		r.logger.Error("failed to persist flow descriptor", "flow", flow.Name, "error", err)
		return local.Clone(), fmt.Errorf("%w: %s: %w", ErrRegistrationFailed, flow.Name, err)
	}

	r.mu.Lock()
	r.local[stored.Name] = stored.Clone()
	r.mu.Unlock()

	r.logger.Debug("flow registered", "flow", stored.Name, "priority", stored.Priority, "hash", stored.Hash)
	return stored, nil
}

// List returns every known descriptor ordered by priority descending, ties
// broken by registration order. Descriptors registered by this process
// replace stored ones of the same name.
//
// If the store cannot be read, the locally registered descriptors are
// returned together with the error.
func (r *Registry) List(ctx context.Context) ([]*core.Flow, error) {
	stored, err := r.repo.ListFlows(ctx)

	r.mu.Lock()
	merged := make([]*core.Flow, 0, len(stored)+len(r.local))
	seen := make(map[string]bool, len(r.local))
	for _, f := range stored {
		if local, ok := r.local[f.Name]; ok {
			l := local.Clone()
			if l.Seq >= math.MaxUint64/2 {
				l.Seq = f.Seq
			}
			merged = append(merged, l)
		} else {
			merged = append(merged, f)
		}
		seen[f.Name] = true
	}
	for name, f := range r.local {
		if !seen[name] {
			merged = append(merged, f.Clone())
		}
	}
	r.mu.Unlock()

	storage.SortFlows(merged)
	if err != nil {
		return merged, fmt.Errorf("list flows: %w", err)
	}
	return merged, nil
}

// Get returns one descriptor, preferring this process's registration.
func (r *Registry) Get(ctx context.Context, name string) (*core.Flow, error) {
	r.mu.Lock()
	local, ok := r.local[name]
	r.mu.Unlock()
	if ok {
		return local.Clone(), nil
	}

	f, err := r.repo.GetFlow(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	return f, err
}
