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


package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/flowrun/flow"

// Results maps flow name to the number of candidates processed in one pass.
// Every flow visited in the pass has an entry, including flows with none.
type Results map[string]int

// Total returns the number of records processed across all flows.
func (r Results) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// Spec describes a flow at registration time.
type Spec struct {
	// Name identifies the flow. Defaults to the handler's function name.
	Name string
	// Table is the record collection the flow scans.
	Table string
	// Stamp is the field whose presence marks a record done for this flow.
	Stamp string
	// Dependencies must all be present before a record is a candidate.
	Dependencies []string
	// Priority orders flows within a pass, highest first.
	Priority int
}

type registration struct {
	hash string
}

// RegisterOption customizes a single registration.
type RegisterOption func(*registration)

// WithHash overrides the computed logic hash, for handlers whose source is
// not available at runtime or whose version is tracked elsewhere.
func WithHash(hash string) RegisterOption {
	return func(r *registration) {
		r.hash = hash
	}
}

// Executor runs passes over all registered flows.
//
// A pass visits flows in priority order. For each flow it scans candidates
// and invokes the flow's handler on each one. Handler failures are logged and
// leave the record for the next pass; they never abort the pass.
type Executor struct {
	store    storage.Store
	registry *Registry
	dispatch *Dispatch
	scanner  *Scanner

	pageSize    int
	concurrency int
	pool        *ants.Pool
	metrics     *metrics
	tracer      trace.Tracer
	logger      *slog.Logger

	stopped atomic.Bool
}

var _ Runner = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithPageSize sets how many candidates are loaded per store query.
// Default is DefaultPageSize; 0 loads all candidates of a flow at once.
func WithPageSize(size int) Option {
	return func(e *Executor) error {
		if size < 0 {
			size = 0
		}
		e.pageSize = size
		return nil
	}
}

// WithConcurrency runs up to n candidates of the same flow at once on a
// worker pool. Flows still run one after another in priority order.
// Handlers must commit through a conditional update (see Commit) so a
// record is stamped at most once. Default is 1 (sequential).
func WithConcurrency(n int) Option {
	return func(e *Executor) error {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
		return nil
	}
}

// WithMetrics registers the executor's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Executor) error {
		if reg == nil {
			e.metrics = nil
			return nil
		}
		m, err := newMetrics(reg)
		if err != nil {
			return err
		}
		e.metrics = m
		return nil
	}
}

// WithTracer sets the tracer for handler spans.
// Default is the global OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) error {
		if tracer != nil {
			e.tracer = tracer
		}
		return nil
	}
}

// NewExecutor creates an executor over store.
func NewExecutor(store storage.Store, opts ...Option) (*Executor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	e := &Executor{
		store:       store,
		dispatch:    NewDispatch(),
		pageSize:    DefaultPageSize,
		concurrency: 1,
		tracer:      otel.Tracer(tracerName),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "flow-executor")

	registry, err := NewRegistry(store, e.logger)
	if err != nil {
		return nil, err
	}
	e.registry = registry
	e.scanner = NewScanner(store, e.pageSize)

	if e.concurrency > 1 {
		pool, err := ants.NewPool(e.concurrency)
		if err != nil {
			return nil, err
		}
		e.pool = pool
	}

	return e, nil
}

// Release frees the worker pool, if any.
func (e *Executor) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Register persists the flow descriptor and binds its handler.
//
// The hash is computed from the handler's logic unless WithHash is given.
// The handler is bound even when persisting the descriptor fails; in that
// case the error wraps ErrRegistrationFailed and the flow still runs.
func (e *Executor) Register(ctx context.Context, spec Spec, h Handler, opts ...RegisterOption) (*core.Flow, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	reg := registration{}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.hash == "" {
		reg.hash = StableHash(h)
	}

	name := spec.Name
	if name == "" {
		name = ShortFuncName(h)
	}

	flow := &core.Flow{
		Name:         name,
		Table:        spec.Table,
		Stamp:        spec.Stamp,
		Dependencies: append([]string(nil), spec.Dependencies...),
		Priority:     spec.Priority,
		Hash:         reg.hash,
	}
	if err := core.ValidateFlow(flow); err != nil {
		return nil, err
	}

	if err := e.dispatch.Register(flow.Name, h); err != nil {
		return nil, err
	}

	stored, err := e.registry.Upsert(ctx, flow)
	if err != nil {
		return stored, err
	}
	e.logger.Info("flow registered", "flow", stored.Name, "table", stored.Table,
		"stamp", stored.Stamp, "priority", stored.Priority, "hash", stored.Hash)
	return stored, nil
}

// Stop asks a running pass to return at the next check point: between flows
// and between candidates. Safe to call from any goroutine.
func (e *Executor) Stop() {
	e.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (e *Executor) Stopped() bool {
	return e.stopped.Load()
}

// Resume clears a previous Stop.
func (e *Executor) Resume() {
	e.stopped.Store(false)
}

func (e *Executor) shouldStop(ctx context.Context) bool {
	return e.stopped.Load() || ctx.Err() != nil
}

// Flows returns every known descriptor in execution order.
func (e *Executor) Flows(ctx context.Context) ([]*core.Flow, error) {
	return e.registry.List(ctx)
}

// Dispatch returns the executor's handler table.
func (e *Executor) Dispatch() *Dispatch {
	return e.dispatch
}

// RunOnce performs one pass over all flows and returns per-flow counts.
//
// A scan failure for one flow is logged and the pass moves on; the scan
// errors are joined into the returned error alongside the partial results.
// A flow without a handler is logged and reported with 0. If Stop is called
// or ctx is done, RunOnce returns early with partial counts.
func (e *Executor) RunOnce(ctx context.Context) (Results, error) {
	start := time.Now()
	results := Results{}
	var errs []error

	flows, err := e.registry.List(ctx)
	if err != nil {
		e.logger.Error("failed to load flows, using local registrations", "error", err)
		errs = append(errs, err)
	}

	for _, f := range flows {
		if e.shouldStop(ctx) {
			break
		}
		results[f.Name] = 0

		if !e.dispatch.Has(f.Name) {
			e.logger.Error("no handler registered for flow, skipping", "flow", f.Name)
			continue
		}

		n, err := e.runFlow(ctx, f)
		results[f.Name] = n
		if err != nil && ctx.Err() == nil {
			e.logger.Error("candidate scan failed", "flow", f.Name, "error", err)
			errs = append(errs, fmt.Errorf("flow %s: %w", f.Name, err))
		}
	}

	e.metrics.recordPass(time.Since(start))
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}

// runFlow processes the candidates of one flow and returns how many succeeded.
func (e *Executor) runFlow(ctx context.Context, f *core.Flow) (int, error) {
	logger := e.logger.With("flow", f.Name)
	var processed, visited atomic.Int64

	err := e.scanner.Pages(ctx, f, func(page []*core.Record) bool {
		if e.pool == nil {
			for _, rec := range page {
				visited.Add(1)
				if e.invoke(ctx, f, rec, logger) {
					processed.Add(1)
				}
				if e.shouldStop(ctx) {
					return false
				}
			}
			return true
		}

		var wg sync.WaitGroup
		for _, rec := range page {
			if e.shouldStop(ctx) {
				break
			}
			wg.Add(1)
			submitErr := e.pool.Submit(func() {
				defer wg.Done()
				if e.shouldStop(ctx) {
					return
				}
				visited.Add(1)
				if e.invoke(ctx, f, rec, logger) {
					processed.Add(1)
				}
			})
			if submitErr != nil {
				wg.Done()
				logger.Error("failed to submit candidate", "id", rec.ID, "error", submitErr)
			}
		}
		wg.Wait()
		return !e.shouldStop(ctx)
	})

	e.metrics.recordCandidates(f.Name, int(visited.Load()))
	n := int(processed.Load())
	if n > 0 {
		logger.Debug("flow processed records", "count", n)
	}
	return n, err
}

// invoke runs the handler for one candidate inside a span and reports
// whether it succeeded.
func (e *Executor) invoke(ctx context.Context, f *core.Flow, rec *core.Record, logger *slog.Logger) bool {
	ctx, span := e.tracer.Start(ctx, "flow.handle", trace.WithAttributes(
		attribute.String("flow.name", f.Name),
		attribute.String("flow.table", f.Table),
		attribute.String("record.id", rec.ID),
	))
	defer span.End()

	err := e.dispatch.Invoke(ctx, f.Name, rec, f.Hash)
	switch {
	case err == nil:
		e.metrics.recordProcessed(f.Name)
		return true
	case errors.Is(err, core.ErrAlreadyStamped):
		logger.Debug("record already stamped, skipping", "id", rec.ID)
		e.metrics.recordSkipped(f.Name)
		return false
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("handler failed", "id", rec.ID, "error", err)
		e.metrics.recordFailure(f.Name)
		return false
	}
}

// Stale returns records of the flow whose stamp was written by a different
// version of the handler logic than the current one.
func (e *Executor) Stale(ctx context.Context, name string) ([]*core.Record, error) {
	f, err := e.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	var stale []*core.Record
	err = e.stamped(ctx, f, staleness(f, true), func(page []*core.Record) error {
		stale = append(stale, page...)
		return nil
	})
	return stale, err
}

// Reset removes the stamp from the flow's records so they become candidates
// again. With staleOnly only records stamped by another logic version are
// reset. Returns the number of records reset.
func (e *Executor) Reset(ctx context.Context, name string, staleOnly bool) (int, error) {
	f, err := e.registry.Get(ctx, name)
	if err != nil {
		return 0, err
	}

	pred := staleness(f, staleOnly)
	reset := 0
	err = e.stamped(ctx, f, pred, func(page []*core.Record) error {
		for _, rec := range page {
			ok, err := e.store.UpdateIf(ctx, f.Table, rec.ID, pred, map[string]any{f.Stamp: nil})
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			if ok {
				reset++
			}
		}
		return nil
	})
	if err != nil {
		return reset, err
	}
	e.logger.Info("flow stamps reset", "flow", f.Name, "count", reset, "staleOnly", staleOnly)
	return reset, nil
}

// stamped walks the flow's records matching pred one page at a time, in ID
// order. The cursor advances past every record it hands to fn, so records fn
// changes are not revisited.
func (e *Executor) stamped(ctx context.Context, f *core.Flow, pred query.Predicate, fn func(page []*core.Record) error) error {
	after := ""
	for {
		page, err := e.store.Find(ctx, query.Query{
			Table: f.Table,
			Where: pred,
			After: after,
			Limit: e.pageSize,
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if e.pageSize == 0 || len(page) < e.pageSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func staleness(f *core.Flow, staleOnly bool) query.Predicate {
	if staleOnly {
		return query.And{query.Present{Field: f.Stamp}, query.NotEquals{Field: f.Stamp, Value: f.Hash}}
	}
	return query.Present{Field: f.Stamp}
}
