package graph

import (
	"context"
	"errors"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/flow"
	"github.com/poiesic/flowrun/queue"
)

type definition struct {
	spec    flow.Spec
	handler func(Deps) flow.Handler
	enabled func(Deps) bool
}

func always(Deps) bool { return true }

var definitions = []definition{
	{
		spec:    flow.Spec{Name: FlowConvert, Table: TableDocument, Stamp: StampConverted, Dependencies: []string{FieldPath}, Priority: 4},
		handler: convertHandler,
		enabled: always,
	},
	{
		spec:    flow.Spec{Name: FlowChunk, Table: TableDocument, Stamp: StampChunked, Dependencies: []string{FieldText}, Priority: 3},
		handler: chunkHandler,
		enabled: always,
	},
	{
		spec:    flow.Spec{Name: FlowEmbed, Table: TableChunk, Stamp: StampEmbedded, Dependencies: []string{FieldText}, Priority: 2},
		handler: embedHandler,
		enabled: func(d Deps) bool { return d.Embedder != nil },
	},
	{
		spec:    flow.Spec{Name: FlowInfer, Table: TableChunk, Stamp: StampConceptsInferred, Dependencies: []string{FieldText}, Priority: 1},
		handler: inferHandler,
		enabled: func(d Deps) bool { return d.Extractor != nil },
	},
	{
		spec:    flow.Spec{Name: FlowSummarize, Table: TableChunk, Stamp: StampSummarized, Dependencies: []string{FieldText}, Priority: 0},
		handler: summarizeHandler,
		enabled: func(d Deps) bool { return d.Summarizer != nil },
	},
}

// followUps lists the task kinds to enqueue for a record emitted by a
// handler, by the record's table.
var followUps = map[string][]string{
	TableDocument: {FlowChunk},
	TableChunk:    {FlowEmbed, FlowInfer, FlowSummarize},
}

// Specs returns the specs of all document flows, highest priority first.
func Specs() []flow.Spec {
	specs := make([]flow.Spec, len(definitions))
	for i, def := range definitions {
		specs[i] = def.spec
	}
	return specs
}

// Register binds the document flows to exe. Flows whose AI service is not
// configured are skipped. Registration failures that leave the flow running
// (flow.ErrRegistrationFailed) are joined into the returned error; any other
// error aborts.
func Register(ctx context.Context, exe *flow.Executor, deps Deps) ([]*core.Flow, error) {
	d, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}

	var (
		flows []*core.Flow
		errs  []error
	)
	for _, def := range definitions {
		if !def.enabled(d) {
			d.Logger.Info("flow skipped, service not configured", "flow", def.spec.Name)
			continue
		}
		f, err := exe.Register(ctx, def.spec, def.handler(d))
		switch {
		case err == nil:
		case errors.Is(err, flow.ErrRegistrationFailed):
			errs = append(errs, err)
		default:
			return flows, err
		}
		flows = append(flows, f)
	}
	return flows, errors.Join(errs...)
}

// RegisterQueue binds the same handlers to q as task kinds named after the
// flows. Handlers stamp with the flow's logic hash, as they do under the
// executor.
func RegisterQueue(q *queue.Queue, deps Deps) error {
	d, err := deps.withDefaults()
	if err != nil {
		return err
	}

	for _, def := range definitions {
		if !def.enabled(d) {
			d.Logger.Info("task kind skipped, service not configured", "kind", def.spec.Name)
			continue
		}
		h := def.handler(d)
		hash := flow.StableHash(h)
		if err := q.Register(def.spec.Name, def.spec.Table, func(ctx context.Context, ref *core.Record) error {
			return h(ctx, ref, hash)
		}); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueFollowUps returns an Emit function that enqueues, for each emitted
// record, the tasks that continue processing it.
func EnqueueFollowUps(q *queue.Queue) func(ctx context.Context, rec *core.Record) error {
	return func(ctx context.Context, rec *core.Record) error {
		var errs []error
		for _, kind := range followUps[rec.Table] {
			if !q.Handles(kind) {
				continue
			}
			if _, err := q.Enqueue(ctx, kind, rec.Table, rec.ID); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
