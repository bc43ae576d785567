package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// Relate records an edge of kind from one record to another. Relating the
// same pair twice is a no-op.
func Relate(ctx context.Context, repo storage.RecordRepository, kind string, from, to *core.Record, fields map[string]any) error {
	edge := core.NewRecord(kind, core.EdgeID(from, to))
	for k, v := range fields {
		edge.Set(k, v)
	}
	edge.Set(FieldIn, from.Ref())
	edge.Set(FieldOut, to.Ref())

	if _, err := repo.Create(ctx, edge); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("relate %s %s -> %s: %w", kind, from.Ref(), to.Ref(), err)
	}
	return nil
}

// Outgoing returns the edges of kind that start at from.
func Outgoing(ctx context.Context, repo storage.RecordRepository, kind string, from *core.Record) ([]*core.Record, error) {
	return repo.Find(ctx, query.Query{
		Table: kind,
		Where: query.Equals{Field: FieldIn, Value: from.Ref()},
	})
}

// Incoming returns the edges of kind that end at to.
func Incoming(ctx context.Context, repo storage.RecordRepository, kind string, to *core.Record) ([]*core.Record, error) {
	return repo.Find(ctx, query.Query{
		Table: kind,
		Where: query.Equals{Field: FieldOut, Value: to.Ref()},
	})
}
