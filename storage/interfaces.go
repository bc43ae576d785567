package storage

import (
	"context"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
)

// RecordRepository provides operations on schemaless records grouped by table.
// Implementations must be thread-safe and support concurrent access.
type RecordRepository interface {
	// Create inserts a new record. If the ID is empty a new ULID is assigned.
	// Returns ErrDuplicateKey if a record with the same table and ID exists.
	Create(ctx context.Context, record *core.Record) (*core.Record, error)

	// Put inserts or fully replaces a record.
	Put(ctx context.Context, record *core.Record) error

	// Get retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, table, id string) (*core.Record, error)

	// Merge sets the given fields on an existing record. A nil value removes the field.
	// Returns the updated record, or ErrNotFound if the record doesn't exist.
	Merge(ctx context.Context, table, id string, fields map[string]any) (*core.Record, error)

	// Delete removes a record. Returns ErrNotFound if the record doesn't exist.
	Delete(ctx context.Context, table, id string) error

	// Find returns the records matching the query, ordered by ID ascending.
	Find(ctx context.Context, q query.Query) ([]*core.Record, error)

	// UpdateIf merges fields into the record only if it currently matches pred.
	// The check and the write are atomic. Returns false without error when the
	// record exists but does not match, and ErrNotFound when it doesn't exist.
	UpdateIf(ctx context.Context, table, id string, pred query.Predicate, fields map[string]any) (bool, error)
}

// FlowRepository persists flow descriptors.
type FlowRepository interface {
	// UpsertFlow creates or replaces the descriptor with the same name.
	// Seq is assigned on first insert and preserved afterwards; UpdatedAt is
	// set on every write. Returns the stored descriptor.
	UpsertFlow(ctx context.Context, flow *core.Flow) (*core.Flow, error)

	// GetFlow retrieves a descriptor by name.
	// Returns ErrNotFound if it doesn't exist.
	GetFlow(ctx context.Context, name string) (*core.Flow, error)

	// ListFlows returns all descriptors ordered by priority descending, then
	// by registration order.
	ListFlows(ctx context.Context) ([]*core.Flow, error)

	// DeleteFlow removes a descriptor. Returns ErrNotFound if it doesn't exist.
	DeleteFlow(ctx context.Context, name string) error
}

// Store combines record and flow storage over one database.
type Store interface {
	RecordRepository
	FlowRepository

	// Close closes the storage backend and releases resources.
	Close() error
}
