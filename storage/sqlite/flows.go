package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/storage"
)

// UpsertFlow creates or replaces a flow descriptor, preserving seq across rewrites.
func (s *Store) UpsertFlow(ctx context.Context, flow *core.Flow) (*core.Flow, error) {
	if err := core.ValidateFlow(flow); err != nil {
		return nil, err
	}

	next := flow.Clone()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRowContext(ctx, `SELECT seq FROM flows WHERE name = ?`, flow.Name).Scan(&seq)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM flows`).Scan(&seq); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		next.Seq = uint64(seq)
		next.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

		_, err = tx.ExecContext(ctx,
			`INSERT INTO flows(name, priority, seq, data) VALUES(?, ?, ?, ?)
             ON CONFLICT(name) DO UPDATE SET priority = excluded.priority, data = excluded.data`,
			next.Name, next.Priority, seq, storage.MarshalFlow(next))
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// GetFlow retrieves a descriptor by name.
func (s *Store) GetFlow(ctx context.Context, name string) (*core.Flow, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM flows WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, wrapClosed(err)
	}
	return storage.UnmarshalFlow(data)
}

// ListFlows returns all descriptors by priority descending, then registration order.
func (s *Store) ListFlows(ctx context.Context) ([]*core.Flow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM flows ORDER BY priority DESC, seq ASC`)
	if err != nil {
		return nil, wrapClosed(err)
	}
	defer rows.Close()

	var flows []*core.Flow
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		flow, err := storage.UnmarshalFlow(data)
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	storage.SortFlows(flows)
	return flows, nil
}

// DeleteFlow removes a descriptor.
func (s *Store) DeleteFlow(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE name = ?`, name)
	if err != nil {
		return wrapClosed(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
