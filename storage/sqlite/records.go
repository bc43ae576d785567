package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// Create inserts a new record, assigning a ULID when the ID is empty.
func (s *Store) Create(ctx context.Context, record *core.Record) (*core.Record, error) {
	rec := record.Clone()
	if rec != nil && rec.ID == "" {
		rec.ID = core.NewID()
	}
	if err := core.ValidateRecord(rec); err != nil {
		return nil, err
	}
	data, err := storage.MarshalFields(rec.Fields)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records(tbl, id, data) VALUES(?, ?, ?) ON CONFLICT(tbl, id) DO NOTHING`,
		rec.Table, rec.ID, string(data))
	if err != nil {
		return nil, wrapClosed(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrDuplicateKey, rec.Ref())
	}

	rec.Fields, err = storage.UnmarshalFields(data)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Put inserts or fully replaces a record.
func (s *Store) Put(ctx context.Context, record *core.Record) error {
	if err := core.ValidateRecord(record); err != nil {
		return err
	}
	data, err := storage.MarshalFields(record.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records(tbl, id, data) VALUES(?, ?, ?)
         ON CONFLICT(tbl, id) DO UPDATE SET data = excluded.data`,
		record.Table, record.ID, string(data))
	return wrapClosed(err)
}

// Get retrieves a single record.
func (s *Store) Get(ctx context.Context, table, id string) (*core.Record, error) {
	return getRecord(ctx, s.db, table, id)
}

// Merge applies fields as a JSON merge patch; nil values remove fields.
func (s *Store) Merge(ctx context.Context, table, id string, fields map[string]any) (*core.Record, error) {
	var rec *core.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		applied, err := patch(ctx, tx, table, id, nil, fields)
		if err != nil {
			return err
		}
		if !applied {
			return storage.ErrNotFound
		}
		rec, err = getRecord(ctx, tx, table, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND id = ?`, table, id)
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

// Find returns the records matching the query, ordered by ID ascending.
func (s *Store) Find(ctx context.Context, q query.Query) ([]*core.Record, error) {
	if err := query.Validate(q); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	c, err := compileQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, c.sql, c.args...)
	if err != nil {
		return nil, wrapClosed(err)
	}
	defer rows.Close()

	var results []*core.Record
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		fields, err := storage.UnmarshalFields([]byte(data))
		if err != nil {
			return nil, err
		}
		results = append(results, &core.Record{Table: q.Table, ID: id, Fields: fields})
	}
	return results, rows.Err()
}

// UpdateIf patches the record only if it currently matches pred. The
// condition is part of the UPDATE statement, so the check is atomic.
func (s *Store) UpdateIf(ctx context.Context, table, id string, pred query.Predicate, fields map[string]any) (bool, error) {
	var applied bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		applied, err = patch(ctx, tx, table, id, pred, fields)
		if err != nil || applied {
			return err
		}
		// Distinguish "did not match" from "does not exist".
		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE tbl = ? AND id = ?`, table, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getRecord(ctx context.Context, q querier, table, id string) (*core.Record, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM records WHERE tbl = ? AND id = ?`, table, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, wrapClosed(err)
	}
	fields, err := storage.UnmarshalFields([]byte(data))
	if err != nil {
		return nil, err
	}
	return &core.Record{Table: table, ID: id, Fields: fields}, nil
}

// patch runs json_patch over one record, optionally guarded by pred, and
// reports whether a row changed. JSON null in the patch removes the key.
func patch(ctx context.Context, e execer, table, id string, pred query.Predicate, fields map[string]any) (bool, error) {
	where, err := compileWhere(pred)
	if err != nil {
		return false, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	doc, err := sonic.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("%w: fields: %w", storage.ErrSerializationFailed, err)
	}

	args := append([]any{string(doc), table, id}, where.args...)
	res, err := e.ExecContext(ctx,
		`UPDATE records SET data = json_patch(data, ?) WHERE tbl = ? AND id = ? AND (`+where.sql+`)`,
		args...)
	if err != nil {
		return false, wrapClosed(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
