package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// Create inserts a new record, assigning a ULID when the ID is empty.
func (s *Store) Create(ctx context.Context, record *core.Record) (*core.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec := record.Clone()
	if rec != nil && rec.ID == "" {
		rec.ID = core.NewID()
	}
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	value, err := storage.MarshalFields(rec.Fields)
	if err != nil {
		return nil, err
	}

	key := makeRecordKey(rec.Table, rec.ID)
	err = s.backend.Update(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, rec.Ref())
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set(key, value)
	})
	if err != nil {
		return nil, err
	}

	rec.Fields, err = storage.UnmarshalFields(value)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Put inserts or fully replaces a record.
func (s *Store) Put(ctx context.Context, record *core.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	value, err := storage.MarshalFields(record.Fields)
	if err != nil {
		return err
	}
	key := makeRecordKey(record.Table, record.ID)
	return s.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(key, value)
	})
}

// Get retrieves a single record.
func (s *Store) Get(ctx context.Context, table, id string) (*core.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var rec *core.Record
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		rec, err = readRecord(tx, table, id)
		return err
	}, false)
	return rec, err
}

// Merge sets fields on an existing record; nil values remove fields.
func (s *Store) Merge(ctx context.Context, table, id string, fields map[string]any) (*core.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var rec *core.Record
	err := s.backend.Update(func(tx *badger.Txn) error {
		current, err := readRecord(tx, table, id)
		if err != nil {
			return err
		}
		current.Fields = storage.ApplyFields(current.Fields, fields)
		if err := writeRecord(tx, current); err != nil {
			return err
		}
		rec = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalize(rec)
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key := makeRecordKey(table, id)
	return s.backend.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Delete(key)
	})
}

// Find scans the table in key order and returns the records matching the query.
func (s *Store) Find(ctx context.Context, q query.Query) ([]*core.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := query.Validate(q); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if err := checkTable(q.Table); err != nil {
		return nil, err
	}

	var results []*core.Record
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeTablePrefix(q.Table)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := prefix
		if q.After != "" {
			start = makeRecordKey(q.Table, q.After)
		}

		for iter.Seek(start); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			key := item.Key()
			id := string(bytes.TrimPrefix(key, prefix))
			if q.After != "" && id <= q.After {
				continue
			}

			var fields map[string]any
			err := item.Value(func(val []byte) error {
				var err error
				fields, err = storage.UnmarshalFields(val)
				return err
			})
			if err != nil {
				return err
			}

			rec := &core.Record{Table: q.Table, ID: id, Fields: fields}
			if !query.Match(q.Where, rec) {
				continue
			}
			results = append(results, rec)
			if q.Limit > 0 && len(results) >= q.Limit {
				break
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateIf merges fields into the record only if it currently matches pred.
func (s *Store) UpdateIf(ctx context.Context, table, id string, pred query.Predicate, fields map[string]any) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var applied bool
	err := s.backend.Update(func(tx *badger.Txn) error {
		applied = false
		current, err := readRecord(tx, table, id)
		if err != nil {
			return err
		}
		if !query.Match(pred, current) {
			return nil
		}
		current.Fields = storage.ApplyFields(current.Fields, fields)
		if err := writeRecord(tx, current); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func validateRecord(rec *core.Record) error {
	if err := core.ValidateRecord(rec); err != nil {
		return err
	}
	return checkTable(rec.Table)
}

func readRecord(tx *badger.Txn, table, id string) (*core.Record, error) {
	item, err := tx.Get(makeRecordKey(table, id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	rec := &core.Record{Table: table, ID: id}
	err = item.Value(func(val []byte) error {
		var err error
		rec.Fields, err = storage.UnmarshalFields(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func writeRecord(tx *badger.Txn, rec *core.Record) error {
	value, err := storage.MarshalFields(rec.Fields)
	if err != nil {
		return err
	}
	return tx.Set(makeRecordKey(rec.Table, rec.ID), value)
}

// normalize returns the record as it would read back from the store.
func normalize(rec *core.Record) (*core.Record, error) {
	fields, err := storage.NormalizeFields(rec.Fields)
	if err != nil {
		return nil, err
	}
	rec.Fields = fields
	return rec, nil
}
