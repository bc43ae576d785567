package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/storage"
)

// UpsertFlow creates or replaces a flow descriptor, preserving Seq across rewrites.
func (s *Store) UpsertFlow(ctx context.Context, flow *core.Flow) (*core.Flow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := core.ValidateFlow(flow); err != nil {
		return nil, err
	}

	var stored *core.Flow
	err := s.backend.Update(func(tx *badger.Txn) error {
		next := flow.Clone()
		existing, err := readFlow(tx, flow.Name)
		switch {
		case err == nil:
			next.Seq = existing.Seq
		case errors.Is(err, storage.ErrNotFound):
			seq, err := s.nextSeq()
			if err != nil {
				return err
			}
			next.Seq = seq
		default:
			return err
		}
		next.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		if err := tx.Set(makeFlowKey(next.Name), storage.MarshalFlow(next)); err != nil {
			return err
		}
		stored = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetFlow retrieves a descriptor by name.
func (s *Store) GetFlow(ctx context.Context, name string) (*core.Flow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var flow *core.Flow
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		flow, err = readFlow(tx, name)
		return err
	}, false)
	return flow, err
}

// ListFlows returns all descriptors by priority descending, then registration order.
func (s *Store) ListFlows(ctx context.Context) ([]*core.Flow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var flows []*core.Flow
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeFlowPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var flow *core.Flow
			err := iter.Item().Value(func(val []byte) error {
				var err error
				flow, err = storage.UnmarshalFlow(val)
				return err
			})
			if err != nil {
				return err
			}
			flows = append(flows, flow)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	storage.SortFlows(flows)
	return flows, nil
}

// DeleteFlow removes a descriptor.
func (s *Store) DeleteFlow(ctx context.Context, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key := makeFlowKey(name)
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

func (s *Store) nextSeq() (uint64, error) {
	seq, err := s.flowSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if seq == 0 {
		return s.flowSeq.Next()
	}
	return seq, nil
}

func readFlow(tx *badger.Txn, name string) (*core.Flow, error) {
	item, err := tx.Get(makeFlowKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var flow *core.Flow
	err = item.Value(func(val []byte) error {
		var err error
		flow, err = storage.UnmarshalFlow(val)
		return err
	})
	return flow, err
}
