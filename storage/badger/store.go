package badger

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/flowrun/storage"
)

// Store implements storage.Store for BadgerDB.
type Store struct {
	backend *Backend
	flowSeq *badger.Sequence
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) a BadgerDB store in the given directory.
func NewStore(path string) (storage.Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	store, err := newStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

func newStore(backend *Backend) (*Store, error) {
	flowSeq, err := backend.GetSequence(flowIDSeq)
	if err != nil {
		return nil, err
	}

	return &Store{
		backend: backend,
		flowSeq: flowSeq,
	}, nil
}

// Close releases the flow sequence and closes the database.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := s.flowSeq.Release(); err != nil {
		s.backend.Close()
		return err
	}
	return s.backend.Close()
}

func (s *Store) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}
