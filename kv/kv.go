// Package kv defines the minimal key-value capability the store is built
// on, and the adapter over github.com/luxfi/database that backs it.
package kv

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
)

var (
	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("kv: key not found")
	// ErrFailure wraps any backend fault that is not a plain miss.
	ErrFailure = errors.New("kv: backend failure")
)

// Store is the byte-clean capability contract. Implementations need no
// transactions; single-key writes are assumed atomic by the backend.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Del(key []byte) error
	// List returns all keys with the given prefix in lexicographic order.
	List(prefix []byte) ([][]byte, error)
}

type dbStore struct {
	db database.Database
}

// FromDatabase adapts a luxfi database to the Store capability. Tests
// typically pass memdb.New().
func FromDatabase(db database.Database) Store {
	return &dbStore{db: db}
}

func (s *dbStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrFailure, key, err)
	}
	return v, nil
}

func (s *dbStore) Put(key []byte, value []byte) error {
	if err := s.db.Put(key, value); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrFailure, key, err)
	}
	return nil
}

func (s *dbStore) Del(key []byte) error {
	if err := s.db.Delete(key); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: del %s: %v", ErrFailure, key, err)
	}
	return nil
}

func (s *dbStore) List(prefix []byte) ([][]byte, error) {
	it := s.db.NewIteratorWithPrefix(prefix)
	defer it.Release()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrFailure, prefix, err)
	}
	return keys, nil
}
