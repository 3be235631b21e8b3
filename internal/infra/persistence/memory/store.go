// Package memory provides an in-memory implementation of the durable store
// used for tests and ephemeral sessions.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"symptobuddy/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.DurableStore = (*Store)(nil)

// Store keeps collections in process memory. Values are copied on the way in
// and out so callers never share buffers with the store.
type Store struct {
	mu      sync.RWMutex
	data    map[domain.Collection]map[string][]byte
	version int64
	closed  bool
}

// NewStore returns an empty store already at the current schema version.
func NewStore() *Store {
	data := make(map[domain.Collection]map[string][]byte, len(domain.Collections))
	for _, c := range domain.Collections {
		data[c] = make(map[string][]byte)
	}
	return &Store{data: data, version: domain.SchemaVersion}
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory store closed: %w", domain.ErrStorageUnavailable)
	}
	return nil
}

// Put stores a copy of value under collection/key, replacing any existing value.
func (s *Store) Put(ctx context.Context, collection domain.Collection, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.data[collection][key] = bytes.Clone(value)
	return nil
}

// Get returns a copy of the stored value.
func (s *Store) Get(ctx context.Context, collection domain.Collection, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := domain.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	v, ok := s.data[collection][key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// GetAll returns copies of every value in collection in no particular order.
func (s *Store) GetAll(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.CheckCollection(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(s.data[collection]))
	for _, v := range s.data[collection] {
		out = append(out, bytes.Clone(v))
	}
	return out, nil
}

// Delete removes collection/key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, collection domain.Collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	delete(s.data[collection], key)
	return nil
}

// SchemaVersion reports the schema version the store was initialised with.
func (s *Store) SchemaVersion(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.version, nil
}

// Close releases the store. Later operations fail with ErrStorageUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len reports the number of entries in collection.
func (s *Store) Len(collection domain.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[collection])
}
