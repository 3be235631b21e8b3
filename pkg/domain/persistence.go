package domain

import (
	"context"
	"fmt"
	"strings"
)

// SchemaVersion is the durable layout version written by every backend.
const SchemaVersion int64 = 1

// Collection names a keyed collection in the durable store.
type Collection string

const (
	// CollectionProfile holds the singleton user profile.
	CollectionProfile Collection = "userProfile"
	// CollectionTests holds test history records keyed by record id.
	CollectionTests Collection = "testHistory"
)

// Collections lists every collection created when a store is initialised.
var Collections = []Collection{CollectionProfile, CollectionTests}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// DurableStore is a persistent, versioned, key-addressed object store. Each
// key operation is atomic on its own; there is no grouping across calls.
type DurableStore interface {
	// Put replaces any value stored at key and returns once it is durable.
	Put(ctx context.Context, collection Collection, key string, value []byte) error
	// Get returns the stored value. A missing key yields found=false and a nil error.
	Get(ctx context.Context, collection Collection, key string) (value []byte, found bool, err error)
	// GetAll returns every value in the collection in unspecified order.
	GetAll(ctx context.Context, collection Collection) ([][]byte, error)
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, collection Collection, key string) error
	// SchemaVersion reports the layout version recorded in the store.
	SchemaVersion(ctx context.Context) (int64, error)
	// Close releases the underlying handle.
	Close() error
}

// CheckKey validates the collection and key of a single-key operation.
func CheckKey(collection Collection, key string) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// CheckCollection validates a collection-wide operation.
func CheckCollection(collection Collection) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return nil
}

// CheckSchemaVersion rejects stores written by a newer layout.
func CheckSchemaVersion(stored int64) error {
	if stored > SchemaVersion {
		return fmt.Errorf("%w: store has version %d, supported %d", ErrSchemaTooNew, stored, SchemaVersion)
	}
	return nil
}
