package badger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"symptobuddy/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DurableStore = (*Store)(nil)

var schemaVersionKey = []byte("meta/schema_version")

// Store maps each collection/key pair onto a single Badger key.
type Store struct {
	db       *badger.DB
	gc       *GCRunner
	path     string
	inMemory bool

	closeOnce sync.Once
	closeErr  error
}

// NewStore opens the database described by cfg, records the schema version
// on first open and starts the GC runner when configured.
func NewStore(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: cfg.Path, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.Start()
	}
	return s, nil
}

func initSchema(db *badger.DB) error {
	return db.Update(func(txn *badger.Txn) error {
		stored, err := readVersion(txn)
		if err != nil {
			return err
		}
		if err := domain.CheckSchemaVersion(stored); err != nil {
			return err
		}
		if stored == domain.SchemaVersion {
			return nil
		}
		return txn.Set(schemaVersionKey, []byte(strconv.FormatInt(domain.SchemaVersion, 10)))
	})
}

func readVersion(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(schemaVersionKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	var version int64
	err = item.Value(func(val []byte) error {
		v, perr := strconv.ParseInt(string(val), 10, 64)
		version = v
		return perr
	})
	if err != nil {
		return 0, fmt.Errorf("decode schema version: %w", err)
	}
	return version, nil
}

func recordKey(collection domain.Collection, key string) []byte {
	return []byte(string(collection) + "/" + key)
}

func collectionPrefix(collection domain.Collection) []byte {
	return []byte(string(collection) + "/")
}

// Put stores value under collection/key, replacing any existing value.
func (s *Store) Put(ctx context.Context, collection domain.Collection, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(collection, key), value)
	}); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get returns a copy of the value stored under collection/key.
func (s *Store) Get(ctx context.Context, collection domain.Collection, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := domain.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(collection, key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return out, true, nil
}

// GetAll returns every value in collection, in key order.
func (s *Store) GetAll(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.CheckCollection(collection); err != nil {
		return nil, err
	}
	out := make([][]byte, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := collectionPrefix(collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
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
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(collection, key))
	}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// SchemaVersion reports the version recorded in the store.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var version int64
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := readVersion(txn)
		version = v
		return err
	})
	return version, err
}

// Close stops the GC runner and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.Stop()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Path returns the database directory, or "" for in-memory stores.
func (s *Store) Path() string {
	if s.inMemory {
		return ""
	}
	return s.path
}

// Sync flushes pending writes to disk. No-op for in-memory stores.
func (s *Store) Sync() error {
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}
