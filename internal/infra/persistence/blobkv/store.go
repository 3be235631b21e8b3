// Package blobkv adapts an object store (filesystem, S3 or memory) to the
// durable store contract. Each record is one JSON object named
// "<collection>/<key>.json".
package blobkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"symptobuddy/internal/blob"
	"symptobuddy/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DurableStore = (*Store)(nil)

const (
	objectSuffix     = ".json"
	schemaVersionKey = "meta/schema_version"
	// DefaultFetchConcurrency bounds parallel object reads in GetAll.
	DefaultFetchConcurrency = 8
)

// Store is a durable store on top of blob.Store.
type Store struct {
	blobs       blob.Store
	concurrency int
}

// Option configures a Store.
type Option func(*Store)

// WithFetchConcurrency overrides the GetAll fan-out limit.
func WithFetchConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New wraps blobs, writing the schema marker on first use.
func New(ctx context.Context, blobs blob.Store, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("blobkv: nil blob store")
	}
	s := &Store{blobs: blobs, concurrency: DefaultFetchConcurrency}
	for _, opt := range opts {
		opt(s)
	}
	stored, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckSchemaVersion(stored); err != nil {
		return nil, err
	}
	if stored != domain.SchemaVersion {
		marker := strconv.FormatInt(domain.SchemaVersion, 10)
		if _, err := blobs.Put(ctx, schemaVersionKey, strings.NewReader(marker), blob.PutOptions{ContentType: "text/plain"}); err != nil {
			return nil, fmt.Errorf("write schema marker: %w", err)
		}
	}
	return s, nil
}

func objectKey(collection domain.Collection, key string) string {
	return string(collection) + "/" + key + objectSuffix
}

// Put writes value as the object for collection/key, replacing any previous object.
func (s *Store) Put(ctx context.Context, collection domain.Collection, key string, value []byte) error {
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	opts := blob.PutOptions{ContentType: "application/json", Metadata: map[string]string{"collection": string(collection)}}
	if _, err := s.blobs.Put(ctx, objectKey(collection, key), bytes.NewReader(value), opts); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get reads the object for collection/key.
func (s *Store) Get(ctx context.Context, collection domain.Collection, key string) ([]byte, bool, error) {
	if err := domain.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	data, err := s.read(ctx, objectKey(collection, key))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return data, true, nil
}

func (s *Store) read(ctx context.Context, objKey string) ([]byte, error) {
	_, rc, err := s.blobs.Get(ctx, objKey)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// GetAll lists the collection prefix and fetches objects concurrently.
// Objects removed between listing and fetching are skipped.
func (s *Store) GetAll(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	if err := domain.CheckCollection(collection); err != nil {
		return nil, err
	}
	infos, err := s.blobs.List(ctx, string(collection)+"/")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	results := make([][]byte, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, info := range infos {
		if !strings.HasSuffix(info.Key, objectSuffix) {
			continue
		}
		g.Go(func() error {
			data, err := s.read(gctx, info.Key)
			if errors.Is(err, blob.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", info.Key, err)
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes the object for collection/key. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, collection domain.Collection, key string) error {
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	if _, err := s.blobs.Delete(ctx, objectKey(collection, key)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// SchemaVersion reads the schema marker object; a missing marker reads as 0.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	data, err := s.read(ctx, schemaVersionKey)
	if errors.Is(err, blob.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema marker: %w", err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode schema marker: %w", err)
	}
	return v, nil
}

// Close is a no-op; blob stores hold no long-lived handles.
func (s *Store) Close() error { return nil }

// Driver reports the underlying blob driver.
func (s *Store) Driver() blob.Driver { return s.blobs.Driver() }
