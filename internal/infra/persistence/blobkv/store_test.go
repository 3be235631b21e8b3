package blobkv

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptobuddy/internal/blob"
	"symptobuddy/pkg/domain"
)

func TestStoreOverEveryBlobDriver(t *testing.T) {
	fsBlobs, err := blob.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	drivers := map[string]blob.Store{
		"memory": blob.NewMemory(),
		"fs":     fsBlobs,
		"s3":     blob.NewMockS3ForTests(),
	}
	for name, blobs := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := New(ctx, blobs, WithFetchConcurrency(2))
			require.NoError(t, err)
			assert.Equal(t, blobs.Driver(), s.Driver())

			v, err := s.SchemaVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.SchemaVersion, v)

			_, found, err := s.Get(ctx, domain.CollectionProfile, domain.ProfileID)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Put(ctx, domain.CollectionProfile, domain.ProfileID, []byte(`{"id":"user"}`)))
			for _, k := range []string{"t1", "t2", "t3"} {
				require.NoError(t, s.Put(ctx, domain.CollectionTests, k, []byte(`{"id":"`+k+`"}`)))
			}
			require.NoError(t, s.Put(ctx, domain.CollectionTests, "t1", []byte(`{"id":"t1","v":2}`)))

			got, found, err := s.Get(ctx, domain.CollectionTests, "t1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.JSONEq(t, `{"id":"t1","v":2}`, string(got))

			all, err := s.GetAll(ctx, domain.CollectionTests)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, s.Delete(ctx, domain.CollectionTests, "t2"))
			require.NoError(t, s.Delete(ctx, domain.CollectionTests, "t2"))
			all, err = s.GetAll(ctx, domain.CollectionTests)
			require.NoError(t, err)
			values := make([]string, 0, len(all))
			for _, v := range all {
				values = append(values, string(v))
			}
			sort.Strings(values)
			assert.Equal(t, []string{`{"id":"t1","v":2}`, `{"id":"t3"}`}, values)

			profiles, err := s.GetAll(ctx, domain.CollectionProfile)
			require.NoError(t, err)
			assert.Len(t, profiles, 1)
			assert.NoError(t, s.Close())
		})
	}
}

func TestNewIsIdempotentAndRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	_, err := New(ctx, blobs)
	require.NoError(t, err)
	_, err = New(ctx, blobs)
	require.NoError(t, err, "reopening an initialised store is a no-op")

	_, err = blobs.Put(ctx, schemaVersionKey, strings.NewReader("99"), blob.PutOptions{})
	require.NoError(t, err)
	_, err = New(ctx, blobs)
	require.ErrorIs(t, err, domain.ErrSchemaTooNew)

	_, err = blobs.Put(ctx, schemaVersionKey, strings.NewReader("garbage"), blob.PutOptions{})
	require.NoError(t, err)
	_, err = New(ctx, blobs)
	require.Error(t, err)

	_, err = New(ctx, nil)
	require.Error(t, err)
}

func TestStoreValidatesInput(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, blob.NewMemory())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Put(ctx, "bogus", "k", nil), domain.ErrUnknownCollection)
	assert.ErrorIs(t, s.Put(ctx, domain.CollectionTests, "../escape", nil), domain.ErrInvalidKey)
	_, _, err = s.Get(ctx, domain.CollectionTests, "")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
	assert.ErrorIs(t, s.Delete(ctx, "bogus", "k"), domain.ErrUnknownCollection)
}

// flakyBlobs fails reads for one key and counts concurrent readers.
type flakyBlobs struct {
	blob.Store
	failKey  string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *flakyBlobs) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if key == f.failKey {
		return blob.Info{}, nil, errors.New("disk on fire")
	}
	return f.Store.Get(ctx, key)
}

func TestGetAllPropagatesReadErrorsAndBoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	inner := blob.NewMemory()
	for i := 0; i < 20; i++ {
		key := string(rune('a'+i)) + "-test"
		_, err := inner.Put(ctx, objectKey(domain.CollectionTests, key), bytes.NewReader([]byte("{}")), blob.PutOptions{})
		require.NoError(t, err)
	}
	flaky := &flakyBlobs{Store: inner}
	s, err := New(ctx, flaky, WithFetchConcurrency(3))
	require.NoError(t, err)

	all, err := s.GetAll(ctx, domain.CollectionTests)
	require.NoError(t, err)
	assert.Len(t, all, 20)
	assert.LessOrEqual(t, flaky.peak.Load(), int32(3))

	flaky.failKey = objectKey(domain.CollectionTests, "c-test")
	_, err = s.GetAll(ctx, domain.CollectionTests)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
