package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Options{FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("expected fs default, got %s", fsStore.Driver())
	}
	mem, err := Open(ctx, Options{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("open memory: %v", err)
	}
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	s3Store, err := Open(ctx, Options{Driver: DriverS3, S3: S3Config{Bucket: "b"}})
	if err != nil || s3Store.Driver() != DriverS3 {
		t.Fatalf("open s3: %v", err)
	}
	if _, err := Open(ctx, Options{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Options{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestStoresShareNotFoundContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		if _, _, err := store.Get(ctx, "userProfile/user.json"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "userProfile/user.json", bytes.NewReader([]byte(`{"id":"user"}`)), PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("%s: put: %v", store.Driver(), err)
		}
		_, rc, err := store.Get(ctx, "userProfile/user.json")
		if err != nil {
			t.Fatalf("%s: get: %v", store.Driver(), err)
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(body) != `{"id":"user"}` {
			t.Fatalf("%s: body %q", store.Driver(), body)
		}
	}
}
