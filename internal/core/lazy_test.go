package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"symptobuddy/internal/infra/persistence/memory"
	"symptobuddy/pkg/domain"
)

func countingOpener(calls *atomic.Int32, gate <-chan struct{}, err error) Opener {
	return func(ctx context.Context) (domain.DurableStore, error) {
		calls.Add(1)
		if gate != nil {
			<-gate
		}
		if err != nil {
			return nil, err
		}
		return memory.NewStore(), nil
	}
}

func TestLazyStoreOpensOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	lazy := NewLazyStore(countingOpener(&calls, gate, nil), nil)
	if lazy.Opened() {
		t.Fatalf("store opened before first use")
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := lazy.Get(ctx, domain.CollectionProfile, domain.ProfileID)
			errs <- err
		}()
	}
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single open, got %d", calls.Load())
	}
	if !lazy.Opened() {
		t.Fatalf("expected opened store")
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLazyStoreRemembersFailure(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("disk full")
	lazy := NewLazyStore(countingOpener(&calls, nil, boom), nil)
	ctx := context.Background()

	if err := lazy.Put(ctx, domain.CollectionTests, "a", nil); !errors.Is(err, domain.ErrStorageUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected storage unavailable wrapping cause, got %v", err)
	}
	if _, err := lazy.GetAll(ctx, domain.CollectionTests); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected remembered failure, got %v", err)
	}
	if err := lazy.Delete(ctx, domain.CollectionTests, "a"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected remembered failure, got %v", err)
	}
	if _, err := lazy.SchemaVersion(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected remembered failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single open attempt, got %d", calls.Load())
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("close after failed open: %v", err)
	}
}

func TestLazyStoreCallerCancelDoesNotAbortOpen(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	lazy := NewLazyStore(countingOpener(&calls, gate, nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := lazy.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	close(gate)
	if _, err := lazy.Await(context.Background()); err != nil {
		t.Fatalf("open should complete for later callers: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single open, got %d", calls.Load())
	}
}

func TestLazyStoreCloseBeforeUse(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazyStore(countingOpener(&calls, nil, nil), nil)
	if err := lazy.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := lazy.Get(context.Background(), domain.CollectionProfile, domain.ProfileID); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected closed store to be unavailable, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("closed store should never open")
	}
}
