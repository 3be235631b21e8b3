package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"symptobuddy/internal/logging"
	"symptobuddy/pkg/domain"
)

// Opener constructs the underlying durable store.
type Opener func(ctx context.Context) (domain.DurableStore, error)

// LazyStore defers opening the durable store until the first operation.
// The open runs at most once per LazyStore; every operation waits for it.
// A failed open is remembered and reported by every later call, wrapped in
// domain.ErrStorageUnavailable.
type LazyStore struct {
	open   Opener
	logger *slog.Logger

	once  sync.Once
	ready chan struct{}
	store domain.DurableStore
	err   error
}

var errClosedBeforeOpen = fmt.Errorf("store closed before first use: %w", domain.ErrStorageUnavailable)

// NewLazyStore wraps open. Nothing is opened until the first call.
func NewLazyStore(open Opener, logger *slog.Logger) *LazyStore {
	return &LazyStore{open: open, logger: logging.OrDiscard(logger), ready: make(chan struct{})}
}

// start runs the open once, detached from the cancellation of ctx. Every
// caller shares its result.
func (l *LazyStore) start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			defer close(l.ready)
			store, err := l.open(context.WithoutCancel(ctx))
			if err != nil {
				l.logger.Error("durable store unavailable", slog.String("error", err.Error()))
				l.err = fmt.Errorf("open durable store: %w: %w", domain.ErrStorageUnavailable, err)
				return
			}
			l.logger.Debug("durable store opened")
			l.store = store
		}()
	})
}

// Await triggers the open if needed and waits for it or for ctx.
func (l *LazyStore) Await(ctx context.Context) (domain.DurableStore, error) {
	l.start(ctx)
	select {
	case <-l.ready:
		if l.err != nil {
			return nil, l.err
		}
		return l.store, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Opened reports whether an open attempt has completed.
func (l *LazyStore) Opened() bool {
	select {
	case <-l.ready:
		return true
	default:
		return false
	}
}

func (l *LazyStore) Put(ctx context.Context, collection domain.Collection, key string, value []byte) error {
	s, err := l.Await(ctx)
	if err != nil {
		return err
	}
	return s.Put(ctx, collection, key, value)
}

func (l *LazyStore) Get(ctx context.Context, collection domain.Collection, key string) ([]byte, bool, error) {
	s, err := l.Await(ctx)
	if err != nil {
		return nil, false, err
	}
	return s.Get(ctx, collection, key)
}

func (l *LazyStore) GetAll(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	s, err := l.Await(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetAll(ctx, collection)
}

func (l *LazyStore) Delete(ctx context.Context, collection domain.Collection, key string) error {
	s, err := l.Await(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, collection, key)
}

func (l *LazyStore) SchemaVersion(ctx context.Context) (int64, error) {
	s, err := l.Await(ctx)
	if err != nil {
		return 0, err
	}
	return s.SchemaVersion(ctx)
}

// Close closes the underlying store if it was opened. A store never used is
// marked closed without opening it; an in-flight open is waited for.
func (l *LazyStore) Close() error {
	l.once.Do(func() {
		l.err = errClosedBeforeOpen
		close(l.ready)
	})
	<-l.ready
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}
