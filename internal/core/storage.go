package core

import (
	"context"
	"fmt"
	"log/slog"

	"symptobuddy/internal/blob"
	"symptobuddy/internal/config"
	badgerstore "symptobuddy/internal/infra/persistence/badger"
	"symptobuddy/internal/infra/persistence/blobkv"
	"symptobuddy/internal/infra/persistence/memory"
	"symptobuddy/internal/infra/persistence/postgres"
	"symptobuddy/internal/infra/persistence/sqlite"
	"symptobuddy/pkg/domain"
)

// OpenDurableStore opens the backend named by cfg.Driver (badger when empty).
func OpenDurableStore(ctx context.Context, cfg config.Storage, logger *slog.Logger) (domain.DurableStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverBadger
	}
	var (
		store domain.DurableStore
		err   error
	)
	switch driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverBadger:
		store, err = openBadger(cfg.Badger, logger)
	case config.DriverSQLite:
		store, err = openSQLite(ctx, cfg.SQLite.Path)
	case config.DriverPostgres:
		store, err = openPostgres(ctx, cfg.Postgres.DSN)
	case config.DriverBlob:
		store, err = openBlob(ctx, cfg.Blob)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if logger != nil {
		logger.Info("durable store ready", slog.String("driver", driver))
	}
	return store, nil
}

func openBadger(cfg config.Badger, logger *slog.Logger) (domain.DurableStore, error) {
	s, err := badgerstore.NewStore(badgerstore.Config{
		Path:           cfg.Path,
		InMemory:       cfg.InMemory,
		SyncWrites:     cfg.SyncWrites,
		GCInterval:     cfg.GCInterval,
		GCDiscardRatio: cfg.GCDiscardRatio,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQLite(ctx context.Context, path string) (domain.DurableStore, error) {
	s, err := sqlite.NewStore(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (domain.DurableStore, error) {
	s, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openBlob(ctx context.Context, cfg config.Blob) (domain.DurableStore, error) {
	blobs, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(cfg.Driver),
		FSRoot: cfg.FSRoot,
		S3: blob.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, err
	}
	s, err := blobkv.New(ctx, blobs)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// StoreOptions configures NewDurableStore.
type StoreOptions struct {
	Metrics MetricsRecorder
	Tracer  Tracer
	Logger  *slog.Logger
}

// NewDurableStore returns the lazily opened, instrumented store the rest of
// the application uses. The backend is opened on first access.
func NewDurableStore(cfg config.Storage, opts StoreOptions) *LazyStore {
	return NewLazyStore(func(ctx context.Context) (domain.DurableStore, error) {
		store, err := OpenDurableStore(ctx, cfg, opts.Logger)
		if err != nil {
			return nil, err
		}
		return Instrument(store, opts.Metrics, opts.Tracer), nil
	}, opts.Logger)
}
