// Package repository maps the profile and test-history entities onto the
// durable store's keyed collections.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"symptobuddy/internal/logging"
	"symptobuddy/pkg/domain"
)

// Repository is the entity-level view of a domain.DurableStore. It carries
// no cross-call transaction: each method is a single store operation.
type Repository struct {
	store  domain.DurableStore
	logger *slog.Logger
}

// New binds a repository to store. A nil logger discards.
func New(store domain.DurableStore, logger *slog.Logger) *Repository {
	return &Repository{store: store, logger: logging.OrDiscard(logger)}
}

// unavailable wraps backend failures with domain.ErrStorageUnavailable.
// Caller errors and context errors keep their own identity.
func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) ||
		errors.Is(err, domain.ErrInvalidKey) ||
		errors.Is(err, domain.ErrUnknownCollection) ||
		errors.Is(err, domain.ErrSchemaTooNew) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

// SaveProfile writes the singleton profile. The stored id is always
// domain.ProfileID.
func (r *Repository) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	profile.ID = domain.ProfileID
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := r.store.Put(ctx, domain.CollectionProfile, domain.ProfileID, data); err != nil {
		return unavailable("save profile", err)
	}
	return nil
}

// LoadProfile reads the singleton profile. A missing profile yields
// found=false and no error.
func (r *Repository) LoadProfile(ctx context.Context) (domain.UserProfile, bool, error) {
	data, found, err := r.store.Get(ctx, domain.CollectionProfile, domain.ProfileID)
	if err != nil {
		return domain.UserProfile{}, false, unavailable("load profile", err)
	}
	if !found {
		return domain.UserProfile{}, false, nil
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("decode profile: %w", err)
	}
	if profile.ID == "" {
		profile.ID = domain.ProfileID
	}
	return profile, true, nil
}

// SaveTest writes one test record keyed by its id.
func (r *Repository) SaveTest(ctx context.Context, rec domain.TestRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("save test: %w: empty id", domain.ErrInvalidKey)
	}
	if rec.Symptoms == nil {
		rec.Symptoms = []string{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode test %s: %w", rec.ID, err)
	}
	if err := r.store.Put(ctx, domain.CollectionTests, rec.ID, data); err != nil {
		return unavailable("save test "+rec.ID, err)
	}
	return nil
}

// LoadTestsForUser returns every stored test whose userId equals userID,
// ordered by id (creation order). An empty userID matches nothing and the
// store is not consulted. Rows that fail to decode are logged and skipped.
func (r *Repository) LoadTestsForUser(ctx context.Context, userID string) ([]domain.TestRecord, error) {
	if userID == "" {
		return []domain.TestRecord{}, nil
	}
	rows, err := r.store.GetAll(ctx, domain.CollectionTests)
	if err != nil {
		return nil, unavailable("load tests", err)
	}
	out := make([]domain.TestRecord, 0, len(rows))
	for _, raw := range rows {
		var rec domain.TestRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.Warn("skipping undecodable test record", slog.String("error", err.Error()))
			continue
		}
		if rec.UserID != userID {
			continue
		}
		if rec.Symptoms == nil {
			rec.Symptoms = []string{}
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.TestRecord) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// DeleteTest removes a stored test. Deleting a missing id succeeds, and so
// does an id no record can be stored under.
func (r *Repository) DeleteTest(ctx context.Context, id string) error {
	if err := domain.CheckKey(domain.CollectionTests, id); errors.Is(err, domain.ErrInvalidKey) {
		return nil
	}
	if err := r.store.Delete(ctx, domain.CollectionTests, id); err != nil {
		return unavailable("delete test "+id, err)
	}
	return nil
}

// SchemaVersion reports the layout version of the underlying store.
func (r *Repository) SchemaVersion(ctx context.Context) (int64, error) {
	v, err := r.store.SchemaVersion(ctx)
	if err != nil {
		return 0, unavailable("schema version", err)
	}
	return v, nil
}

// Close closes the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}
