// Package session sequences the startup loads and applies write-through
// actions: memory is updated first, then persistence is queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"symptobuddy/internal/logging"
	"symptobuddy/internal/repository"
	"symptobuddy/internal/state"
	"symptobuddy/pkg/domain"
)

// ErrNoSymptoms is returned by RunCheck when no symptom was selected.
var ErrNoSymptoms = errors.New("no symptoms selected")

// Predictor is the external prediction collaborator.
type Predictor interface {
	Predict(ctx context.Context, symptoms []string) (domain.Prediction, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = logging.OrDiscard(l) }
}

// WithClock overrides the wall clock used for record timestamps and
// profile validation.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Controller keeps the state container and the durable store in step.
type Controller struct {
	repo   *repository.Repository
	state  *state.Container
	logger *slog.Logger
	now    func() time.Time
	newID  func() (string, error)
	queue  *writeQueue

	mu        sync.Mutex
	phase     Phase
	closeOnce sync.Once
	closeErr  error
}

// New builds a controller over repo and container and starts its write
// queue. Close must be called to drain it.
func New(repo *repository.Repository, container *state.Container, opts ...Option) *Controller {
	c := &Controller{
		repo:   repo,
		state:  container,
		logger: logging.OrDiscard(nil),
		now:    time.Now,
		newID:  newRecordID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.queue = newWriteQueue(c.logger)
	return c
}

// State returns the container the controller writes to.
func (c *Controller) State() *state.Container { return c.state }

// Phase reports the startup phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) advance(to Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to > c.phase {
		c.phase = to
	}
}

// LoadProfile reads the stored profile into the container. A missing
// profile or a storage failure leaves the container's profile untouched;
// either way the phase moves to PhaseProfileReady.
func (c *Controller) LoadProfile(ctx context.Context) LoadResult {
	c.advance(PhaseProfileLoading)
	defer c.advance(PhaseProfileReady)

	profile, found, err := c.repo.LoadProfile(ctx)
	switch {
	case err != nil:
		c.logger.Error("load profile failed", slog.String("error", err.Error()))
		return LoadResult{Outcome: OutcomeFailed, Err: err}
	case !found:
		c.logger.Debug("no stored profile")
		return LoadResult{Outcome: OutcomeEmpty}
	default:
		c.state.SetProfile(profile)
		return LoadResult{Outcome: OutcomeLoaded}
	}
}

// LoadTests replaces the container's tests with those stored for the
// profile currently in the container. Before the profile has resolved
// nothing is queried and the phase is unchanged. Without a profile the
// tests are cleared without a query. It may be called again after the
// profile identity changes.
func (c *Controller) LoadTests(ctx context.Context) LoadResult {
	if c.Phase() < PhaseProfileReady {
		c.logger.Debug("tests requested before profile resolved")
		return LoadResult{Outcome: OutcomeEmpty}
	}
	userID := c.state.Snapshot().Profile.ID
	if userID == "" {
		c.state.ResetTests(nil)
		c.advance(PhaseTestsReady)
		return LoadResult{Outcome: OutcomeEmpty}
	}
	tests, err := c.repo.LoadTestsForUser(ctx, userID)
	if err != nil {
		c.logger.Error("load tests failed", slog.String("user", userID), slog.String("error", err.Error()))
		return LoadResult{Outcome: OutcomeFailed, Err: err}
	}
	c.state.ResetTests(tests)
	c.advance(PhaseTestsReady)
	if len(tests) == 0 {
		return LoadResult{Outcome: OutcomeEmpty}
	}
	return LoadResult{Outcome: OutcomeLoaded}
}

// Start loads the profile and then its tests.
func (c *Controller) Start(ctx context.Context) StartupReport {
	report := StartupReport{Profile: c.LoadProfile(ctx)}
	report.Tests = c.LoadTests(ctx)
	c.logger.Info("session started",
		slog.String("profile", report.Profile.Outcome.String()),
		slog.String("tests", report.Tests.Outcome.String()))
	return report
}

// SetProfile validates fields, replaces the profile in memory and queues
// the save. Tests are not reloaded.
func (c *Controller) SetProfile(ctx context.Context, fields domain.ProfileFields) (*Pending, error) {
	if c.queue.isClosed() {
		return nil, ErrClosed
	}
	fields.FirstName = strings.TrimSpace(fields.FirstName)
	fields.LastName = strings.TrimSpace(fields.LastName)
	if err := fields.Validate(c.now()); err != nil {
		return nil, err
	}
	profile := domain.NewUserProfile(fields)
	c.state.SetProfile(profile)
	return c.queue.submit(ctx, "save profile", func(ctx context.Context) error {
		return c.repo.SaveProfile(ctx, profile)
	}), nil
}

// RecordTest stamps a new record for the loaded profile, appends it in
// memory and queues the save.
func (c *Controller) RecordTest(ctx context.Context, draft domain.TestDraft) (domain.TestRecord, *Pending, error) {
	if c.queue.isClosed() {
		return domain.TestRecord{}, nil, ErrClosed
	}
	profile := c.state.Snapshot().Profile
	if !profile.Exists() {
		return domain.TestRecord{}, nil, domain.ErrProfileMissing
	}
	id, err := c.newID()
	if err != nil {
		return domain.TestRecord{}, nil, fmt.Errorf("generate test id: %w", err)
	}
	now := c.now()
	rec := domain.TestRecord{
		ID:       id,
		UserID:   profile.ID,
		Name:     strings.TrimSpace(draft.Name),
		Date:     now.Format(domain.DateLayout),
		Time:     now.Format(domain.TimeLayout),
		Symptoms: domain.NormalizeSymptoms(draft.Symptoms),
	}
	if rec.Name == "" {
		rec.Name = domain.DefaultTestName
	}
	if draft.Prediction != nil {
		draft.Prediction.Apply(&rec)
	}
	c.state.AppendTest(rec)
	p := c.queue.submit(ctx, "save test "+rec.ID, func(ctx context.Context) error {
		return c.repo.SaveTest(ctx, rec)
	})
	return rec.Clone(), p, nil
}

// AttachPrediction finalises a recorded test with a prediction and queues
// the re-save.
func (c *Controller) AttachPrediction(ctx context.Context, id string, pred domain.Prediction) (domain.TestRecord, *Pending, error) {
	if c.queue.isClosed() {
		return domain.TestRecord{}, nil, ErrClosed
	}
	rec, ok := c.state.Snapshot().Find(id)
	if !ok {
		return domain.TestRecord{}, nil, fmt.Errorf("%w: %s", domain.ErrTestNotFound, id)
	}
	pred.Apply(&rec)
	if !c.state.ReplaceTest(rec) {
		return domain.TestRecord{}, nil, fmt.Errorf("%w: %s", domain.ErrTestNotFound, id)
	}
	p := c.queue.submit(ctx, "save test "+rec.ID, func(ctx context.Context) error {
		return c.repo.SaveTest(ctx, rec)
	})
	return rec.Clone(), p, nil
}

// RemoveTest drops a test from memory, if present, and queues the durable
// delete. An unknown id leaves the container unchanged.
func (c *Controller) RemoveTest(ctx context.Context, id string) *Pending {
	if c.queue.isClosed() {
		p := newPending("delete test " + id)
		p.finish(ErrClosed)
		return p
	}
	if !c.state.RemoveTest(id) {
		c.logger.Debug("remove of unknown test", slog.String("id", id))
	}
	return c.queue.submit(ctx, "delete test "+id, func(ctx context.Context) error {
		return c.repo.DeleteTest(ctx, id)
	})
}

// RunCheck asks predictor for a diagnosis and records the test with it.
// When the prediction fails nothing is recorded.
func (c *Controller) RunCheck(ctx context.Context, predictor Predictor, draft domain.TestDraft) (domain.TestRecord, *Pending, error) {
	if !c.state.Snapshot().Profile.Exists() {
		return domain.TestRecord{}, nil, domain.ErrProfileMissing
	}
	symptoms := domain.NormalizeSymptoms(draft.Symptoms)
	if len(symptoms) == 0 {
		return domain.TestRecord{}, nil, ErrNoSymptoms
	}
	pred, err := predictor.Predict(ctx, symptoms)
	if err != nil {
		if !errors.Is(err, domain.ErrPredictionFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrPredictionFailed, err)
		}
		c.logger.Warn("prediction failed; test not recorded", slog.String("error", err.Error()))
		return domain.TestRecord{}, nil, err
	}
	draft.Symptoms = symptoms
	draft.Prediction = &pred
	return c.RecordTest(ctx, draft)
}

// SchemaVersion reports the layout version of the durable store.
func (c *Controller) SchemaVersion(ctx context.Context) (int64, error) {
	return c.repo.SchemaVersion(ctx)
}

// Flush waits until every write queued so far has finished.
func (c *Controller) Flush(ctx context.Context) error {
	return c.queue.flush(ctx)
}

// Close drains the write queue and closes the store. Later actions fail
// with ErrClosed. If ctx ends before the queue drains the store stays open.
func (c *Controller) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if err := c.queue.close(ctx); err != nil {
			c.closeErr = err
			return
		}
		c.closeErr = c.repo.Close()
	})
	return c.closeErr
}
