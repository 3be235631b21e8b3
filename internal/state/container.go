// Package state holds the in-memory profile and test history that views
// read from. Every mutation notifies subscribers synchronously.
package state

import (
	"slices"
	"sync"

	"symptobuddy/pkg/domain"
)

// Snapshot is an immutable copy of the container contents.
type Snapshot struct {
	Profile domain.UserProfile
	Tests   []domain.TestRecord
}

// UserTests returns the tests owned by the loaded profile. Without a
// profile it is empty.
func (s Snapshot) UserTests() []domain.TestRecord {
	out := []domain.TestRecord{}
	if !s.Profile.Exists() {
		return out
	}
	for _, t := range s.Tests {
		if t.UserID == s.Profile.ID {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the test with id.
func (s Snapshot) Find(id string) (domain.TestRecord, bool) {
	i := slices.IndexFunc(s.Tests, func(t domain.TestRecord) bool { return t.ID == id })
	if i < 0 {
		return domain.TestRecord{}, false
	}
	return s.Tests[i], true
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{Profile: s.Profile, Tests: make([]domain.TestRecord, len(s.Tests))}
	for i, t := range s.Tests {
		out.Tests[i] = t.Clone()
	}
	return out
}

// Listener receives the snapshot produced by a mutation.
type Listener func(Snapshot)

// Container owns the current profile and tests.
type Container struct {
	// notifyMu spans a mutation and its notifications so listeners see
	// snapshots in mutation order even with concurrent writers.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	current   Snapshot
	listeners map[uint64]Listener
	nextID    uint64
}

// New returns an empty container.
func New() *Container {
	return &Container{
		current:   Snapshot{Tests: []domain.TestRecord{}},
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot returns a deep copy of the current contents.
func (c *Container) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.clone()
}

// Select reads a derived value from the current contents.
func Select[T any](c *Container, selector func(Snapshot) T) T {
	return selector(c.Snapshot())
}

// Subscribe registers fn for every later mutation and returns a function
// that removes it.
func (c *Container) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// update applies fn under the write lock and, when fn reports a change,
// notifies listeners before returning. Listeners run outside the data lock
// and may read the container, but must not mutate it.
func (c *Container) update(fn func(*Snapshot) bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	if !fn(&c.current) {
		c.mu.Unlock()
		return
	}
	snap := c.current.clone()
	listeners := make([]Listener, 0, len(c.listeners))
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()
	for _, l := range listeners {
		l(snap.clone())
	}
}

// SetProfile replaces the profile. Tests are left untouched.
func (c *Container) SetProfile(p domain.UserProfile) {
	c.update(func(s *Snapshot) bool {
		s.Profile = p
		return true
	})
}

// AppendTest adds a test at the end of the history.
func (c *Container) AppendTest(t domain.TestRecord) {
	t = t.Clone()
	c.update(func(s *Snapshot) bool {
		s.Tests = append(s.Tests, t)
		return true
	})
}

// ReplaceTest swaps the test with the same id. It reports whether one was
// found; an unknown id changes nothing.
func (c *Container) ReplaceTest(t domain.TestRecord) bool {
	t = t.Clone()
	var found bool
	c.update(func(s *Snapshot) bool {
		i := slices.IndexFunc(s.Tests, func(x domain.TestRecord) bool { return x.ID == t.ID })
		if i < 0 {
			return false
		}
		s.Tests[i] = t
		found = true
		return true
	})
	return found
}

// RemoveTest drops the test with id. It reports whether one was removed;
// an unknown id changes nothing and notifies no one.
func (c *Container) RemoveTest(id string) bool {
	var removed bool
	c.update(func(s *Snapshot) bool {
		n := len(s.Tests)
		s.Tests = slices.DeleteFunc(s.Tests, func(x domain.TestRecord) bool { return x.ID == id })
		removed = len(s.Tests) != n
		return removed
	})
	return removed
}

// ResetTests replaces the whole history.
func (c *Container) ResetTests(tests []domain.TestRecord) {
	cp := make([]domain.TestRecord, len(tests))
	for i, t := range tests {
		cp[i] = t.Clone()
	}
	c.update(func(s *Snapshot) bool {
		s.Tests = cp
		return true
	})
}
