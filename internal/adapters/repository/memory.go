package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/breedquiz/internal/domain/round"
	"github.com/okian/breedquiz/pkg/metrics"
)

// MemoryStore is an in-memory Store keyed by UUID.
type MemoryStore struct {
	mu          sync.RWMutex
	byID        map[string]*Entry
	maxSessions int
	now         func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID: make(map[string]*Entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, ctrl *round.Controller) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.byID) >= s.maxSessions {
		return Entry{}, ErrCapacity
	}

	now := s.now()
	e := &Entry{
		ID:         uuid.NewString(),
		Controller: ctrl,
		CreatedAt:  now,
		LastSeen:   now,
	}
	s.byID[e.ID] = e

	metrics.RecordSessionCreated()
	metrics.UpdateSessionsActive(len(s.byID))
	return *e, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e.LastSeen = s.now()
	return *e, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	delete(s.byID, id)
	metrics.UpdateSessionsActive(len(s.byID))
	return *e, nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for id, e := range s.byID {
		if e.LastSeen.Before(cutoff) {
			out = append(out, *e)
			delete(s.byID, id)
			metrics.RecordSessionEvicted()
		}
	}
	if len(out) > 0 {
		metrics.UpdateSessionsActive(len(s.byID))
	}
	return out
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, *e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
