package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/taskgraph/pkg/api"
)

// InMemoryStore is a goroutine-safe RunnerStore backed by a map. Records
// are copied on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	runners map[api.EntityID]RunnerRecord
}

var _ RunnerStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runners: make(map[api.EntityID]RunnerRecord)}
}

func (s *InMemoryStore) SaveRunner(_ context.Context, rec RunnerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runners[rec.Entity] = cloneRecord(rec)
	return nil
}

func (s *InMemoryStore) LoadRunner(_ context.Context, entity api.EntityID) (RunnerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runners[entity]
	if !ok {
		return RunnerRecord{}, ErrRunnerNotFound
	}
	return cloneRecord(rec), nil
}

func (s *InMemoryStore) DeleteRunner(_ context.Context, entity api.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runners, entity)
	return nil
}

func (s *InMemoryStore) ListRunners(_ context.Context) ([]RunnerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunnerRecord, 0, len(s.runners))
	for _, rec := range s.runners {
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return out, nil
}
