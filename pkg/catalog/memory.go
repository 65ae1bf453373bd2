package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store, used by tests and the CLI when no
// database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates a store seeded with entries.
func NewMemoryStore(entries ...Entry) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		s.entries[e.ID] = clone(e)
	}
	return s
}

// List returns all entries ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns the entry for id.
func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return clone(e), nil
}

// Create inserts e unless its id is taken.
func (s *MemoryStore) Create(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return ErrExists
	}
	s.entries[e.ID] = clone(e)
	return nil
}

// Upsert inserts or replaces e.
func (s *MemoryStore) Upsert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = clone(e)
	return nil
}

func clone(e Entry) Entry {
	e.Capabilities = append([]Capability(nil), e.Capabilities...)
	if e.Executor.InputSchema != nil {
		schema := make(map[string]any, len(e.Executor.InputSchema))
		for k, v := range e.Executor.InputSchema {
			schema[k] = v
		}
		e.Executor.InputSchema = schema
	}
	return e
}
