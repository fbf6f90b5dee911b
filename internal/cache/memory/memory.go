package memory

import (
	"context"
	"slices"
	"sync"

	"ragspan/internal/domain"
)

// Store is an in-process CacheStore. Entries live as long as the process.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.CacheKey]domain.CacheEntry
}

func NewStore() *Store {
	return &Store{entries: make(map[domain.CacheKey]domain.CacheEntry)}
}

func (s *Store) Get(_ context.Context, key domain.CacheKey) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(e.Vector), true, nil
}

// Put keeps the first entry written for a key; later writes are ignored.
func (s *Store) Put(_ context.Context, entry domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.Key]; ok {
		return nil
	}
	entry.Vector = slices.Clone(entry.Vector)
	s.entries[entry.Key] = entry
	return nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

func (s *Store) PurgeStale(_ context.Context, model string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if k.Model != model {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Store) Close() error { return nil }
