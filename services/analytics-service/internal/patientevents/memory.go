package patientevents

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) Record(_ context.Context, evt Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[evt.EventID]; dup {
		return false, nil
	}
	s.seen[evt.EventID] = struct{}{}
	s.events = append(s.events, evt)
	return true, nil
}

func (s *MemoryStore) CountsByType(context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[string]int64{}
	for _, evt := range s.events {
		counts[evt.EventType]++
	}
	return counts, nil
}
