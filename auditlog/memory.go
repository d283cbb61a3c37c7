package auditlog

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	e.Metadata = maps.Clone(e.Metadata)
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Find(_ context.Context, q Query) ([]Entry, error) {
	q = q.Normalize()

	s.mu.RLock()
	out := make([]Entry, 0, min(len(s.entries), q.Limit))
	for _, e := range s.entries {
		if q.matches(e) {
			e.Metadata = maps.Clone(e.Metadata)
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
