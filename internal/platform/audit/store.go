package audit

import (
	"context"
	"sync"
)

// Store persists entries in append order. Last returns (nil, nil) on an
// empty log and List returns matches in Seq order.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Last(ctx context.Context) (*Entry, error)
	List(ctx context.Context, f Filter) ([]*Entry, error)
	Truncate(ctx context.Context) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e.clone())
	return nil
}

func (s *MemoryStore) Last(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[len(s.entries)-1].clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, e.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Truncate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
