package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an ephemeral, thread-safe Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init implements Store.
func (s *MemoryStore) Init(context.Context) error { return nil }

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Args = append([]string(nil), e.Args...)
	s.entries = append(s.entries, e)
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	out := append([]Entry(nil), s.entries...)
	s.mu.RUnlock()

	// Stable keeps insertion order for equal timestamps, then reverse.
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
