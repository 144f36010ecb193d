package security

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is the unit kept by every security store: a counter and the time
// its window (or the token's life) started.
type Entry struct {
	Count int
	Start time.Time
}

// Store is the keyed state behind tokens, rate limits and debounce marks.
// Implementations are advisory: a lost write weakens protection but never
// breaks a request.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// Sweep removes entries started before cutoff, then the oldest ones
	// until at most keep remain. keep <= 0 disables the size cap.
	Sweep(ctx context.Context, cutoff time.Time, keep int) (int, error)
	Len(ctx context.Context) (int, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if e.Start.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	if keep <= 0 || len(s.entries) <= keep {
		return removed, nil
	}

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].Start.Before(s.entries[keys[j]].Start)
	})
	for _, k := range keys[:len(keys)-keep] {
		delete(s.entries, k)
		removed++
	}
	return removed, nil
}
