package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryRepository keeps encoded drafts in a map, so callers never share
// the stored value.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(_ context.Context, sid string) (Draft, error) {
	r.mu.Lock()
	val, ok := r.data[string(key(sid))]
	r.mu.Unlock()
	if !ok {
		return Draft{}, ErrNotFound
	}
	var env envelope
	if err := json.Unmarshal(val, &env); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return env.State, nil
}

func (r *MemoryRepository) Save(_ context.Context, sid string, d Draft) error {
	val, err := json.Marshal(envelope{State: d})
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	r.mu.Lock()
	r.data[string(key(sid))] = val
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Clear(_ context.Context, sid string) error {
	r.mu.Lock()
	delete(r.data, string(key(sid)))
	r.mu.Unlock()
	return nil
}
