package settings

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemoryStore creates a store seeded with values (may be nil).
func NewMemoryStore(values map[string]map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]map[string]string)}
	for ns, kv := range values {
		s.values[ns] = make(map[string]string, len(kv))
		for k, v := range kv {
			s.values[ns][k] = v
		}
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[namespace][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[namespace] == nil {
		s.values[namespace] = make(map[string]string)
	}
	s.values[namespace][key] = value
	return nil
}

var _ Store = (*MemoryStore)(nil)
