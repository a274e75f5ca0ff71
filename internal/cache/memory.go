package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps envelopes in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	value, fresh, err := decodeEnvelope(data, s.now())
	if err != nil || !fresh {
		s.evict(key, data)
		return nil, false, err
	}
	return value, true, nil
}

// evict removes key only if it still holds stale; a concurrent Set
// between the read and the write lock wins.
func (s *MemoryStore) evict(key string, stale []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[key]; ok && bytes.Equal(cur, stale) {
		delete(s.entries, key)
	}
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encodeEnvelope(value, ttl, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
