package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memEntry struct {
	value   string
	expires time.Time
}

type memHash struct {
	fields  map[string]string
	expires time.Time
}

// MemoryStore is a single-process coordination store with the same
// semantics as RedisStore. Expiry is evaluated lazily against Now.
type MemoryStore struct {
	mu     sync.Mutex
	keys   map[string]memEntry
	hashes map[string]*memHash

	// Now is the store clock; tests replace it to simulate TTL expiry.
	Now func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[string]memEntry),
		hashes: make(map[string]*memHash),
		Now:    time.Now,
	}
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	if e, ok := s.keys[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	s.keys[key] = memEntry{value: token, expires: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) DeleteIfEqual(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && e.value == token {
		delete(s.keys, key)
	}
	return nil
}

func (s *MemoryStore) CacheHash(_ context.Context, key string, fields map[string]any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	h, ok := s.hashes[key]
	if !ok || !now.Before(h.expires) {
		h = &memHash{fields: make(map[string]string, len(fields))}
		s.hashes[key] = h
	}
	for k, v := range fields {
		h.fields[k] = fmt.Sprint(v)
	}
	h.expires = now.Add(ttl)
	return nil
}

// Held reports whether key currently holds an unexpired lock.
func (s *MemoryStore) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[key]
	return ok && s.Now().Before(e.expires)
}

// HashField returns one cached hash field of an unexpired hash.
func (s *MemoryStore) HashField(key, field string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok || !s.Now().Before(h.expires) {
		return "", false
	}
	v, ok := h.fields[field]
	return v, ok
}
