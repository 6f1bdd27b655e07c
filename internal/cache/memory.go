package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      []byte
	generation uint64
	expiresAt  time.Time
}

// Memory is an in-process cache store
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the cached value if it is fresh and was stored under the
// same generation
func (m *Memory) Get(_ context.Context, namespace, key string, generation uint64) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[memoryKey(namespace, key)]
	m.mu.RUnlock()
	if !ok || e.generation != generation || m.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value with a TTL under the given generation
func (m *Memory) Set(_ context.Context, namespace, key string, generation uint64, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey(namespace, key)] = memoryEntry{
		value:      value,
		generation: generation,
		expiresAt:  m.now().Add(ttl),
	}

	// Opportunistic sweep; entries are short-lived so the map stays small
	if len(m.entries) > 4096 {
		now := m.now()
		for k, e := range m.entries {
			if now.After(e.expiresAt) {
				delete(m.entries, k)
			}
		}
	}
}
