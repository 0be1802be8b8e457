package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local CounterStore. It is only consistent within
// one process and backs the best-effort mode.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

func memoryKey(scopeKey, bucket string) string {
	return scopeKey + ":" + bucket
}

func (s *MemoryStore) Increment(_ context.Context, scopeKey, bucket string, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := memoryKey(scopeKey, bucket)
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &memoryEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++

	return Counter{Count: entry.count, ResetAt: entry.resetAt}, nil
}

func (s *MemoryStore) Peek(_ context.Context, scopeKey, bucket string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[memoryKey(scopeKey, bucket)]
	if !ok || !s.now().Before(entry.resetAt) {
		return Counter{}, nil
	}
	return Counter{Count: entry.count, ResetAt: entry.resetAt}, nil
}

func (s *MemoryStore) Reset(_ context.Context, scopeKey, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, memoryKey(scopeKey, bucket))
	return nil
}

// Sweep drops expired windows and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
