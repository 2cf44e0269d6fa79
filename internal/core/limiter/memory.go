package limiter

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/callgate/callgate/internal/core"
)

// MemoryStore is the volatile single-process Store. Entries vanish on
// restart, and every instance of a scaled deployment holds its own.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]core.RateLimitEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]core.RateLimitEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*core.RateLimitEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return copyEntry(entry), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, entry *core.RateLimitEntry) error {
	if entry == nil {
		return nil
	}
	s.mu.Lock()
	s.entries[key] = *copyEntry(*entry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Sweepable(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]Record, error) {
	s.mu.RLock()
	records := make([]Record, 0, len(s.entries))
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) {
			records = append(records, Record{Key: key, Entry: *copyEntry(entry)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// Len returns the number of stored entries, live or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func copyEntry(entry core.RateLimitEntry) *core.RateLimitEntry {
	out := entry
	if entry.BlockedUntil != nil {
		until := *entry.BlockedUntil
		out.BlockedUntil = &until
	}
	return &out
}

// MemoryBlacklist keeps the blacklist in process memory.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]core.BlacklistEntry
}

// NewMemoryBlacklist creates an empty blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{entries: make(map[string]core.BlacklistEntry)}
}

func (b *MemoryBlacklist) IsBlacklisted(_ context.Context, number string) (bool, error) {
	b.mu.RLock()
	_, ok := b.entries[number]
	b.mu.RUnlock()
	return ok, nil
}

func (b *MemoryBlacklist) Add(_ context.Context, entry core.BlacklistEntry) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[entry.Phone]; ok {
		return false, nil
	}
	b.entries[entry.Phone] = entry
	return true, nil
}

func (b *MemoryBlacklist) Remove(_ context.Context, number string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[number]; !ok {
		return false, nil
	}
	delete(b.entries, number)
	return true, nil
}

func (b *MemoryBlacklist) List(_ context.Context) ([]core.BlacklistEntry, error) {
	b.mu.RLock()
	out := make([]core.BlacklistEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, entry)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}
