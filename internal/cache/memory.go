package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Memory is a bounded in-process cache with LRU eviction. Entries self-expire;
// an expired entry is never returned even before eviction reclaims it.
// Safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used

	now func() time.Time // stubbed in tests
}

type memoryEntry struct {
	key       string
	value     domain.CandidateSet
	expiresAt time.Time
}

// NewMemory creates an LRU cache holding at most maxEntries entries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Memory{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns a copy of the cached set, or a miss if absent or expired.
func (m *Memory) Get(_ context.Context, key string) (domain.CandidateSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.order.Remove(el)
		delete(m.entries, key)
		return nil, false
	}
	m.order.MoveToFront(el)
	return entry.value.Clone(), true
}

// Set stores a copy of the set, replacing any existing entry and evicting the
// least recently used entry when full. ttl <= 0 stores nothing.
func (m *Memory) Set(_ context.Context, key string, cs domain.CandidateSet, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &memoryEntry{key: key, value: cs.Clone(), expiresAt: m.now().Add(ttl)}

	if el, ok := m.entries[key]; ok {
		el.Value = entry
		m.order.MoveToFront(el)
		return
	}

	m.entries[key] = m.order.PushFront(entry)

	for m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
