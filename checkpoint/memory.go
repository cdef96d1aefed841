package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Checkpoints are lost on exit.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
	claimed bool
}

// NewMemory creates a memory store. A zero ttl keeps checkpoints forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]memoryEntry),
	}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, runID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{data: append([]byte(nil), data...)}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.data[runID] = entry
	return nil
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, runID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[runID]
	if !ok || m.expired(entry) {
		delete(m.data, runID)
		return nil, ErrNotFound
	}
	if entry.claimed {
		return nil, ErrClaimed
	}
	return append([]byte(nil), entry.data...), nil
}

// Claim implements Store.
func (m *Memory) Claim(_ context.Context, runID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[runID]
	switch {
	case !ok || m.expired(entry):
		delete(m.data, runID)
		return nil, ErrNotFound
	case entry.claimed:
		return nil, ErrClaimed
	}

	entry.claimed = true
	m.data[runID] = entry
	return append([]byte(nil), entry.data...), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, runID)
	return nil
}

// List implements Store.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.data))
	for id, entry := range m.data {
		if m.expired(entry) {
			delete(m.data, id)
			continue
		}
		if entry.claimed {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}
