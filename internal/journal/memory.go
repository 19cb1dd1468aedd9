package journal

import (
	"context"
	"sync"

	"trading-botcore/internal/model"
)

// MemoryStore keeps entries in insertion-ordered per-bot slices and filters
// by linear scan.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]model.JournalEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]model.JournalEntry)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Append(_ context.Context, e model.JournalEntry) error {
	e = e.Clone()
	m.mu.Lock()
	m.entries[e.BotID] = append(m.entries[e.BotID], e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Query(_ context.Context, botID string, f Filter) ([]model.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.JournalEntry
	for i := range m.entries[botID] {
		if f.Match(&m.entries[botID][i]) {
			out = append(out, m.entries[botID][i].Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context, botID string) error {
	m.mu.Lock()
	delete(m.entries, botID)
	m.mu.Unlock()
	return nil
}
