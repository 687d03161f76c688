package store

import (
	"context"
	"sync"
)

// MemoryStore keeps settings in memory. Used when no persistence is
// configured and as a test double.
type MemoryStore struct {
	mu       sync.Mutex
	settings Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: Settings{}}
}

func (m *MemoryStore) Load(_ context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Settings, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = make(Settings, len(s))
	for k, v := range s {
		m.settings[k] = v
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
