package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStorage keeps exports in memory
type MemoryStorage struct {
	exports map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		exports: make(map[string][]byte),
	}
}

// Save stores a copy of data
func (m *MemoryStorage) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[name] = append([]byte(nil), data...)
	return nil
}

// Load returns a copy of the stored export
func (m *MemoryStorage) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.exports[name]
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// List returns all export names
func (m *MemoryStorage) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes an export from memory
func (m *MemoryStorage) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.exports[name]; !exists {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	delete(m.exports, name)
	return nil
}

// Location returns a memory pseudo-URL
func (m *MemoryStorage) Location(name string) string {
	return "memory://" + name
}

// Close cleans up resources
func (m *MemoryStorage) Close() error {
	return nil
}
