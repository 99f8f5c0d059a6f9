package state

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps sections in process memory. Used by tests and by
// deployments that accept losing settings on restart.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(ctx context.Context, section string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[section]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (m *MemoryBackend) Update(ctx context.Context, section string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.data[section])
	if err != nil {
		return err
	}
	m.data[section] = next
	return nil
}

func (m *MemoryBackend) Sections(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.data))
	for k := range m.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Close() error { return nil }
