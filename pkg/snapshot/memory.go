package snapshot

import (
	"context"
	"sync"
)

// Memory is an in-process snapshot backend for tests and
// single-process deployments that do not need durability.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, name string, data []byte, rev uint64) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.records[name] = Record{Data: cp, Rev: rev}
	m.mu.Unlock()
	return nil
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, name string) ([]byte, uint64, error) {
	m.mu.RLock()
	rec, ok := m.records[name]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, nil
	}

	cp := make([]byte, len(rec.Data))
	copy(cp, rec.Data)
	return cp, rec.Rev, nil
}

// LoadAll implements Store.
func (m *Memory) LoadAll(_ context.Context) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Record, len(m.records))
	for name, rec := range m.records {
		cp := make([]byte, len(rec.Data))
		copy(cp, rec.Data)
		out[name] = Record{Data: cp, Rev: rec.Rev}
	}
	return out, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.records, name)
	m.mu.Unlock()
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
