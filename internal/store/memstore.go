package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	configs map[string]NamedConfig
	log     []LogEntry
	now     func() time.Time
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		configs: make(map[string]NamedConfig),
		now:     time.Now,
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// SaveConfig stores a copy of raw under name.
func (m *MemStore) SaveConfig(_ context.Context, name string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = NamedConfig{
		Name:      name,
		Config:    append([]byte(nil), raw...),
		CreatedAt: m.now(),
	}
	return nil
}

// LoadConfig returns a copy of the blob saved under name.
func (m *MemStore) LoadConfig(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), c.Config...), nil
}

// ListConfigs returns all configurations sorted by name.
func (m *MemStore) ListConfigs(_ context.Context) ([]NamedConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NamedConfig, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteConfig removes name.
func (m *MemStore) DeleteConfig(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[name]; !ok {
		return ErrNotFound
	}
	delete(m.configs, name)
	return nil
}

// LogResponse appends entry to the in-memory log.
func (m *MemStore) LogResponse(_ context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	m.log = append(m.log, entry)
	return nil
}

// Responses returns logged entries newest first.
func (m *MemStore) Responses(_ context.Context, limit int) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.log)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LogEntry, 0, n)
	for i := len(m.log) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.log[i])
	}
	return out, nil
}

// RunResponses returns the entries logged under runID, oldest first.
func (m *MemStore) RunResponses(_ context.Context, runID string) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []LogEntry
	for _, e := range m.log {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}
