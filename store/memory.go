package store

import (
	"context"
	"sync"
)

// Memory is an in-process [Store]. Values are copied on the way in and out so
// callers can never alias stored bytes.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][][]byte
	sets   map[string]map[string]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: map[string][]byte{},
		lists:  map[string][][]byte{},
		sets:   map[string]map[string]struct{}{},
	}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = cloneBytes(value)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.values, key)
		delete(m.lists, key)
		delete(m.sets, key)
	}
	return nil
}

// Append implements Store.
func (m *Memory) Append(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[key] = append(m.lists[key], cloneBytes(value))
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, key string, limit int) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.lists[key]
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([][]byte, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneBytes(entries[i]))
	}
	return out, nil
}

// AddMember implements Store.
func (m *Memory) AddMember(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		set = map[string]struct{}{}
		m.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// RemoveMember implements Store.
func (m *Memory) RemoveMember(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return nil
}

// Members implements Store.
func (m *Memory) Members(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.sets[key]
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
