package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type memKey struct {
	Key
	field string
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[memKey][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[memKey][]byte)}
}

func (m *Memory) Put(ctx context.Context, key Key, field string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[memKey{key, field}] = slices.Clone(data)
	return nil
}

func (m *Memory) Get(ctx context.Context, key Key, field string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[memKey{key, field}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, key, field)
	}
	return slices.Clone(data), nil
}

func (m *Memory) Fields(ctx context.Context, key Key) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if k.Key == key {
			out = append(out, k.field)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if k.Key == key {
			delete(m.data, k)
		}
	}
	return nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error { return nil }
