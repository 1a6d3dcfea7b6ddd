package remote

import (
	"code-mentor/contract"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-process RemoteStore.
// Keys are generated in push order, watchers are called synchronously
// after the insert is visible.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]contract.Entry
	watchers    map[string]map[uint64]func()
	seq         atomic.Uint64
	offline     atomic.Bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]contract.Entry),
		watchers:    make(map[string]map[uint64]func()),
	}
}

// SetOffline makes every call fail until it is set back to false.
func (m *MemoryStore) SetOffline(offline bool) {
	m.offline.Store(offline)
}

func (m *MemoryStore) Push(ctx context.Context, path string, value []byte) (string, error) {
	if err := m.check(ctx); err != nil {
		return "", err
	}
	key := fmt.Sprintf("-M%019d", m.seq.Add(1))

	m.mu.Lock()
	m.collections[path] = append(m.collections[path], contract.Entry{Key: key, Value: slices.Clone(value)})
	callbacks := make([]func(), 0, len(m.watchers[path]))
	for _, fn := range m.watchers[path] {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return key, nil
}

func (m *MemoryStore) Snapshot(ctx context.Context, path string) ([]contract.Entry, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.collections[path]), nil
}

func (m *MemoryStore) Watch(ctx context.Context, path string, onChange func()) (func(), error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	id := m.seq.Add(1)

	m.mu.Lock()
	if _, ok := m.watchers[path]; !ok {
		m.watchers[path] = make(map[uint64]func())
	}
	m.watchers[path][id] = onChange
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.watchers[path], id)
			if len(m.watchers[path]) == 0 {
				delete(m.watchers, path)
			}
		})
	}, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.check(ctx)
}

// Watchers counts the active watches on path.
func (m *MemoryStore) Watchers(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers[path])
}

func (m *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.offline.Load() {
		return fmt.Errorf("memory store is offline")
	}
	return nil
}
