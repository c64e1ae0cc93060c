package inmem

import (
	"context"
	"sync"

	"github.com/autom8ter/notify/store"
	"github.com/autom8ter/notify/store/registry"
)

func init() {
	registry.Register("inmem", func(params map[string]interface{}) (store.Store, error) {
		return New(), nil
	})
}

// New returns an empty in-memory store. It backs tests and embedded pipelines the
// same way the redis driver backs deployments.
func New() store.Store {
	return &memStore{
		values:   map[string]string{},
		counters: map[string]int64{},
		lists:    map[string][]string{},
	}
}

type memStore struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
	lists    map[string][]string
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.counters, key)
		delete(m.lists, key)
	}
	return nil
}

func (m *memStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memStore) Push(ctx context.Context, key string, values ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return int64(len(m.lists[key])), nil
}

func (m *memStore) PopPush(ctx context.Context, src, dst string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[src]
	if len(list) == 0 {
		return "", false, nil
	}
	value := list[0]
	m.lists[src] = list[1:]
	m.lists[dst] = append(m.lists[dst], value)
	return value, true, nil
}

func (m *memStore) Rem(ctx context.Context, key, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	for i, element := range list {
		if element == value {
			m.lists[key] = append(append([]string{}, list[:i]...), list[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStore) Range(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.lists[key]...), nil
}

func (m *memStore) Len(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *memStore) Close() error {
	return nil
}
