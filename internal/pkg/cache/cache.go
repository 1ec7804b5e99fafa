package cache

import (
	"context"
	"sync"

	"github.com/udovin/algo/futures"
)

// Storage loads values for cache.
type Storage[K comparable, V any] interface {
	// Get should load value with the given key.
	Get(ctx context.Context, key K) (V, error)
	// Actual should return false when value should be reloaded.
	Actual(key K, value V) bool
}

// Manager caches values loaded from storage.
type Manager[K comparable, V any] interface {
	// Load returns cached value or loads a new one.
	Load(ctx context.Context, key K) (V, error)
	// Delete removes value from cache.
	Delete(key K) bool
	// Len returns amount of cached keys.
	Len() int
}

func NewManager[K comparable, V any](storage Storage[K, V]) Manager[K, V] {
	return &manager[K, V]{
		values:  map[K]*value[V]{},
		storage: storage,
	}
}

type manager[K comparable, V any] struct {
	mutex   sync.RWMutex
	values  map[K]*value[V]
	storage Storage[K, V]
}

// Load attempts to load a value with the given key,
// or reuses a cached value.
//
// Concurrent loads of the same key share single storage call.
// Failed loads are not cached.
func (m *manager[K, V]) Load(ctx context.Context, key K) (V, error) {
	if v, ok := m.getFast(key); ok {
		select {
		case <-v.future.Done():
			value, err := v.future.Get(ctx)
			if err == nil && m.storage.Actual(key, value) {
				return value, nil
			}
			m.delete(key, v)
		default:
			return v.future.Get(ctx)
		}
	}
	return m.getSlow(ctx, key).future.Get(ctx)
}

// Delete removes the value and the next Load() call on this key
// will load the new value.
func (m *manager[K, V]) Delete(key K) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	return true
}

func (m *manager[K, V]) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.values)
}

func (m *manager[K, V]) getFast(key K) (*value[V], bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *manager[K, V]) getSlow(ctx context.Context, key K) *value[V] {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	v := &value[V]{}
	m.values[key] = v
	v.future = futures.Call(func() (V, error) {
		value, err := m.storage.Get(context.WithoutCancel(ctx), key)
		if err != nil {
			m.delete(key, v)
		}
		return value, err
	})
	return v
}

func (m *manager[K, V]) delete(key K, v *value[V]) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if c, ok := m.values[key]; ok && c == v {
		delete(m.values, key)
	}
}

type value[V any] struct {
	future futures.Future[V]
}
