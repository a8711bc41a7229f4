package csync

import "sync"

// Map is a thread-safe map implementation with generic types.
// It uses a RWMutex for concurrent read access and exclusive write access.
type Map[K comparable, V any] struct {
	data map[K]V
	mu   sync.RWMutex
}

// NewMap creates a new thread-safe map
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		data: make(map[K]V),
	}
}

// Set stores a key-value pair in the map
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Get retrieves a value by key, returns the value and whether it exists
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, exists := m.data[key]
	return value, exists
}

// Delete removes a key-value pair from the map
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Len returns the number of key-value pairs in the map
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Keys returns a slice of all keys in the map, in no particular order
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]K, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

// Range iterates over a snapshot of the map.
// If f returns false, iteration stops. f may call back into the map.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.mu.RLock()
	snapshot := make(map[K]V, len(m.data))
	for key, value := range m.data {
		snapshot[key] = value
	}
	m.mu.RUnlock()

	for key, value := range snapshot {
		if !f(key, value) {
			break
		}
	}
}

// Compute replaces the value at key with the result of f while holding the
// write lock. f receives the current value and whether it existed; returning
// keep=false deletes the key.
func (m *Map[K, V]) Compute(key K, f func(current V, exists bool) (next V, keep bool)) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.data[key]
	next, keep := f(current, exists)
	if keep {
		m.data[key] = next
	} else {
		delete(m.data, key)
	}
	return next
}

// Clear removes all key-value pairs from the map
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[K]V)
}
