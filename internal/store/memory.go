// internal/store/memory.go
package store

import "sync"

// MemoryBackend keeps values in process memory only
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func memKey(namespace, key string) string {
	return namespace + ":" + key
}

// Get returns a copy of the stored value
func (m *MemoryBackend) Get(namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[memKey(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value
func (m *MemoryBackend) Set(namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[memKey(namespace, key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes the value if present
func (m *MemoryBackend) Delete(namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memKey(namespace, key))
	return nil
}

// Close is a no-op
func (m *MemoryBackend) Close() error {
	return nil
}
