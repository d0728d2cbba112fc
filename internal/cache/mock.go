package cache

import "time"

// MockByteCache is a plain map-backed ByteCache for tests. TTLs are ignored.
type MockByteCache struct {
	data map[string][]byte
}

// NewMockByteCache creates a mock response cache for testing.
func NewMockByteCache() *MockByteCache {
	return &MockByteCache{data: make(map[string][]byte)}
}

func (m *MockByteCache) Get(key string) ([]byte, bool) {
	val, found := m.data[key]
	return val, found
}

func (m *MockByteCache) Set(key string, value []byte, ttl time.Duration) {
	m.data[key] = value
}

func (m *MockByteCache) Delete(key string) {
	delete(m.data, key)
}

func (m *MockByteCache) Clear() {
	m.data = make(map[string][]byte)
}
