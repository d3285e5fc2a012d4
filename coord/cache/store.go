package cache

import "sync"

// PersistentStore abstracts the backing store of the persistent tier. The
// core never owns an on-disk format; tests use the in-memory default and
// the host may supply a disk- or database-backed implementation.
type PersistentStore interface {
	Load(key string) ([]byte, bool)
	Store(key string, data []byte) error
	Delete(key string)
	Len() int
}

// MemoryStore is the default map-backed PersistentStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-memory persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[key]
	return d, ok
}

func (s *MemoryStore) Store(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
