// Package ds is the durable key-value store the memory driver uses to keep
// its RAM disk record across restarts. Values are unsigned 32-bit integers.
//
// Besides single-key publishes, a Store offers Commit, which makes a group
// of keys durable together: after a crash either every key of the group is
// visible or none of the new values are.
package ds

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound indicates the key has never been published.
	ErrNotFound = errors.New("ds: key not found")
	// ErrCorrupt indicates the persisted record failed validation.
	ErrCorrupt = errors.New("ds: corrupt record")
)

// Entry is one key and its value.
type Entry struct {
	Key   string
	Value uint32
}

// Store publishes and retrieves u32 values by name.
type Store interface {
	// PublishU32 stores v under key.
	PublishU32(key string, v uint32) error
	// RetrieveU32 returns the value under key, or ErrNotFound.
	RetrieveU32(key string) (uint32, error)
	// Commit stores all entries atomically.
	Commit(entries ...Entry) error
}

// MemStore is a volatile Store. It outlives a driver instance when the same
// value is handed to the next one, which is how tests simulate a restart.
type MemStore struct {
	mu   sync.Mutex
	vals map[string]uint32
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{vals: make(map[string]uint32)}
}

// PublishU32 implements Store.
func (s *MemStore) PublishU32(key string, v uint32) error {
	return s.Commit(Entry{Key: key, Value: v})
}

// RetrieveU32 implements Store.
func (s *MemStore) RetrieveU32(key string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// Commit implements Store.
func (s *MemStore) Commit(entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.vals[e.Key] = e.Value
	}
	return nil
}
