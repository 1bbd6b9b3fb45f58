package ds

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"sync"

	"github.com/moby/sys/atomicwriter"
)

// FileStore persists all values in one file. Every publish or commit
// rewrites the whole record through a temporary file and a rename, so a
// reader sees either the previous record or the new one.
type FileStore struct {
	mu   sync.Mutex
	path string
	rec  *record
}

// OpenFile loads the store at path. A missing file is an empty store.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, rec: &record{vals: make(map[string]uint32)}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, err
	}
	rec, err := parseRecord(data)
	if err != nil {
		return nil, fmt.Errorf("ds: load %s: %w", path, err)
	}
	s.rec = rec
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Generation returns the number of commits the record has seen.
func (s *FileStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.gen
}

// PublishU32 implements Store.
func (s *FileStore) PublishU32(key string, v uint32) error {
	return s.Commit(Entry{Key: key, Value: v})
}

// RetrieveU32 implements Store.
func (s *FileStore) RetrieveU32(key string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rec.vals[key]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// Commit implements Store. The in-memory view only changes once the new
// record is on disk.
func (s *FileStore) Commit(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Key) == 0 || len(e.Key) > maxKeyLen {
			return fmt.Errorf("ds: invalid key length %d", len(e.Key))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &record{gen: s.rec.gen + 1, vals: maps.Clone(s.rec.vals)}
	for _, e := range entries {
		next.vals[e.Key] = e.Value
	}
	if err := atomicwriter.WriteFile(s.path, next.marshal(), 0o600); err != nil {
		return fmt.Errorf("ds: commit: %w", err)
	}
	s.rec = next
	return nil
}
