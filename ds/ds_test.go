package ds

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore()

	_, err := s.RetrieveU32("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PublishU32("a", 7))
	require.NoError(t, s.Commit(Entry{"b", 8}, Entry{"a", 9}))

	v, err := s.RetrieveU32("a")
	require.NoError(t, err)
	assert.Equal(t, uint32(9), v)
	v, err = s.RetrieveU32("b")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), v)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "ds.db"))
	require.NoError(t, err)
	_, err = s.RetrieveU32("dev:memory:ramdisk_base")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Generation())
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds.db")

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Commit(
		Entry{"dev:memory:ramdisk_base", 0x200000},
		Entry{"dev:memory:ramdisk_size", 0x10000},
	))
	require.NoError(t, s.PublishU32("other", 1))
	assert.Equal(t, uint64(2), s.Generation())

	s2, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s2.Generation())

	base, err := s2.RetrieveU32("dev:memory:ramdisk_base")
	require.NoError(t, err)
	size, err := s2.RetrieveU32("dev:memory:ramdisk_size")
	require.NoError(t, err)
	other, err := s2.RetrieveU32("other")
	require.NoError(t, err)

	assert.Equal(t, uint32(0x200000), base)
	assert.Equal(t, uint32(0x10000), size)
	assert.Equal(t, uint32(1), other)
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "ds.db"))
	require.NoError(t, err)
	require.Error(t, s.PublishU32("", 1))
	require.NoError(t, s.Commit())
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds.db")
	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.PublishU32("key", 42))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mangle func([]byte) []byte
	}{
		{"flipped value", func(b []byte) []byte { b[len(b)-trailerLen-1] ^= 0xff; return b }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"truncated", func(b []byte) []byte { return b[:headerLen] }},
		{"empty", func(b []byte) []byte { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mangled := tt.mangle(append([]byte(nil), data...))
			require.NoError(t, os.WriteFile(path, mangled, 0o600))
			_, err := OpenFile(path)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	r := &record{gen: 5, vals: map[string]uint32{"x": 1, "yy": 2, "": 3}}
	got, err := parseRecord(r.marshal())
	require.NoError(t, err)
	assert.Equal(t, r.gen, got.gen)
	assert.Equal(t, r.vals, got.vals)
}

func TestRecordRejectsOversizedKey(t *testing.T) {
	r := &record{vals: map[string]uint32{"k": 1}}
	b := r.marshal()
	b[headerLen] = 0xff
	b[headerLen+1] = 0xff
	body := len(b) - trailerLen
	putChecksum(b[:body], b[body:])
	_, err := parseRecord(b)
	require.ErrorIs(t, err, ErrCorrupt)
}

func putChecksum(body, trailer []byte) {
	binary.LittleEndian.PutUint64(trailer, xxhash.Sum64(body))
}
