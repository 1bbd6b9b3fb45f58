// Package mmfile provides writable memory mappings used as simulated
// physical memory, either anonymous or backed by a file that survives
// process restarts.
package mmfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrClosed is returned by operations on a closed region.
var ErrClosed = errors.New("mmfile: region closed")

// Region is a contiguous writable mapping.
type Region struct {
	data []byte
	f    *os.File // nil for anonymous regions
}

// Bytes returns the mapped memory. The slice is invalid after Close.
func (r *Region) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

// Len returns the size of the mapping in bytes.
func (r *Region) Len() int {
	return len(r.Bytes())
}

// Persistent reports whether the region is backed by a file.
func (r *Region) Persistent() bool {
	return r != nil && r.f != nil
}

// FlushRange writes back data[off:off+n] to the backing file. Anonymous
// regions have nothing to flush.
func (r *Region) FlushRange(off, n int) error {
	if r == nil || r.data == nil {
		return ErrClosed
	}
	if r.f == nil || n == 0 {
		return nil
	}
	if off < 0 || n < 0 || off+n > len(r.data) {
		return fmt.Errorf("mmfile: flush range [%d,+%d) outside %d bytes", off, n, len(r.data))
	}
	return r.flush(off, n)
}

// Open maps size bytes of the file at path, creating or growing the file as
// needed. Existing contents are preserved. An empty path maps anonymous
// zero-filled memory.
func Open(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	if path == "" {
		return mapAnon(size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size() < int64(size) {
		// Extends with zeros
		if err := f.Truncate(int64(size)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmfile: grow %s: %w", path, err)
		}
	}

	r, err := mapFile(f, size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}
