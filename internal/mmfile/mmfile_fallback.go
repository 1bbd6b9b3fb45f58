//go:build !unix

package mmfile

import (
	"errors"
	"io"
	"os"
)

// Without mmap the file is read into memory and written back on flush.

func mapAnon(size int) (*Region, error) {
	return &Region{data: make([]byte, size)}, nil
}

func mapFile(f *os.File, size int) (*Region, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return &Region{data: data, f: f}, nil
}

func (r *Region) flush(off, n int) error {
	_, err := r.f.WriteAt(r.data[off:off+n], int64(off))
	return err
}

// Close writes a file-backed region back and closes the file.
func (r *Region) Close() error {
	if r == nil || r.data == nil {
		return nil
	}
	var errs []error
	if r.f != nil {
		errs = append(errs, r.flush(0, len(r.data)), r.f.Close())
		r.f = nil
	}
	r.data = nil
	return errors.Join(errs...)
}
