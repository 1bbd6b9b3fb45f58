//go:build unix

package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func mapAnon(size int) (*Region, error) {
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("mmfile: anonymous mmap: %w", err)
	}
	return &Region{data: data}, nil
}

func mapFile(f *os.File, size int) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmfile: mmap failed: %w", err)
	}
	return &Region{data: data, f: f}, nil
}

// Close flushes a file-backed region, unmaps it and closes the file.
func (r *Region) Close() error {
	if r == nil || r.data == nil {
		return nil
	}
	var errs []error
	if r.f != nil {
		if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
			errs = append(errs, err)
		}
	}
	if err := unix.Munmap(r.data); err != nil && !errors.Is(err, unix.EINVAL) {
		errs = append(errs, err)
	}
	r.data = nil
	if r.f != nil {
		errs = append(errs, r.f.Close())
		r.f = nil
	}
	return errors.Join(errs...)
}
