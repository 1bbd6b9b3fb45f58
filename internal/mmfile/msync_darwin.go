//go:build darwin

package mmfile

import "golang.org/x/sys/unix"

// On macOS msync needs the address returned by mmap, so sub-slices cannot be
// flushed on their own. The kernel only writes pages that are dirty anyway.
func (r *Region) flush(_, _ int) error {
	return unix.Msync(r.data, unix.MS_SYNC)
}
