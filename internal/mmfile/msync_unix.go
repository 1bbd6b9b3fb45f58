//go:build unix && !darwin

package mmfile

import "golang.org/x/sys/unix"

// flush msyncs one range. off must be page aligned.
func (r *Region) flush(off, n int) error {
	return unix.Msync(r.data[off:off+n], unix.MS_SYNC)
}
