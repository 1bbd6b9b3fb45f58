package buf

import (
	"golang.org/x/exp/constraints"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would wrap.
func AddOverflowSafe[T constraints.Unsigned](a, b T) (T, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Remaining returns how many bytes lie between pos and the end of a region of
// the given size. ok is false when pos is at or beyond the end.
func Remaining[T constraints.Unsigned](pos, size T) (T, bool) {
	if pos >= size {
		return 0, false
	}
	return size - pos, true
}

// Clamp limits n to at most limit.
func Clamp[T constraints.Unsigned](n, limit T) T {
	if n > limit {
		return limit
	}
	return n
}

// Window returns b[off:off+n] when the whole range lies inside b.
// Offsets are 64-bit because they usually come from device positions.
func Window(b []byte, off, n uint64) ([]byte, bool) {
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > uint64(len(b)) {
		return nil, false
	}
	return b[off:end], true
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 {
		return nil, false
	}
	return Window(b, uint64(off), uint64(n))
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
