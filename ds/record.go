package ds

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/joshuapare/memdrv/internal/buf"
)

// On-disk layout, little-endian:
//
//	0x00  magic "MDS1"
//	0x04  version u32
//	0x08  generation u64
//	0x10  count u32
//	0x14  entries: keyLen u32, key bytes, value u32
//	...   xxhash64 of everything above, u64
const (
	recordMagic   = "MDS1"
	recordVersion = 1
	headerLen     = 20
	trailerLen    = 8
	maxKeyLen     = 1024
)

type record struct {
	gen  uint64
	vals map[string]uint32
}

func (r *record) marshal() []byte {
	keys := make([]string, 0, len(r.vals))
	size := headerLen + trailerLen
	for k := range r.vals {
		keys = append(keys, k)
		size += 8 + len(k)
	}
	sort.Strings(keys)

	out := make([]byte, size)
	copy(out, recordMagic)
	buf.PutU32LE(out[4:], recordVersion)
	buf.PutU64LE(out[8:], r.gen)
	buf.PutU32LE(out[16:], uint32(len(keys)))

	off := headerLen
	for _, k := range keys {
		buf.PutU32LE(out[off:], uint32(len(k)))
		off += 4
		off += copy(out[off:], k)
		buf.PutU32LE(out[off:], r.vals[k])
		off += 4
	}
	buf.PutU64LE(out[off:], xxhash.Sum64(out[:off]))
	return out
}

func parseRecord(b []byte) (*record, error) {
	if len(b) < headerLen+trailerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(b))
	}
	if string(b[:4]) != recordMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, b[:4])
	}
	if v := buf.U32LE(b[4:]); v != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	body := len(b) - trailerLen
	if sum := buf.U64LE(b[body:]); sum != xxhash.Sum64(b[:body]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	r := &record{
		gen:  buf.U64LE(b[8:]),
		vals: make(map[string]uint32),
	}
	count := int(buf.U32LE(b[16:]))
	data := b[:body]
	off := headerLen
	for i := 0; i < count; i++ {
		kl, ok := buf.Slice(data, off, 4)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d truncated", ErrCorrupt, i)
		}
		keyLen := int(buf.U32LE(kl))
		if keyLen > maxKeyLen {
			return nil, fmt.Errorf("%w: entry %d key length %d", ErrCorrupt, i, keyLen)
		}
		off += 4
		key, ok := buf.Slice(data, off, keyLen)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d key truncated", ErrCorrupt, i)
		}
		off += keyLen
		val, ok := buf.Slice(data, off, 4)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d value truncated", ErrCorrupt, i)
		}
		off += 4
		r.vals[string(key)] = buf.U32LE(val)
	}
	if off != body {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, body-off)
	}
	return r, nil
}
