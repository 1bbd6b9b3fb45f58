package memory

import (
	"fmt"

	"github.com/joshuapare/memdrv/internal/buf"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// xfer is the state of one transfer request as it walks the vector.
type xfer struct {
	d    *Driver
	desc Descriptor
	c    copier
	dir  types.Direction
	pos  uint64 // device position of the next byte
	voff uint64 // bytes already consumed from the current vector entry
}

// device is the per-kind behaviour of a minor. step moves the bytes for the
// head of one vector entry (addr, size) and reports how many it consumed.
// eof ends the whole request successfully.
type device interface {
	step(x *xfer, addr, size uint64) (n uint64, eof bool, err error)
}

func kindOf(m types.Minor) device {
	switch m {
	case types.MinorRAM, types.MinorKmem, types.MinorBoot:
		return segDevice{}
	case types.MinorMem:
		return physDevice{}
	case types.MinorNull:
		return nullDevice{}
	case types.MinorZero:
		return zeroDevice{}
	case types.MinorImgrd:
		return imageDevice{}
	}
	return nil
}

// clamp returns how much of size fits between pos and the end of desc.
func clamp(desc Descriptor, pos, size uint64) (uint64, bool) {
	avail, ok := buf.Remaining(pos, desc.Size)
	if !ok || avail == 0 {
		return 0, false
	}
	return buf.Clamp(size, avail), true
}

// nullDevice reads as end of file and swallows writes whole.
type nullDevice struct{}

func (nullDevice) step(x *xfer, _, size uint64) (uint64, bool, error) {
	if x.dir == types.Gather {
		return 0, true, nil
	}
	return size, false, nil
}

// segDevice copies through the segment installed for the region.
type segDevice struct{}

func (segDevice) step(x *xfer, addr, size uint64) (uint64, bool, error) {
	n, ok := clamp(x.desc, x.pos, size)
	if !ok {
		return 0, true, nil
	}
	if err := x.c.move(x.dir, addr, x.voff, kernel.SegSpan(x.desc.Seg, x.pos), n); err != nil {
		return 0, false, types.Fatal(fmt.Sprintf("memory: %s copy of %d bytes at %#x failed", x.dir, n, x.pos), err)
	}
	return n, false, nil
}

// physDevice translates the caller's buffer to a physical address and
// copies between it and base+pos.
type physDevice struct{}

func (physDevice) step(x *xfer, addr, size uint64) (uint64, bool, error) {
	n, ok := clamp(x.desc, x.pos, size)
	if !ok {
		return 0, true, nil
	}
	memPhys := x.desc.Base + x.pos
	userPhys, err := x.d.k.Umap(x.c.ep, x.c.mode == types.CopySafe, addr, n+x.voff)
	if err != nil {
		return 0, false, types.Fatal(fmt.Sprintf("memory: umap of %d bytes for endpoint %d failed", n, x.c.ep), err)
	}
	userPhys += x.voff
	src, dst := memPhys, userPhys
	if x.dir == types.Scatter {
		src, dst = userPhys, memPhys
	}
	if err := x.d.k.PhysCopy(src, dst, n); err != nil {
		return 0, false, types.Fatal(fmt.Sprintf("memory: physical %s of %d bytes at %#x failed", x.dir, n, memPhys), err)
	}
	return n, false, nil
}

// zeroDevice fills reads with zeros from a fixed buffer and discards writes.
// It has no end.
type zeroDevice struct{}

func (zeroDevice) step(x *xfer, addr, size uint64) (uint64, bool, error) {
	if x.dir == types.Scatter {
		return size, false, nil
	}
	for done := uint64(0); done < size; {
		chunk := buf.Clamp(size-done, ZeroBufSize)
		if err := x.c.toCaller(addr, x.voff+done, kernel.BufSpan(x.d.zero[:chunk]), chunk); err != nil {
			x.d.log.Error("zero copy failed", "endpoint", x.c.ep, "offset", x.voff+done, "len", chunk, "err", err)
		}
		done += chunk
	}
	return size, false, nil
}

// imageDevice serves the linked-in ramdisk image.
type imageDevice struct{}

func (imageDevice) step(x *xfer, addr, size uint64) (uint64, bool, error) {
	n, ok := clamp(x.desc, x.pos, size)
	if !ok {
		return 0, true, nil
	}
	b, ok := buf.Window(x.d.image, x.pos, n)
	if !ok {
		return 0, true, nil
	}
	if err := x.c.move(x.dir, addr, x.voff, kernel.BufSpan(b), n); err != nil {
		return 0, false, fmt.Errorf("memory: imgrd %s at %#x: %w", x.dir, x.pos, err)
	}
	return n, false, nil
}

// Transfer performs req against the device. It walks req.Vec in order,
// decrementing each entry's Size by the bytes moved, and stops early at the
// end of a bounded device. The returned count is the total moved, which is
// also what a successful request reports at end of file.
func (dev *Device) Transfer(req *types.TransferRequest) (uint64, error) {
	if dev == nil || dev.impl == nil {
		return 0, types.Errorf(types.ErrKindInvalid, "memory: transfer on an unselected device")
	}
	if req.Direction != types.Gather && req.Direction != types.Scatter {
		return 0, types.Errorf(types.ErrKindInvalid, "memory: bad direction %d", int(req.Direction))
	}
	x := &xfer{
		d:    dev.d,
		desc: dev.Descriptor(),
		c:    copier{k: dev.d.k, ep: req.Endpoint, mode: req.Mode},
		dir:  req.Direction,
		pos:  req.Position,
	}

	var total uint64
	for i := 0; i < len(req.Vec); {
		v := &req.Vec[i]
		if v.Size == 0 {
			i++
			x.voff = 0
			continue
		}
		n, eof, err := dev.impl.step(x, v.Addr, v.Size)
		if err != nil {
			return total, err
		}
		if eof || n == 0 {
			return total, nil
		}
		x.pos += n
		x.voff += n
		total += n
		v.Size -= n
		if v.Size == 0 {
			i++
			x.voff = 0
		}
	}
	return total, nil
}
