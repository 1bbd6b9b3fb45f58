package memory

import (
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// copier moves bytes between the driver and one caller, using grant-checked
// copies in safe mode and direct virtual copies otherwise. In safe mode addr
// is a grant and off an offset inside it; in legacy mode the two are summed
// into a virtual address.
type copier struct {
	k    kernel.Kernel
	ep   types.Endpoint
	mode types.CopyMode
}

func (c copier) toCaller(addr, off uint64, src kernel.Local, n uint64) error {
	if c.mode == types.CopySafe {
		return c.k.SafeCopyTo(c.ep, types.GrantID(addr), off, src, n)
	}
	return c.k.VirCopyTo(c.ep, addr+off, src, n)
}

func (c copier) fromCaller(addr, off uint64, dst kernel.Local, n uint64) error {
	if c.mode == types.CopySafe {
		return c.k.SafeCopyFrom(c.ep, types.GrantID(addr), off, dst, n)
	}
	return c.k.VirCopyFrom(c.ep, addr+off, dst, n)
}

func (c copier) move(dir types.Direction, addr, off uint64, local kernel.Local, n uint64) error {
	if dir == types.Gather {
		return c.toCaller(addr, off, local, n)
	}
	return c.fromCaller(addr, off, local, n)
}
