package sim

import (
	"github.com/joshuapare/memdrv/internal/buf"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Access is the permission a grant gives the driver over caller memory.
type Access int

const (
	// AccessRead lets the driver copy from the granted buffer.
	AccessRead Access = 1 << iota
	// AccessWrite lets the driver copy into the granted buffer.
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

// Proc is a simulated process with a contiguous address space. Virtual
// address v lives at physical Base+v.
type Proc struct {
	EP   types.Endpoint
	Base uint64
	Size uint64
}

type grant struct {
	owner  types.Endpoint
	vir    uint64
	size   uint64
	access Access
}

// Spawn creates a process with size bytes of address space.
func (k *Kernel) Spawn(ep types.Endpoint, size uint64) (*Proc, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.procs[ep]; ok {
		return nil, types.Errorf(types.ErrKindInvalid, "sim: endpoint %d already exists", ep)
	}
	size = alignUp(size, k.page)
	end := k.layout.ProcBase + k.layout.ProcSize
	if avail, ok := buf.Remaining(k.procNext, end); !ok || size > avail {
		return nil, types.Errorf(types.ErrKindNoMemory, "sim: process area exhausted")
	}
	p := &Proc{EP: ep, Base: k.procNext, Size: size}
	k.procNext += size
	k.procs[ep] = p
	return p, nil
}

// Grant lets the driver access [vir, vir+size) of ep with the given access.
func (k *Kernel) Grant(ep types.Endpoint, vir, size uint64, access Access) (types.GrantID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, err := k.proc(ep)
	if err != nil {
		return 0, err
	}
	if end, ok := buf.AddOverflowSafe(vir, size); !ok || end > p.Size {
		return 0, types.Errorf(types.ErrKindInvalid, "sim: grant [%#x,+%#x) outside endpoint %d", vir, size, ep)
	}
	id := k.grantNext
	k.grantNext++
	k.grants[id] = &grant{owner: ep, vir: vir, size: size, access: access}
	return id, nil
}

// Revoke removes a grant.
func (k *Kernel) Revoke(id types.GrantID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.grants, id)
}

// WriteVirt stores data at vir in ep's address space.
func (k *Kernel) WriteVirt(ep types.Endpoint, vir uint64, data []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	dst, err := k.virt(ep, vir, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// ReadVirt returns a copy of n bytes at vir in ep's address space.
func (k *Kernel) ReadVirt(ep types.Endpoint, vir, n uint64) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	src, err := k.virt(ep, vir, n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), src...), nil
}

func (k *Kernel) proc(ep types.Endpoint) (*Proc, error) {
	p, ok := k.procs[ep]
	if !ok {
		return nil, types.Errorf(types.ErrKindInvalid, "sim: no endpoint %d", ep)
	}
	return p, nil
}

// virtPhys translates [vir, vir+n) of ep to a physical address.
func (k *Kernel) virtPhys(ep types.Endpoint, vir, n uint64) (uint64, error) {
	p, err := k.proc(ep)
	if err != nil {
		return 0, err
	}
	if end, ok := buf.AddOverflowSafe(vir, n); !ok || end > p.Size {
		return 0, types.Errorf(types.ErrKindInvalid, "sim: [%#x,+%#x) outside endpoint %d", vir, n, ep)
	}
	return p.Base + vir, nil
}

func (k *Kernel) virt(ep types.Endpoint, vir, n uint64) ([]byte, error) {
	addr, err := k.virtPhys(ep, vir, n)
	if err != nil {
		return nil, err
	}
	return k.phys(addr, n)
}

// grantPhys checks that ep's grant id allows want over [off, off+n) and
// returns the physical address of off.
func (k *Kernel) grantPhys(ep types.Endpoint, id types.GrantID, off, n uint64, want Access) (uint64, error) {
	g, ok := k.grants[id]
	if !ok || g.owner != ep {
		return 0, types.Errorf(types.ErrKindPermission, "sim: endpoint %d has no grant %d", ep, id)
	}
	if g.access&want != want {
		return 0, types.Errorf(types.ErrKindPermission, "sim: grant %d lacks access %d", id, want)
	}
	if end, ok := buf.AddOverflowSafe(off, n); !ok || end > g.size {
		return 0, types.Errorf(types.ErrKindPermission, "sim: [%#x,+%#x) outside grant %d of %#x bytes", off, n, id, g.size)
	}
	return k.virtPhys(ep, g.vir+off, n)
}
