package sim

import (
	"github.com/joshuapare/memdrv/internal/buf"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// GetKInfo implements kernel.Kernel.
func (k *Kernel) GetKInfo() (kernel.KInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.KInfo != nil {
		return kernel.KInfo{}, k.faults.KInfo
	}
	return kernel.KInfo{
		KmemBase:    k.layout.KmemBase,
		KmemSize:    k.layout.KmemSize,
		BootdevBase: k.layout.BootBase,
		BootdevSize: k.layout.BootSize,
	}, nil
}

// GetMachine implements kernel.Kernel.
func (k *Kernel) GetMachine() (kernel.Machine, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Machine != nil {
		return kernel.Machine{}, k.faults.Machine
	}
	return k.cfg.Machine, nil
}

// SegCtl implements kernel.Kernel. Handles start at 1 so the zero Segment
// never names an installed region.
func (k *Kernel) SegCtl(base, size uint64) (kernel.Segment, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.SegCtl != nil {
		return 0, k.faults.SegCtl
	}
	if _, err := k.phys(base, size); err != nil {
		return 0, err
	}
	k.segs = append(k.segs, segment{base: base, size: size})
	return kernel.Segment(len(k.segs)), nil
}

// SafeCopyTo implements kernel.Kernel.
func (k *Kernel) SafeCopyTo(ep types.Endpoint, g types.GrantID, off uint64, src kernel.Local, n uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Copy != nil {
		return k.faults.Copy
	}
	addr, err := k.grantPhys(ep, g, off, n, AccessWrite)
	if err != nil {
		return err
	}
	return k.copyToPhys(addr, src, n)
}

// SafeCopyFrom implements kernel.Kernel.
func (k *Kernel) SafeCopyFrom(ep types.Endpoint, g types.GrantID, off uint64, dst kernel.Local, n uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Copy != nil {
		return k.faults.Copy
	}
	addr, err := k.grantPhys(ep, g, off, n, AccessRead)
	if err != nil {
		return err
	}
	return k.copyFromPhys(addr, dst, n)
}

// VirCopyTo implements kernel.Kernel.
func (k *Kernel) VirCopyTo(ep types.Endpoint, vir uint64, src kernel.Local, n uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Copy != nil {
		return k.faults.Copy
	}
	addr, err := k.virtPhys(ep, vir, n)
	if err != nil {
		return err
	}
	return k.copyToPhys(addr, src, n)
}

// VirCopyFrom implements kernel.Kernel.
func (k *Kernel) VirCopyFrom(ep types.Endpoint, vir uint64, dst kernel.Local, n uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Copy != nil {
		return k.faults.Copy
	}
	addr, err := k.virtPhys(ep, vir, n)
	if err != nil {
		return err
	}
	return k.copyFromPhys(addr, dst, n)
}

// Umap implements kernel.Kernel.
func (k *Kernel) Umap(ep types.Endpoint, grant bool, addr, n uint64) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Umap != nil {
		return 0, k.faults.Umap
	}
	if grant {
		return k.grantPhys(ep, types.GrantID(addr), 0, n, 0)
	}
	return k.virtPhys(ep, addr, n)
}

// PhysCopy implements kernel.Kernel.
func (k *Kernel) PhysCopy(src, dst, n uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.PhysCopy != nil {
		return k.faults.PhysCopy
	}
	from, err := k.phys(src, n)
	if err != nil {
		return err
	}
	to, err := k.phys(dst, n)
	if err != nil {
		return err
	}
	copy(to, from)
	k.markDirty(dst, n)
	return nil
}

// EnableIOP implements kernel.Kernel.
func (k *Kernel) EnableIOP(ep types.Endpoint) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.IOP != nil {
		return k.faults.IOP
	}
	if _, err := k.proc(ep); err != nil {
		return err
	}
	k.iop[ep] = true
	return nil
}

// VMMap implements kernel.Kernel. Unmapping requires an exact match of a
// previous mapping.
func (k *Kernel) VMMap(ep types.Endpoint, doMap bool, base, size, offset uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.VMMap != nil {
		return k.faults.VMMap
	}
	if _, err := k.proc(ep); err != nil {
		return err
	}
	if _, err := k.phys(base, size); err != nil {
		return err
	}
	m := Mapping{Base: base, Size: size, Offset: offset}
	if doMap {
		k.maps[ep] = append(k.maps[ep], m)
		return nil
	}
	for i, cur := range k.maps[ep] {
		if cur == m {
			k.maps[ep] = append(k.maps[ep][:i], k.maps[ep][i+1:]...)
			return nil
		}
	}
	return types.Errorf(types.ErrKindInvalid, "sim: [%#x,+%#x) not mapped into endpoint %d", base, size, ep)
}

// resolve returns the n driver-side bytes named by l. The bool is true when
// they are physical memory at the returned address.
func (k *Kernel) resolve(l kernel.Local, n uint64) ([]byte, uint64, bool, error) {
	if l.Owned() {
		if uint64(len(l.Buf)) < n {
			return nil, 0, false, types.Errorf(types.ErrKindInvalid, "sim: local buffer of %d bytes, copy of %d", len(l.Buf), n)
		}
		return l.Buf[:n], 0, false, nil
	}
	idx := int(l.Seg) - 1
	if idx < 0 || idx >= len(k.segs) {
		return nil, 0, false, types.Errorf(types.ErrKindInvalid, "sim: bad segment %d", l.Seg)
	}
	s := k.segs[idx]
	if end, ok := buf.AddOverflowSafe(l.Off, n); !ok || end > s.size {
		return nil, 0, false, types.Errorf(types.ErrKindInvalid, "sim: [%#x,+%#x) outside segment %d of %#x bytes", l.Off, n, l.Seg, s.size)
	}
	addr := s.base + l.Off
	b, err := k.phys(addr, n)
	return b, addr, true, err
}

func (k *Kernel) copyToPhys(addr uint64, src kernel.Local, n uint64) error {
	from, _, _, err := k.resolve(src, n)
	if err != nil {
		return err
	}
	to, err := k.phys(addr, n)
	if err != nil {
		return err
	}
	copy(to, from)
	k.markDirty(addr, n)
	return nil
}

func (k *Kernel) copyFromPhys(addr uint64, dst kernel.Local, n uint64) error {
	from, err := k.phys(addr, n)
	if err != nil {
		return err
	}
	to, taddr, isPhys, err := k.resolve(dst, n)
	if err != nil {
		return err
	}
	copy(to, from)
	if isPhys {
		k.markDirty(taddr, n)
	}
	return nil
}
