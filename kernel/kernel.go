// Package kernel declares the privileged collaborators the memory driver
// calls into: kernel and machine information, remote segment installation,
// cross-address-space copies, address translation, physical memory
// allocation and virtual memory mapping.
//
// The driver never touches another address space itself. Every byte it moves
// goes through one of these calls, so a Kernel implementation decides what
// "physical memory" and "caller buffer" mean.
package kernel

import "github.com/joshuapare/memdrv/pkg/types"

// KInfo is the part of the kernel information block the driver reads once
// at startup.
type KInfo struct {
	KmemBase    uint64 // kernel virtual memory, physical origin
	KmemSize    uint64
	BootdevBase uint64 // boot image; zero base means no boot device
	BootdevSize uint64
}

// Machine describes the addressing mode of the platform.
type Machine struct {
	Protected bool // false for legacy real-mode machines
	WordSize  int  // bytes per machine word: 2, 4 or 8
}

// Segment is an opaque handle to a memory region installed with SegCtl.
type Segment int

// Local names the driver's side of a copy: either the bytes at Off inside an
// installed segment, or a buffer the driver owns.
type Local struct {
	Seg Segment
	Off uint64
	Buf []byte // driver-owned bytes; Seg and Off are ignored when set
}

// SegSpan addresses offset off inside segment seg.
func SegSpan(seg Segment, off uint64) Local {
	return Local{Seg: seg, Off: off}
}

// BufSpan addresses a driver-owned buffer.
func BufSpan(b []byte) Local {
	return Local{Buf: b}
}

// Owned reports whether l names driver-owned bytes.
func (l Local) Owned() bool {
	return l.Buf != nil
}

// Kernel is the set of privileged calls the driver makes. All calls are
// synchronous; an error means nothing (or an unknown part) was transferred.
type Kernel interface {
	// GetKInfo returns the kernel information block.
	GetKInfo() (KInfo, error)
	// GetMachine returns the machine addressing facts.
	GetMachine() (Machine, error)
	// SegCtl installs a segment covering physical [base, base+size).
	SegCtl(base, size uint64) (Segment, error)

	// SafeCopyTo copies n bytes from src to offset off of grant g issued by ep.
	SafeCopyTo(ep types.Endpoint, g types.GrantID, off uint64, src Local, n uint64) error
	// SafeCopyFrom copies n bytes from offset off of grant g issued by ep to dst.
	SafeCopyFrom(ep types.Endpoint, g types.GrantID, off uint64, dst Local, n uint64) error
	// VirCopyTo copies n bytes from src to virtual address vir of ep.
	VirCopyTo(ep types.Endpoint, vir uint64, src Local, n uint64) error
	// VirCopyFrom copies n bytes from virtual address vir of ep to dst.
	VirCopyFrom(ep types.Endpoint, vir uint64, dst Local, n uint64) error

	// Umap translates n bytes at addr in ep's space to a physical address.
	// When grant is true addr is a GrantID, otherwise a virtual address.
	Umap(ep types.Endpoint, grant bool, addr, n uint64) (uint64, error)
	// PhysCopy copies n bytes between physical addresses.
	PhysCopy(src, dst, n uint64) error

	// EnableIOP grants ep I/O port privilege.
	EnableIOP(ep types.Endpoint) error
	// VMMap maps (or unmaps) physical [base, base+size) into ep at offset.
	VMMap(ep types.Endpoint, doMap bool, base, size, offset uint64) error
}

// Allocator hands out physically contiguous memory.
type Allocator interface {
	// AllocMem returns the physical base of a new block of size bytes.
	AllocMem(size uint64) (uint64, error)
}
