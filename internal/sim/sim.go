// Package sim is an in-process stand-in for the microkernel and process
// manager. It implements kernel.Kernel and kernel.Allocator over one region
// of simulated physical memory, which may be backed by a file so that its
// contents outlive the process.
//
// Physical memory is laid out as
//
//	[ kmem | boot | process area | allocation arena ]
//
// Processes get contiguous address spaces from the process area; AllocMem
// hands out pages from the arena.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshuapare/memdrv/internal/dirty"
	"github.com/joshuapare/memdrv/internal/mmfile"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Config sizes the simulated machine.
type Config struct {
	PhysPath string // backing file; empty for anonymous memory
	PhysSize uint64
	KmemSize uint64 // must be non-zero; kmem starts at physical 0
	BootSize uint64 // zero for no boot device
	ProcArea uint64 // bytes reserved for process address spaces
	Machine  kernel.Machine
	PageSize int // zero selects the host page size
}

// Layout is the resulting physical memory map.
type Layout struct {
	KmemBase, KmemSize   uint64
	BootBase, BootSize   uint64
	ProcBase, ProcSize   uint64
	ArenaBase, ArenaSize uint64
}

// Faults makes individual calls fail. A nil field means the call works.
type Faults struct {
	KInfo    error
	Machine  error
	SegCtl   error
	Copy     error // all four copy primitives
	Umap     error
	PhysCopy error
	Alloc    error
	IOP      error
	VMMap    error
}

type segment struct {
	base, size uint64
}

// Mapping is a physical range mapped into a process by VMMap.
type Mapping struct {
	Base, Size, Offset uint64
}

// Kernel is the simulated kernel.
type Kernel struct {
	mu     sync.Mutex
	cfg    Config
	layout Layout
	page   uint64

	mem   *mmfile.Region
	dirty *dirty.Tracker

	segs      []segment
	procs     map[types.Endpoint]*Proc
	procNext  uint64
	grants    map[types.GrantID]*grant
	grantNext types.GrantID
	maps      map[types.Endpoint][]Mapping
	iop       map[types.Endpoint]bool
	arenaNext uint64
	faults    Faults
}

var (
	_ kernel.Kernel    = (*Kernel)(nil)
	_ kernel.Allocator = (*Kernel)(nil)
)

// New builds a simulated machine from cfg.
func New(cfg Config) (*Kernel, error) {
	page := uint64(cfg.PageSize)
	if page == 0 {
		page = hostPageSize()
	}
	if page&(page-1) != 0 {
		return nil, fmt.Errorf("sim: page size %d is not a power of two", page)
	}
	if cfg.KmemSize == 0 {
		return nil, fmt.Errorf("sim: kmem size must be non-zero")
	}
	if cfg.Machine.WordSize == 0 {
		cfg.Machine = kernel.Machine{Protected: true, WordSize: 4}
	}

	var l Layout
	l.KmemBase, l.KmemSize = 0, cfg.KmemSize
	next := alignUp(cfg.KmemSize, page)
	if cfg.BootSize > 0 {
		l.BootBase, l.BootSize = next, cfg.BootSize
		next = alignUp(next+cfg.BootSize, page)
	}
	l.ProcBase, l.ProcSize = next, alignUp(cfg.ProcArea, page)
	next += l.ProcSize
	if next > cfg.PhysSize {
		return nil, fmt.Errorf("sim: layout needs %d bytes, physical memory is %d", next, cfg.PhysSize)
	}
	l.ArenaBase, l.ArenaSize = next, cfg.PhysSize-next
	if uint64(int(cfg.PhysSize)) != cfg.PhysSize {
		return nil, fmt.Errorf("sim: physical memory of %d bytes is not addressable", cfg.PhysSize)
	}

	mem, err := mmfile.Open(cfg.PhysPath, int(cfg.PhysSize))
	if err != nil {
		return nil, fmt.Errorf("sim: physical memory: %w", err)
	}

	return &Kernel{
		cfg:       cfg,
		layout:    l,
		page:      page,
		mem:       mem,
		dirty:     dirty.NewTracker(mem, int(page)),
		procs:     make(map[types.Endpoint]*Proc),
		procNext:  l.ProcBase,
		grants:    make(map[types.GrantID]*grant),
		grantNext: 1,
		maps:      make(map[types.Endpoint][]Mapping),
		iop:       make(map[types.Endpoint]bool),
		arenaNext: l.ArenaBase,
	}, nil
}

// Layout returns the physical memory map.
func (k *Kernel) Layout() Layout { return k.layout }

// PageSize returns the allocation granularity.
func (k *Kernel) PageSize() uint64 { return k.page }

// Phys exposes simulated physical memory, for loading images and inspection.
// Writes through this slice are not tracked for Sync.
func (k *Kernel) Phys() []byte { return k.mem.Bytes() }

// Inject replaces the active fault set.
func (k *Kernel) Inject(f Faults) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.faults = f
}

// Mappings returns the physical ranges currently mapped into ep.
func (k *Kernel) Mappings(ep types.Endpoint) []Mapping {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]Mapping(nil), k.maps[ep]...)
}

// Privileged reports whether ep was granted I/O privilege.
func (k *Kernel) Privileged(ep types.Endpoint) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.iop[ep]
}

// Sync writes modified physical memory back to the backing file.
func (k *Kernel) Sync(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dirty.Flush(ctx)
}

// Close syncs and releases physical memory.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dirty.Reset()
	return k.mem.Close()
}

// phys returns physical memory [addr, addr+n).
func (k *Kernel) phys(addr, n uint64) ([]byte, error) {
	b, ok := window(k.mem.Bytes(), addr, n)
	if !ok {
		return nil, types.Errorf(types.ErrKindInvalid, "sim: physical range [%#x,+%#x) outside memory", addr, n)
	}
	return b, nil
}

func (k *Kernel) markDirty(addr, n uint64) {
	k.dirty.Add(int(addr), int(n))
}

func alignUp(v, page uint64) uint64 {
	return (v + page - 1) &^ (page - 1)
}
