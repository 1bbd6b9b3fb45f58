package sim

import (
	"github.com/tklauser/go-sysconf"

	"github.com/joshuapare/memdrv/internal/buf"
	"github.com/joshuapare/memdrv/pkg/types"
)

const fallbackPageSize = 4096

func hostPageSize() uint64 {
	sz, err := sysconf.Sysconf(sysconf.SC_PAGESIZE)
	if err != nil || sz <= 0 {
		return fallbackPageSize
	}
	return uint64(sz)
}

func window(b []byte, off, n uint64) ([]byte, bool) {
	return buf.Window(b, off, n)
}

// AllocMem implements kernel.Allocator with a page-granular bump allocator
// over the arena. Freed memory is never reused; neither is a RAM disk.
func (k *Kernel) AllocMem(size uint64) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.faults.Alloc != nil {
		return 0, k.faults.Alloc
	}
	if size == 0 {
		return 0, types.Errorf(types.ErrKindInvalid, "sim: zero-sized allocation")
	}
	rounded, ok := buf.AddOverflowSafe(size, k.page-1)
	if !ok {
		return 0, types.ErrNoMemory
	}
	rounded &^= k.page - 1

	end := k.layout.ArenaBase + k.layout.ArenaSize
	if avail, ok := buf.Remaining(k.arenaNext, end); !ok || rounded > avail {
		return 0, types.Errorf(types.ErrKindNoMemory, "sim: %d bytes requested, %d free", size, end-k.arenaNext)
	}
	base := k.arenaNext
	k.arenaNext += rounded
	return base, nil
}

// Reserve marks arena memory up to base+size as in use, for a restarted
// machine that must not hand out a region recovered from durable state.
func (k *Kernel) Reserve(base, size uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if end := alignUp(base+size, k.page); end > k.arenaNext {
		k.arenaNext = end
	}
}
