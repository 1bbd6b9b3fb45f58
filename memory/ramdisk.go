package memory

import (
	"errors"
	"fmt"
	"math"

	"github.com/docker/go-units"

	"github.com/joshuapare/memdrv/ds"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// ramState is the lifecycle of the RAM disk: ramUnallocated until the first
// successful MIOCRAMSIZE (or a record found at Init), ramAllocated after.
// There is no way back.
type ramState interface {
	isRAMState()
}

type ramUnallocated struct{}

type ramAllocated struct {
	desc      Descriptor
	recovered bool
}

func (ramUnallocated) isRAMState() {}
func (ramAllocated) isRAMState()   {}

func (d *Driver) ramCreated() bool {
	_, ok := d.ram.(ramAllocated)
	return ok
}

// createRAMDisk serves MIOCRAMSIZE. The durable record is committed before
// the segment is installed and before the descriptor becomes visible, so a
// restarted driver never loses a disk it has served.
func (d *Driver) createRAMDisk(req types.IoctlRequest) error {
	if d.ramCreated() {
		return types.Errorf(types.ErrKindPermission, "memory: ram disk already created")
	}
	if req.Minor != types.MinorRAM {
		return types.Errorf(types.ErrKindInvalid, "memory: %s does not accept a ram size", req.Minor)
	}
	if _, err := d.Prepare(req.Minor); err != nil {
		return err
	}

	var payload [types.RAMSizeLen]byte
	c := copier{k: d.k, ep: req.Endpoint, mode: req.Mode}
	if err := c.fromCaller(req.Addr, 0, kernel.BufSpan(payload[:]), types.RAMSizeLen); err != nil {
		return fmt.Errorf("memory: read ram size from endpoint %d: %w", req.Endpoint, err)
	}
	size, err := types.ParseRAMSize(payload[:])
	if err != nil {
		return err
	}
	if size == 0 {
		return types.Errorf(types.ErrKindInvalid, "memory: ram disk size must be non-zero")
	}

	base, err := d.alloc.AllocMem(uint64(size))
	if err != nil {
		d.log.Warn("couldn't allocate ram disk", "size", units.BytesSize(float64(size)), "err", err)
		return types.Errorf(types.ErrKindNoMemory, "memory: allocate %d byte ram disk: %w", size, err)
	}
	if base > math.MaxUint32 {
		return types.Fatal(fmt.Sprintf("memory: ram disk base %#x does not fit the store record", base), nil)
	}

	if err := d.store.Commit(
		ds.Entry{Key: KeyRAMBase, Value: uint32(base)},
		ds.Entry{Key: KeyRAMSize, Value: size},
	); err != nil {
		return types.Fatal("memory: couldn't publish ram disk record", err)
	}

	seg, err := d.k.SegCtl(base, uint64(size))
	if err != nil {
		return types.Fatal("memory: couldn't install ram disk segment", err)
	}
	desc := Descriptor{Base: base, Size: uint64(size), Seg: seg}
	d.geom[types.MinorRAM] = desc
	d.ram = ramAllocated{desc: desc}

	d.log.Info("ram disk created", "base", fmt.Sprintf("%#x", base), "size", units.BytesSize(float64(size)))
	return nil
}

// recoverRAMDisk restores the RAM disk from a record left by an earlier
// incarnation. A missing record is the normal first start.
func (d *Driver) recoverRAMDisk() error {
	base, errBase := d.store.RetrieveU32(KeyRAMBase)
	size, errSize := d.store.RetrieveU32(KeyRAMSize)
	if err := errors.Join(errBase, errSize); err != nil {
		if errBase != nil && errSize != nil && errors.Is(errBase, ds.ErrNotFound) && errors.Is(errSize, ds.ErrNotFound) {
			return nil
		}
		d.log.Warn("ram disk record unusable, starting without one", "err", err)
		return nil
	}

	seg, err := d.k.SegCtl(uint64(base), uint64(size))
	if err != nil {
		return types.Fatal("memory: couldn't install recovered ram disk segment", err)
	}
	desc := Descriptor{Base: uint64(base), Size: uint64(size), Seg: seg}
	d.geom[types.MinorRAM] = desc
	d.ram = ramAllocated{desc: desc, recovered: true}

	d.log.Info("ram disk recovered", "base", fmt.Sprintf("%#x", base), "size", units.BytesSize(float64(size)))
	return nil
}
