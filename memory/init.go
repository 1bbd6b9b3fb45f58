package memory

import (
	"fmt"
	"math"

	"github.com/docker/go-units"

	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Sizes reported for the mem device, by machine mode.
const (
	memSizeReal = 0x100000   // 1 MiB, unprotected
	memSize16   = 0x1000000  // 16 MiB, 2-byte words
	memSize32   = 0xFFFFFFFF // 4 GiB - 1, 4-byte words
	memSize64   = math.MaxUint64
)

// Init fills the device registry: kernel memory and the boot device from
// the kernel information block, a RAM disk left by an earlier incarnation,
// the linked-in image, and the extent of physical memory.
func (d *Driver) Init() error {
	if d.ready {
		return types.Errorf(types.ErrKindInvalid, "memory: already initialized")
	}
	for m := range d.geom {
		d.geom[m] = Descriptor{}
	}
	d.ram = ramUnallocated{}

	info, err := d.k.GetKInfo()
	if err != nil {
		return types.Fatal("memory: couldn't get kernel information", err)
	}

	seg, err := d.k.SegCtl(info.KmemBase, info.KmemSize)
	if err != nil {
		return types.Fatal("memory: couldn't install kmem segment", err)
	}
	d.geom[types.MinorKmem] = Descriptor{Base: info.KmemBase, Size: info.KmemSize, Seg: seg}

	boot := Descriptor{Base: info.BootdevBase, Size: info.BootdevSize}
	if boot.Base > 0 {
		if boot.Seg, err = d.k.SegCtl(boot.Base, boot.Size); err != nil {
			return types.Fatal("memory: couldn't install boot device segment", err)
		}
	}
	d.geom[types.MinorBoot] = boot

	if err := d.recoverRAMDisk(); err != nil {
		return err
	}

	d.geom[types.MinorImgrd] = Descriptor{Size: uint64(len(d.image))}
	clear(d.zero[:])

	m, err := d.k.GetMachine()
	if err != nil {
		return types.Fatal("memory: couldn't get machine information", err)
	}
	size, err := memSize(m)
	if err != nil {
		return err
	}
	d.geom[types.MinorMem] = Descriptor{Size: size}

	d.ready = true
	d.log.Info("initialized",
		"kmem", units.BytesSize(float64(info.KmemSize)),
		"boot", units.BytesSize(float64(info.BootdevSize)),
		"imgrd", units.BytesSize(float64(len(d.image))),
		"mem", fmt.Sprintf("%#x", size),
	)
	return nil
}

func memSize(m kernel.Machine) (uint64, error) {
	if !m.Protected {
		return memSizeReal, nil
	}
	switch m.WordSize {
	case 2:
		return memSize16, nil
	case 4:
		return memSize32, nil
	case 8:
		return memSize64, nil
	default:
		return 0, types.Fatal(fmt.Sprintf("memory: unsupported word size %d", m.WordSize), nil)
	}
}
