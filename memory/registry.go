package memory

import (
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Descriptor is a minor device's region. Seg is zero until a segment has
// been installed for it.
type Descriptor struct {
	Base uint64
	Size uint64
	Seg  kernel.Segment
}

// Device is a selected minor device. Handles are owned by their Driver and
// stay valid for its lifetime.
type Device struct {
	d     *Driver
	minor types.Minor
	impl  device
}

// Prepare selects minor for the operations that follow.
func (d *Driver) Prepare(minor types.Minor) (*Device, error) {
	if !minor.Valid() {
		return nil, types.Errorf(types.ErrKindNoDevice, "memory: no minor device %d", int(minor))
	}
	return &d.handles[minor], nil
}

// Minor returns the device number.
func (dev *Device) Minor() types.Minor { return dev.minor }

// Descriptor returns the device's current region.
func (dev *Device) Descriptor() Descriptor { return dev.d.geom[dev.minor] }

// Geometry returns a synthetic disk shape for the device: 64 heads,
// 32 sectors per track, and as many 512-byte-sector cylinders as fit.
func (dev *Device) Geometry() types.Geometry {
	return geometryOf(dev.Descriptor().Size)
}

// Partition returns the device region with its geometry.
func (dev *Device) Partition() types.Partition {
	desc := dev.Descriptor()
	return types.Partition{Base: desc.Base, Size: desc.Size, Geometry: geometryOf(desc.Size)}
}

const (
	geomHeads   = 64
	geomSectors = 32
)

func geometryOf(size uint64) types.Geometry {
	return types.Geometry{
		Cylinders: size / types.SectorSize / (geomHeads * geomSectors),
		Heads:     geomHeads,
		Sectors:   geomSectors,
	}
}
