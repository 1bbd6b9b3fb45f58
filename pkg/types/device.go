package types

import "fmt"

// -----------------------------------------------------------------------------
// Minor devices
// -----------------------------------------------------------------------------

// Minor selects one of the memory driver's virtual devices.
type Minor int

// Minor device numbers, as laid out in /dev.
const (
	MinorRAM   Minor = 0 // dynamically allocated RAM disk
	MinorMem   Minor = 1 // raw physical memory
	MinorKmem  Minor = 2 // kernel virtual memory
	MinorNull  Minor = 3 // data sink
	MinorBoot  Minor = 4 // boot device loaded from the boot image
	MinorZero  Minor = 5 // zero byte stream
	MinorImgrd Minor = 6 // ramdisk image linked into the driver

	// NumMinors is the number of minor devices.
	NumMinors = 7
)

var minorNames = [NumMinors]string{
	MinorRAM:   "ram",
	MinorMem:   "mem",
	MinorKmem:  "kmem",
	MinorNull:  "null",
	MinorBoot:  "boot",
	MinorZero:  "zero",
	MinorImgrd: "imgrd",
}

// Valid reports whether m names a device in the registry.
func (m Minor) Valid() bool {
	return m >= 0 && m < NumMinors
}

// String returns the /dev name of the device.
func (m Minor) String() string {
	if !m.Valid() {
		return fmt.Sprintf("minor(%d)", int(m))
	}
	return minorNames[m]
}

// ParseMinor resolves a /dev name ("ram", "zero", ...) to its minor number.
func ParseMinor(name string) (Minor, error) {
	for i, n := range minorNames {
		if n == name {
			return Minor(i), nil
		}
	}
	return -1, Errorf(ErrKindNoDevice, "unknown device %q", name)
}

// -----------------------------------------------------------------------------
// Transfer requests
// -----------------------------------------------------------------------------

// Endpoint identifies a process that owns buffers named in a request.
type Endpoint int32

// GrantID names a memory grant issued by a caller for safe copies.
type GrantID uint64

// Direction of a transfer, seen from the caller.
type Direction int

const (
	// Gather copies device data into the caller's buffers (read).
	Gather Direction = iota
	// Scatter copies the caller's buffers onto the device (write).
	Scatter
)

func (d Direction) String() string {
	switch d {
	case Gather:
		return "gather"
	case Scatter:
		return "scatter"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// CopyMode selects the cross-address-space copy primitive.
type CopyMode int

const (
	// CopySafe uses grant-checked copies; IOVec.Addr is a GrantID.
	CopySafe CopyMode = iota
	// CopyLegacy uses direct virtual copies; IOVec.Addr is a virtual address.
	CopyLegacy
)

func (m CopyMode) String() string {
	if m == CopySafe {
		return "safe"
	}
	return "legacy"
}

// IOVec is one piece of a scatter/gather vector. Addr is interpreted per
// CopyMode. The transfer engine decrements Size by the bytes it moves.
type IOVec struct {
	Addr uint64
	Size uint64
}

// TransferRequest describes one scatter/gather operation.
type TransferRequest struct {
	Endpoint  Endpoint
	Direction Direction
	Position  uint64
	Vec       []IOVec
	Mode      CopyMode
}

// Total returns the sum of the remaining sizes in the vector.
func (r *TransferRequest) Total() uint64 {
	var n uint64
	for _, v := range r.Vec {
		n += v.Size
	}
	return n
}

// -----------------------------------------------------------------------------
// Descriptors and geometry
// -----------------------------------------------------------------------------

// SectorSize is the sector size assumed by geometry reporting.
const SectorSize = 512

// Geometry is the disk-style shape reported for devices that have none.
type Geometry struct {
	Cylinders uint64
	Heads     uint32
	Sectors   uint32
}

// Partition is the entry exchanged by DIOCGETP.
type Partition struct {
	Base uint64
	Size uint64
	Geometry
}

// OpenRequest asks to open a minor device on behalf of Endpoint.
type OpenRequest struct {
	Minor    Minor
	Endpoint Endpoint
}
