package types

import (
	"fmt"

	"github.com/joshuapare/memdrv/internal/buf"
)

// IoctlCode is a BSD-style encoded control request.
type IoctlCode uint32

const (
	iocVoid  = 0x20000000
	iocOut   = 0x40000000
	iocIn    = 0x80000000
	iocSizeM = 0x1FFF
)

func ioc(inout uint32, group byte, num byte, size int) IoctlCode {
	return IoctlCode(inout | (uint32(size)&iocSizeM)<<16 | uint32(group)<<8 | uint32(num))
}

// Payload sizes on the wire.
const (
	RAMSizeLen   = 4
	MapReqLen    = 24
	PartitionLen = 32
)

// Control codes understood by the memory driver and its framework.
var (
	MIOCRAMSIZE = ioc(iocIn, 'm', 3, RAMSizeLen)
	MIOCMAP     = ioc(iocOut, 'm', 4, MapReqLen)
	MIOCUNMAP   = ioc(iocOut, 'm', 5, MapReqLen)
	DIOCSETP    = ioc(iocIn, 'd', 3, PartitionLen)
	DIOCGETP    = ioc(iocOut, 'd', 4, PartitionLen)
)

// PayloadLen returns the size encoded in the code.
func (c IoctlCode) PayloadLen() int {
	return int(uint32(c)>>16) & iocSizeM
}

func (c IoctlCode) String() string {
	switch c {
	case MIOCRAMSIZE:
		return "MIOCRAMSIZE"
	case MIOCMAP:
		return "MIOCMAP"
	case MIOCUNMAP:
		return "MIOCUNMAP"
	case DIOCSETP:
		return "DIOCSETP"
	case DIOCGETP:
		return "DIOCGETP"
	default:
		return fmt.Sprintf("ioctl(%#x)", uint32(c))
	}
}

// IoctlRequest carries a control code and the caller buffer holding its
// payload. Addr is a GrantID in safe mode, a virtual address otherwise.
type IoctlRequest struct {
	Code     IoctlCode
	Minor    Minor
	Endpoint Endpoint
	Addr     uint64
	Mode     CopyMode
}

// MapRequest asks for a physical range to be mapped into the caller.
type MapRequest struct {
	Base   uint64
	Size   uint64
	Offset uint64
}

// MarshalTo encodes the request into b, which must hold MapReqLen bytes.
func (m MapRequest) MarshalTo(b []byte) int {
	if len(b) < MapReqLen {
		return 0
	}
	buf.PutU64LE(b[0:], m.Base)
	buf.PutU64LE(b[8:], m.Size)
	buf.PutU64LE(b[16:], m.Offset)
	return MapReqLen
}

// ParseMapRequest decodes a map request payload.
func ParseMapRequest(b []byte) (MapRequest, error) {
	if !buf.Has(b, 0, MapReqLen) {
		return MapRequest{}, Errorf(ErrKindInvalid, "map request: %d bytes, need %d", len(b), MapReqLen)
	}
	return MapRequest{
		Base:   buf.U64LE(b[0:]),
		Size:   buf.U64LE(b[8:]),
		Offset: buf.U64LE(b[16:]),
	}, nil
}

// PutRAMSize encodes a RAM disk size payload.
func PutRAMSize(b []byte, size uint32) int {
	if len(b) < RAMSizeLen {
		return 0
	}
	buf.PutU32LE(b, size)
	return RAMSizeLen
}

// ParseRAMSize decodes a RAM disk size payload.
func ParseRAMSize(b []byte) (uint32, error) {
	if !buf.Has(b, 0, RAMSizeLen) {
		return 0, Errorf(ErrKindInvalid, "ram size: %d bytes, need %d", len(b), RAMSizeLen)
	}
	return buf.U32LE(b), nil
}

// MarshalTo encodes the partition entry into b, which must hold PartitionLen bytes.
func (p Partition) MarshalTo(b []byte) int {
	if len(b) < PartitionLen {
		return 0
	}
	buf.PutU64LE(b[0:], p.Base)
	buf.PutU64LE(b[8:], p.Size)
	buf.PutU64LE(b[16:], p.Cylinders)
	buf.PutU32LE(b[24:], p.Heads)
	buf.PutU32LE(b[28:], p.Sectors)
	return PartitionLen
}

// ParsePartition decodes a partition entry.
func ParsePartition(b []byte) (Partition, error) {
	if !buf.Has(b, 0, PartitionLen) {
		return Partition{}, Errorf(ErrKindInvalid, "partition: %d bytes, need %d", len(b), PartitionLen)
	}
	return Partition{
		Base: buf.U64LE(b[0:]),
		Size: buf.U64LE(b[8:]),
		Geometry: Geometry{
			Cylinders: buf.U64LE(b[16:]),
			Heads:     buf.U32LE(b[24:]),
			Sectors:   buf.U32LE(b[28:]),
		},
	}, nil
}
