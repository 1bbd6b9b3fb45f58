// Package driver is the request framework around a character driver. A Task
// decodes messages, selects the device, calls the driver, and turns the
// result into a reply status. It also answers the disk-style partition
// control codes on behalf of drivers that leave them unhandled.
//
// A fatal error from the driver is never replied to: the Task logs it and
// calls its Panic hook, which by default exits the process.
package driver

import (
	"errors"

	"github.com/joshuapare/memdrv/pkg/types"
)

// ErrUnhandled is returned by a Handler's Ioctl for codes it does not own.
var ErrUnhandled = errors.New("driver: control code not handled")

// Device is a selected minor device.
type Device interface {
	Minor() types.Minor
	Transfer(req *types.TransferRequest) (uint64, error)
	Partition() types.Partition
}

// Handler is the driver-specific part of a Task.
type Handler[D Device] interface {
	Name() string
	Open(req types.OpenRequest) error
	Prepare(minor types.Minor) (D, error)
	Ioctl(req types.IoctlRequest) error
}

// Op is the request type of a Message.
type Op int

const (
	OpOpen Op = iota
	OpClose
	OpGather
	OpScatter
	OpIoctl
)

func (o Op) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	case OpGather:
		return "gather"
	case OpScatter:
		return "scatter"
	case OpIoctl:
		return "ioctl"
	default:
		return "op(?)"
	}
}

// Message is one request to the driver.
type Message struct {
	Op       Op
	Minor    types.Minor
	Endpoint types.Endpoint
	Mode     types.CopyMode

	// Transfers. Vec is updated in place with the residual sizes.
	Position uint64
	Vec      []types.IOVec

	// Control requests.
	Code types.IoctlCode
	Addr uint64
}

// Reply answers a Message.
type Reply struct {
	Status types.Errno
	Count  uint64 // bytes moved by a transfer
	Err    error  // detail behind a non-OK status
}
