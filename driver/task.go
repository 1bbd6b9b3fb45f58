package driver

import (
	"context"
	"errors"
	"os"

	"github.com/joshuapare/memdrv/internal/logger"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Task serves messages for one Handler.
type Task[D Device] struct {
	h Handler[D]
	k kernel.Kernel

	// Panic is called with a fatal error instead of replying. It must not
	// return to a caller that expects the driver to keep serving; the
	// default exits the process.
	Panic func(err error)
}

// NewTask returns a Task serving h. k is used for the copies of the
// generic partition control codes.
func NewTask[D Device](h Handler[D], k kernel.Kernel) *Task[D] {
	return &Task[D]{
		h: h,
		k: k,
		Panic: func(error) {
			os.Exit(1)
		},
	}
}

// Handle serves one message.
func (t *Task[D]) Handle(m Message) Reply {
	var (
		n   uint64
		err error
	)
	switch m.Op {
	case OpOpen:
		err = t.h.Open(types.OpenRequest{Minor: m.Minor, Endpoint: m.Endpoint})
	case OpClose:
		_, err = t.h.Prepare(m.Minor)
	case OpGather, OpScatter:
		n, err = t.transfer(m)
	case OpIoctl:
		err = t.ioctl(m)
	default:
		err = types.Errorf(types.ErrKindInvalid, "%s: unknown request %d", t.h.Name(), int(m.Op))
	}

	if types.IsFatal(err) {
		logger.Error("driver panic", "driver", t.h.Name(), "op", m.Op, "minor", m.Minor, "err", err)
		t.Panic(err)
		return Reply{Status: types.EIO, Count: n, Err: err}
	}
	if err != nil {
		logger.Debug("request failed", "driver", t.h.Name(), "op", m.Op, "minor", m.Minor, "err", err)
	}
	return Reply{Status: types.ErrnoOf(err), Count: n, Err: err}
}

// Run serves messages from in until ctx is done or in is closed. Replies go
// to out in request order.
func (t *Task[D]) Run(ctx context.Context, in <-chan Message, out chan<- Reply) error {
	logger.Info("serving", "driver", t.h.Name())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				return nil
			}
			r := t.Handle(m)
			select {
			case out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (t *Task[D]) transfer(m Message) (uint64, error) {
	dev, err := t.h.Prepare(m.Minor)
	if err != nil {
		return 0, err
	}
	dir := types.Gather
	if m.Op == OpScatter {
		dir = types.Scatter
	}
	return dev.Transfer(&types.TransferRequest{
		Endpoint:  m.Endpoint,
		Direction: dir,
		Position:  m.Position,
		Vec:       m.Vec,
		Mode:      m.Mode,
	})
}

func (t *Task[D]) ioctl(m Message) error {
	req := types.IoctlRequest{Code: m.Code, Minor: m.Minor, Endpoint: m.Endpoint, Addr: m.Addr, Mode: m.Mode}
	err := t.h.Ioctl(req)
	if !errors.Is(err, ErrUnhandled) {
		return err
	}
	return t.diocntl(req)
}

// diocntl answers the partition codes for any device: DIOCGETP copies the
// device's partition entry to the caller, DIOCSETP is refused.
func (t *Task[D]) diocntl(req types.IoctlRequest) error {
	switch req.Code {
	case types.DIOCGETP:
		dev, err := t.h.Prepare(req.Minor)
		if err != nil {
			return err
		}
		var b [types.PartitionLen]byte
		dev.Partition().MarshalTo(b[:])
		src := kernel.BufSpan(b[:])
		if req.Mode == types.CopySafe {
			return t.k.SafeCopyTo(req.Endpoint, types.GrantID(req.Addr), 0, src, types.PartitionLen)
		}
		return t.k.VirCopyTo(req.Endpoint, req.Addr, src, types.PartitionLen)
	case types.DIOCSETP:
		if _, err := t.h.Prepare(req.Minor); err != nil {
			return err
		}
		return types.Errorf(types.ErrKindPermission, "%s: partition table is fixed", t.h.Name())
	default:
		return types.Errorf(types.ErrKindNotTTY, "%s: %s not supported", t.h.Name(), req.Code)
	}
}
