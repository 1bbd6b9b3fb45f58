package memory

import (
	"fmt"

	"github.com/joshuapare/memdrv/driver"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Ioctl serves the driver's control codes. Codes it does not own return
// driver.ErrUnhandled so the framework can apply its generic handling.
func (d *Driver) Ioctl(req types.IoctlRequest) error {
	switch req.Code {
	case types.MIOCRAMSIZE:
		return d.createRAMDisk(req)
	case types.MIOCMAP:
		return d.mapPhys(req, true)
	case types.MIOCUNMAP:
		return d.mapPhys(req, false)
	default:
		return driver.ErrUnhandled
	}
}

// mapPhys maps or unmaps a physical range into the caller. Only the mem
// device accepts it.
func (d *Driver) mapPhys(req types.IoctlRequest, doMap bool) error {
	dev, err := d.Prepare(req.Minor)
	if err != nil {
		return err
	}
	if dev.Minor() != types.MinorMem {
		return types.Errorf(types.ErrKindNotTTY, "memory: %s on %s", req.Code, dev.Minor())
	}

	var payload [types.MapReqLen]byte
	c := copier{k: d.k, ep: req.Endpoint, mode: req.Mode}
	if err := c.fromCaller(req.Addr, 0, kernel.BufSpan(payload[:]), types.MapReqLen); err != nil {
		return fmt.Errorf("memory: read map request from endpoint %d: %w", req.Endpoint, err)
	}
	mr, err := types.ParseMapRequest(payload[:])
	if err != nil {
		return err
	}
	if err := d.k.VMMap(req.Endpoint, doMap, mr.Base, mr.Size, mr.Offset); err != nil {
		return fmt.Errorf("memory: %s of %#x+%#x for endpoint %d: %w", req.Code, mr.Base, mr.Size, req.Endpoint, err)
	}
	d.log.Debug("physical range "+mapVerb(doMap), "endpoint", req.Endpoint, "base", mr.Base, "size", mr.Size, "offset", mr.Offset)
	return nil
}

func mapVerb(doMap bool) string {
	if doMap {
		return "mapped"
	}
	return "unmapped"
}

var _ driver.Handler[*Device] = (*Driver)(nil)
