package memory

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/joshuapare/memdrv/ds"
	"github.com/joshuapare/memdrv/internal/logger"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/memory/imgrd"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Name is the label the driver registers and logs under.
const Name = "memory"

// ZeroBufSize is the size of the zero source buffer. Reads from the zero
// device are copied out in chunks of at most this many bytes.
const ZeroBufSize = 1024

// Store keys of the RAM disk record.
const (
	KeyRAMBase = "dev:memory:ramdisk_base"
	KeyRAMSize = "dev:memory:ramdisk_size"
)

// Options configures a Driver.
type Options struct {
	// Image is served by the imgrd device. Nil selects the linked-in image.
	Image []byte
	// Instance identifies this incarnation in log records. Empty generates
	// a random one.
	Instance string
}

// Driver is the memory driver core.
type Driver struct {
	k     kernel.Kernel
	alloc kernel.Allocator
	store ds.Store
	log   *slog.Logger
	id    string

	geom    [types.NumMinors]Descriptor
	handles [types.NumMinors]Device
	ram     ramState
	zero    [ZeroBufSize]byte
	image   []byte
	ready   bool
}

// New returns a driver wired to its collaborators. Call Init before serving
// requests.
func New(k kernel.Kernel, alloc kernel.Allocator, store ds.Store, opts Options) *Driver {
	d := &Driver{
		k:     k,
		alloc: alloc,
		store: store,
		id:    opts.Instance,
		image: opts.Image,
	}
	if d.image == nil {
		d.image = imgrd.Image
	}
	if d.id == "" {
		d.id = uuid.NewString()
	}
	d.log = logger.L.With("driver", Name, "instance", d.id)
	for m := 0; m < types.NumMinors; m++ {
		minor := types.Minor(m)
		d.handles[m] = Device{d: d, minor: minor, impl: kindOf(minor)}
	}
	return d
}

// Name returns the driver label.
func (d *Driver) Name() string { return Name }

// Instance returns the incarnation id used in log records.
func (d *Driver) Instance() string { return d.id }

// Open validates minor and, for the mem device, grants the caller I/O
// privilege. A refused privilege is reported to the caller.
func (d *Driver) Open(req types.OpenRequest) error {
	dev, err := d.Prepare(req.Minor)
	if err != nil {
		return err
	}
	if dev.Minor() != types.MinorMem {
		return nil
	}
	if err := d.k.EnableIOP(req.Endpoint); err != nil {
		d.log.Warn("couldn't enable I/O privilege", "endpoint", req.Endpoint, "err", err)
		return err
	}
	return nil
}

// RAMDisk returns the RAM disk descriptor and whether one exists. recovered
// is true when it was found in the store at Init rather than created by
// this incarnation.
func (d *Driver) RAMDisk() (desc Descriptor, ok, recovered bool) {
	a, ok := d.ram.(ramAllocated)
	if !ok {
		return Descriptor{}, false, false
	}
	return a.desc, true, a.recovered
}
