package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/joshuapare/memdrv/driver"
	"github.com/joshuapare/memdrv/ds"
	"github.com/joshuapare/memdrv/internal/logger"
	"github.com/joshuapare/memdrv/internal/sim"
	"github.com/joshuapare/memdrv/kernel"
	"github.com/joshuapare/memdrv/memory"
	"github.com/joshuapare/memdrv/pkg/types"
)

const (
	physFile  = "phys.mem"
	storeFile = "ds.rec"

	// caller is the endpoint of the process memctl issues requests as.
	caller = types.Endpoint(100)

	syncTimeout = 10 * time.Second
)

// machineConfig is the simulated machine selected by the global flags.
type machineConfig struct {
	StateDir  string
	PhysSize  string
	KmemSize  string
	ProcArea  string
	BootImage string
	RealMode  bool
	WordSize  int
	Legacy    bool
}

func defaultConfig() machineConfig {
	return machineConfig{
		StateDir: ".memdrv",
		PhysSize: "64MiB",
		KmemSize: "1MiB",
		ProcArea: "1MiB",
		WordSize: 4,
	}
}

func (c machineConfig) simConfig() (sim.Config, []byte, error) {
	var cfg sim.Config
	sizes := []struct {
		name string
		val  string
		dst  *uint64
	}{
		{"phys-size", c.PhysSize, &cfg.PhysSize},
		{"kmem-size", c.KmemSize, &cfg.KmemSize},
		{"proc-area", c.ProcArea, &cfg.ProcArea},
	}
	for _, s := range sizes {
		n, err := units.RAMInBytes(s.val)
		if err != nil || n <= 0 {
			return sim.Config{}, nil, fmt.Errorf("invalid --%s %q", s.name, s.val)
		}
		*s.dst = uint64(n)
	}

	var boot []byte
	if c.BootImage != "" {
		b, err := os.ReadFile(c.BootImage)
		if err != nil {
			return sim.Config{}, nil, fmt.Errorf("failed to read boot image: %w", err)
		}
		boot = b
		cfg.BootSize = uint64(len(b))
	}

	cfg.PhysPath = filepath.Join(c.StateDir, physFile)
	cfg.Machine = kernel.Machine{Protected: !c.RealMode, WordSize: c.WordSize}
	return cfg, boot, nil
}

func (c machineConfig) copyMode() types.CopyMode {
	if c.Legacy {
		return types.CopyLegacy
	}
	return types.CopySafe
}

// session is one driver incarnation on the machine in the state directory,
// with a single requesting process.
type session struct {
	k     *sim.Kernel
	store *ds.FileStore
	drv   *memory.Driver
	task  *driver.Task[*memory.Device]
	proc  *sim.Proc
	mode  types.CopyMode
	fatal error
}

func openSession(c machineConfig) (*session, error) {
	cfg, boot, err := c.simConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	k, err := sim.New(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{k: k, mode: c.copyMode()}
	if boot != nil {
		copy(k.Phys()[k.Layout().BootBase:], boot)
	}

	if s.store, err = ds.OpenFile(filepath.Join(c.StateDir, storeFile)); err != nil {
		_ = k.Close()
		return nil, err
	}

	s.drv = memory.New(k, k, s.store, memory.Options{Instance: uuid.NewString()})
	if err := s.drv.Init(); err != nil {
		_ = k.Close()
		return nil, fmt.Errorf("driver init: %w", err)
	}
	if desc, ok, _ := s.drv.RAMDisk(); ok {
		k.Reserve(desc.Base, desc.Size)
	}

	s.task = driver.NewTask[*memory.Device](s.drv, k)
	s.task.Panic = func(err error) { s.fatal = err }

	if s.proc, err = k.Spawn(caller, cfg.ProcArea); err != nil {
		_ = k.Close()
		return nil, err
	}
	logger.Debug("session opened", "state_dir", c.StateDir, "instance", s.drv.Instance())
	return s, nil
}

// Close flushes physical memory to the state directory.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	return errors.Join(s.k.Sync(ctx), s.k.Close())
}

// handle sends m and converts the reply into an error.
func (s *session) handle(m driver.Message) (driver.Reply, error) {
	m.Endpoint = caller
	m.Mode = s.mode
	r := s.task.Handle(m)
	if s.fatal != nil {
		return r, fmt.Errorf("driver stopped: %w", s.fatal)
	}
	if r.Status != types.OK {
		return r, fmt.Errorf("%s %s: %s: %w", m.Op, m.Minor, r.Status, r.Err)
	}
	return r, nil
}

// buffer places data at the start of the caller's space and returns the
// address to hand to the driver for it.
func (s *session) buffer(data []byte, access sim.Access) (uint64, func(), error) {
	if err := s.k.WriteVirt(caller, 0, data); err != nil {
		return 0, nil, err
	}
	if s.mode == types.CopyLegacy {
		return 0, func() {}, nil
	}
	g, err := s.k.Grant(caller, 0, uint64(len(data)), access)
	if err != nil {
		return 0, nil, err
	}
	return uint64(g), func() { s.k.Revoke(g) }, nil
}

func (s *session) open(minor types.Minor) error {
	_, err := s.handle(driver.Message{Op: driver.OpOpen, Minor: minor})
	return err
}

// read gathers up to n bytes from minor at pos, stopping at end of device.
func (s *session) read(minor types.Minor, pos, n uint64) ([]byte, error) {
	if err := s.open(minor); err != nil {
		return nil, err
	}
	var out []byte
	for n > 0 {
		chunk := min(n, s.proc.Size)
		addr, release, err := s.buffer(make([]byte, chunk), sim.AccessWrite)
		if err != nil {
			return out, err
		}
		r, err := s.handle(driver.Message{
			Op:       driver.OpGather,
			Minor:    minor,
			Position: pos,
			Vec:      []types.IOVec{{Addr: addr, Size: chunk}},
		})
		release()
		if err != nil {
			return out, err
		}
		b, err := s.k.ReadVirt(caller, 0, r.Count)
		if err != nil {
			return out, err
		}
		out = append(out, b...)
		if r.Count < chunk {
			break
		}
		pos += r.Count
		n -= r.Count
	}
	return out, nil
}

// write scatters data onto minor at pos and returns the bytes accepted.
func (s *session) write(minor types.Minor, pos uint64, data []byte) (uint64, error) {
	if err := s.open(minor); err != nil {
		return 0, err
	}
	var total uint64
	for len(data) > 0 {
		chunk := data[:min(uint64(len(data)), s.proc.Size)]
		addr, release, err := s.buffer(chunk, sim.AccessRead)
		if err != nil {
			return total, err
		}
		r, err := s.handle(driver.Message{
			Op:       driver.OpScatter,
			Minor:    minor,
			Position: pos,
			Vec:      []types.IOVec{{Addr: addr, Size: uint64(len(chunk))}},
		})
		release()
		if err != nil {
			return total, err
		}
		total += r.Count
		if r.Count < uint64(len(chunk)) {
			break
		}
		pos += r.Count
		data = data[r.Count:]
	}
	return total, nil
}

// ioctl sends code with payload in a read-write caller buffer and returns
// the buffer afterwards.
func (s *session) ioctl(code types.IoctlCode, minor types.Minor, payload []byte) ([]byte, error) {
	addr, release, err := s.buffer(payload, sim.AccessReadWrite)
	if err != nil {
		return nil, err
	}
	defer release()
	if _, err := s.handle(driver.Message{Op: driver.OpIoctl, Code: code, Minor: minor, Addr: addr}); err != nil {
		return nil, err
	}
	return s.k.ReadVirt(caller, 0, uint64(len(payload)))
}

// withSession runs fn on a session for the global machine flags.
func withSession(fn func(s *session) error) (err error) {
	s, err := openSession(machine)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
