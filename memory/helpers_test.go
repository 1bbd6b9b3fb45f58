package memory

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memdrv/ds"
	"github.com/joshuapare/memdrv/internal/sim"
	"github.com/joshuapare/memdrv/pkg/types"
)

const (
	testPage          = 4096
	caller            = types.Endpoint(42)
	callerSpace       = 32 * testPage
	testImageSize     = 3000
	testPhysPages     = 256
	testKmemPages     = 4
	testBootPages     = 2
	testProcAreaPages = 64
)

var testImage = func() []byte {
	b := make([]byte, testImageSize)
	for i := range b {
		b[i] = byte(i*13 + 1)
	}
	return b
}()

func testConfig() sim.Config {
	return sim.Config{
		PhysSize: testPhysPages * testPage,
		KmemSize: testKmemPages * testPage,
		BootSize: testBootPages * testPage,
		ProcArea: testProcAreaPages * testPage,
		PageSize: testPage,
	}
}

// newKernel starts a simulated machine with one caller process.
func newKernel(t *testing.T, cfg sim.Config) *sim.Kernel {
	t.Helper()
	k, err := sim.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	_, err = k.Spawn(caller, callerSpace)
	require.NoError(t, err)
	return k
}

// newDriver starts an initialized driver incarnation on k.
func newDriver(t *testing.T, k *sim.Kernel, store ds.Store) *Driver {
	t.Helper()
	d := New(k, k, store, Options{Image: slices.Clone(testImage), Instance: "test"})
	require.NoError(t, d.Init())
	return d
}

func setup(t *testing.T) (*sim.Kernel, *Driver) {
	t.Helper()
	k := newKernel(t, testConfig())
	return k, newDriver(t, k, ds.NewMemStore())
}

// callerBuf describes a buffer in the caller's space, addressed either by a
// grant or by its virtual address.
type callerBuf struct {
	vir  uint64
	addr uint64
}

func newCallerBuf(t *testing.T, k *sim.Kernel, mode types.CopyMode, vir, size uint64, fill byte) callerBuf {
	t.Helper()
	require.NoError(t, k.WriteVirt(caller, vir, bytes.Repeat([]byte{fill}, int(size))))
	if mode == types.CopyLegacy {
		return callerBuf{vir: vir, addr: vir}
	}
	g, err := k.Grant(caller, vir, size, sim.AccessReadWrite)
	require.NoError(t, err)
	return callerBuf{vir: vir, addr: uint64(g)}
}

func readVirt(t *testing.T, k *sim.Kernel, vir, n uint64) []byte {
	t.Helper()
	b, err := k.ReadVirt(caller, vir, n)
	require.NoError(t, err)
	return b
}

// transfer runs a single-entry request and returns the count, the residual
// size of the entry and the error.
func transfer(t *testing.T, d *Driver, minor types.Minor, dir types.Direction, mode types.CopyMode, pos uint64, b callerBuf, size uint64) (uint64, uint64, error) {
	t.Helper()
	dev, err := d.Prepare(minor)
	require.NoError(t, err)
	req := &types.TransferRequest{
		Endpoint:  caller,
		Direction: dir,
		Position:  pos,
		Vec:       []types.IOVec{{Addr: b.addr, Size: size}},
		Mode:      mode,
	}
	n, err := dev.Transfer(req)
	return n, req.Vec[0].Size, err
}

// ioctl hands payload to the driver through a caller buffer at vir.
func ioctl(t *testing.T, k *sim.Kernel, d *Driver, code types.IoctlCode, minor types.Minor, payload []byte) error {
	t.Helper()
	const vir = callerSpace - testPage
	require.NoError(t, k.WriteVirt(caller, vir, payload))
	g, err := k.Grant(caller, vir, uint64(len(payload)), sim.AccessRead)
	require.NoError(t, err)
	return d.Ioctl(types.IoctlRequest{Code: code, Minor: minor, Endpoint: caller, Addr: uint64(g), Mode: types.CopySafe})
}

func ramSize(size uint32) []byte {
	b := make([]byte, types.RAMSizeLen)
	types.PutRAMSize(b, size)
	return b
}

func mapReq(m types.MapRequest) []byte {
	b := make([]byte, types.MapReqLen)
	m.MarshalTo(b)
	return b
}

var modes = []types.CopyMode{types.CopySafe, types.CopyLegacy}
