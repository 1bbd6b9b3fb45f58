package memory

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memdrv/ds"
	"github.com/joshuapare/memdrv/internal/sim"
	"github.com/joshuapare/memdrv/pkg/types"
)

// failingStore refuses every commit.
type failingStore struct {
	*ds.MemStore
}

func (failingStore) Commit(...ds.Entry) error { return errors.New("store offline") }

func TestRAMDiskBeforeCreation(t *testing.T) {
	k, d := setup(t)
	_, ok, _ := d.RAMDisk()
	assert.False(t, ok)

	b := newCallerBuf(t, k, types.CopySafe, 0, 16, 0)
	n, left, err := transfer(t, d, types.MinorRAM, types.Gather, types.CopySafe, 0, b, 16)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint64(16), left)
}

func TestRAMDiskCreate(t *testing.T) {
	k := newKernel(t, testConfig())
	store := ds.NewMemStore()
	d := newDriver(t, k, store)

	require.NoError(t, ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(3*testPage)))

	desc, ok, recovered := d.RAMDisk()
	require.True(t, ok)
	assert.False(t, recovered)
	assert.Equal(t, uint64(3*testPage), desc.Size)
	assert.Equal(t, k.Layout().ArenaBase, desc.Base)
	assert.NotZero(t, desc.Seg)

	base, err := store.RetrieveU32(KeyRAMBase)
	require.NoError(t, err)
	assert.Equal(t, uint32(desc.Base), base)
	size, err := store.RetrieveU32(KeyRAMSize)
	require.NoError(t, err)
	assert.Equal(t, uint32(3*testPage), size)

	dev, err := d.Prepare(types.MinorRAM)
	require.NoError(t, err)
	assert.Equal(t, desc, dev.Descriptor())

	data := []byte("stored on the ram disk")
	n := uint64(len(data))
	src := newCallerBuf(t, k, types.CopySafe, 0, n, 0)
	require.NoError(t, k.WriteVirt(caller, 0, data))
	moved, _, err := transfer(t, d, types.MinorRAM, types.Scatter, types.CopySafe, 3*testPage-n, src, n)
	require.NoError(t, err)
	assert.Equal(t, n, moved)
	assert.Equal(t, data, k.Phys()[desc.Base+3*testPage-n:desc.Base+3*testPage])

	dst := newCallerBuf(t, k, types.CopyLegacy, testPage, 2*n, 0)
	moved, left, err := transfer(t, d, types.MinorRAM, types.Gather, types.CopyLegacy, 3*testPage-n, dst, 2*n)
	require.NoError(t, err)
	assert.Equal(t, n, moved)
	assert.Equal(t, n, left)
	assert.Equal(t, data, readVirt(t, k, testPage, n))
}

func TestRAMDiskCreateOnce(t *testing.T) {
	k, d := setup(t)
	require.NoError(t, ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage)))
	first, _, _ := d.RAMDisk()

	err := ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(2*testPage))
	require.ErrorIs(t, err, types.ErrPermission)
	assert.Equal(t, types.EPERM, types.ErrnoOf(err))

	// The latch is checked before the device.
	err = ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorKmem, ramSize(2*testPage))
	require.ErrorIs(t, err, types.ErrPermission)

	again, _, _ := d.RAMDisk()
	assert.Equal(t, first, again)
}

func TestRAMDiskCreateRejected(t *testing.T) {
	tests := []struct {
		name   string
		minor  types.Minor
		size   uint32
		faults sim.Faults
		want   error
	}{
		{"wrong device", types.MinorKmem, testPage, sim.Faults{}, types.ErrInvalid},
		{"zero size", types.MinorRAM, 0, sim.Faults{}, types.ErrInvalid},
		{"too large", types.MinorRAM, 1 << 30, sim.Faults{}, types.ErrNoMemory},
		{"allocator failure", types.MinorRAM, testPage, sim.Faults{Alloc: errors.New("no pages")}, types.ErrNoMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKernel(t, testConfig())
			store := ds.NewMemStore()
			d := newDriver(t, k, store)
			k.Inject(tt.faults)

			err := ioctl(t, k, d, types.MIOCRAMSIZE, tt.minor, ramSize(tt.size))
			require.ErrorIs(t, err, tt.want)
			assert.False(t, types.IsFatal(err))

			_, ok, _ := d.RAMDisk()
			assert.False(t, ok)
			_, err = store.RetrieveU32(KeyRAMBase)
			require.ErrorIs(t, err, ds.ErrNotFound)

			// A failed attempt does not latch.
			k.Inject(sim.Faults{})
			require.NoError(t, ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage)))
		})
	}
}

func TestRAMDiskPayloadUnreadable(t *testing.T) {
	k, d := setup(t)
	err := d.Ioctl(types.IoctlRequest{Code: types.MIOCRAMSIZE, Minor: types.MinorRAM, Endpoint: caller, Addr: 777, Mode: types.CopySafe})
	require.Error(t, err)
	assert.False(t, types.IsFatal(err))
	assert.Equal(t, types.EPERM, types.ErrnoOf(err))

	_, ok, _ := d.RAMDisk()
	assert.False(t, ok)
	require.NoError(t, ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage)))
}

func TestRAMDiskCreateFatal(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		k := newKernel(t, testConfig())
		d := newDriver(t, k, failingStore{ds.NewMemStore()})
		err := ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage))
		assert.True(t, types.IsFatal(err), "%v", err)
		_, ok, _ := d.RAMDisk()
		assert.False(t, ok)
	})

	t.Run("segment", func(t *testing.T) {
		k, d := setup(t)
		k.Inject(sim.Faults{SegCtl: errors.New("no segment slots")})
		err := ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage))
		assert.True(t, types.IsFatal(err), "%v", err)
	})
}

func TestRAMDiskRecoveredAfterRestart(t *testing.T) {
	k := newKernel(t, testConfig())
	store := ds.NewMemStore()

	first := newDriver(t, k, store)
	require.NoError(t, ioctl(t, k, first, types.MIOCRAMSIZE, types.MinorRAM, ramSize(2*testPage)))
	created, _, _ := first.RAMDisk()
	data := []byte("survives a restart")
	src := newCallerBuf(t, k, types.CopySafe, 0, uint64(len(data)), 0)
	require.NoError(t, k.WriteVirt(caller, 0, data))
	_, _, err := transfer(t, first, types.MinorRAM, types.Scatter, types.CopySafe, 0, src, uint64(len(data)))
	require.NoError(t, err)

	second := newDriver(t, k, store)
	got, ok, recovered := second.RAMDisk()
	require.True(t, ok)
	assert.True(t, recovered)
	assert.Equal(t, created.Base, got.Base)
	assert.Equal(t, created.Size, got.Size)

	dst := newCallerBuf(t, k, types.CopySafe, testPage, uint64(len(data)), 0)
	n, _, err := transfer(t, second, types.MinorRAM, types.Gather, types.CopySafe, 0, dst, uint64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), n)
	assert.Equal(t, data, readVirt(t, k, testPage, uint64(len(data))))

	err = ioctl(t, k, second, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage))
	require.ErrorIs(t, err, types.ErrPermission)
}

func TestRAMDiskRecoveredFromDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.PhysPath = filepath.Join(dir, "phys")
	storePath := filepath.Join(dir, "ds")
	data := []byte("durable bytes")
	n := uint64(len(data))

	var created Descriptor
	{
		k, err := sim.New(cfg)
		require.NoError(t, err)
		_, err = k.Spawn(caller, callerSpace)
		require.NoError(t, err)
		store, err := ds.OpenFile(storePath)
		require.NoError(t, err)

		d := newDriver(t, k, store)
		require.NoError(t, ioctl(t, k, d, types.MIOCRAMSIZE, types.MinorRAM, ramSize(testPage)))
		created, _, _ = d.RAMDisk()
		src := newCallerBuf(t, k, types.CopySafe, 0, n, 0)
		require.NoError(t, k.WriteVirt(caller, 0, data))
		_, _, err = transfer(t, d, types.MinorRAM, types.Scatter, types.CopySafe, 0, src, n)
		require.NoError(t, err)
		require.NoError(t, k.Close())
	}

	k := newKernel(t, cfg)
	store, err := ds.OpenFile(storePath)
	require.NoError(t, err)
	d := newDriver(t, k, store)

	got, ok, recovered := d.RAMDisk()
	require.True(t, ok)
	assert.True(t, recovered)
	assert.Equal(t, created.Base, got.Base)
	assert.Equal(t, created.Size, got.Size)

	dst := newCallerBuf(t, k, types.CopySafe, 0, n, 0)
	_, _, err = transfer(t, d, types.MinorRAM, types.Gather, types.CopySafe, 0, dst, n)
	require.NoError(t, err)
	assert.Equal(t, data, readVirt(t, k, 0, n))
}

func TestRAMDiskPartialRecordIgnored(t *testing.T) {
	k := newKernel(t, testConfig())
	store := ds.NewMemStore()
	require.NoError(t, store.PublishU32(KeyRAMSize, testPage))

	d := newDriver(t, k, store)
	_, ok, _ := d.RAMDisk()
	assert.False(t, ok)
}
