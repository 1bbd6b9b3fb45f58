package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memdrv/memory/imgrd"
	"github.com/joshuapare/memdrv/pkg/types"
)

func testMachine(t *testing.T) machineConfig {
	t.Helper()
	c := defaultConfig()
	c.StateDir = t.TempDir()
	c.PhysSize = "4MiB"
	c.KmemSize = "64KiB"
	c.ProcArea = "64KiB"
	return c
}

func TestSessionRAMDiskSurvivesRuns(t *testing.T) {
	c := testMachine(t)
	data := []byte("written by the first run")

	s, err := openSession(c)
	require.NoError(t, err)
	require.NoError(t, runMkram(s, 128<<10))
	n, err := s.write(types.MinorRAM, 1000, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), n)
	require.NoError(t, s.Close())

	s, err = openSession(c)
	require.NoError(t, err)
	defer s.Close()

	info, err := collectInfo(s)
	require.NoError(t, err)
	assert.True(t, info.RAMDisk)
	assert.True(t, info.RAMRecovered)
	assert.Equal(t, uint64(128<<10), info.Devices[types.MinorRAM].Size)

	got, err := s.read(types.MinorRAM, 1000, uint64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	err = runMkram(s, 4096)
	require.ErrorIs(t, err, types.ErrPermission)
}

func TestSessionReadStopsAtEnd(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		c := testMachine(t)
		c.Legacy = legacy
		s, err := openSession(c)
		require.NoError(t, err)

		got, err := s.read(types.MinorImgrd, 0, uint64(len(imgrd.Image))+500)
		require.NoError(t, err)
		assert.Equal(t, imgrd.Image, got)

		// Larger than the caller's address space, served in chunks.
		zeros, err := s.read(types.MinorZero, 0, 200<<10)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 200<<10), zeros)
		require.NoError(t, s.Close())
	}
}

func TestSessionBootImage(t *testing.T) {
	c := testMachine(t)
	c.BootImage = filepath.Join(t.TempDir(), "boot.img")
	require.NoError(t, os.WriteFile(c.BootImage, []byte("boot image contents"), 0o600))

	s, err := openSession(c)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.read(types.MinorBoot, 5, 1000)
	require.NoError(t, err)
	assert.Equal(t, []byte("image contents"), got)

	p, err := fetchPartition(s, types.MinorBoot)
	require.NoError(t, err)
	assert.Equal(t, uint64(len("boot image contents")), p.Size)
	assert.Equal(t, uint32(64), p.Heads)
}

func TestSessionMap(t *testing.T) {
	c := testMachine(t)
	s, err := openSession(c)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, runMap(s, types.MapRequest{Base: 0x1000, Size: 0x1000}, false))
	assert.Len(t, s.k.Mappings(caller), 1)
	assert.True(t, s.k.Privileged(caller))

	require.NoError(t, runMap(s, types.MapRequest{Base: 0x4000, Size: 0x1000}, true))
	assert.Len(t, s.k.Mappings(caller), 1)
}

func TestSessionWriteNull(t *testing.T) {
	c := testMachine(t)
	s, err := openSession(c)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.write(types.MinorNull, 0, make([]byte, 100<<10))
	require.NoError(t, err)
	assert.Equal(t, uint64(100<<10), n)

	got, err := s.read(types.MinorNull, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBadMachineFlags(t *testing.T) {
	c := testMachine(t)
	c.PhysSize = "lots"
	_, err := openSession(c)
	require.Error(t, err)

	c = testMachine(t)
	c.BootImage = filepath.Join(t.TempDir(), "missing")
	_, err = openSession(c)
	require.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0", 0, true},
		{"512", 512, true},
		{"0x1000", 0x1000, true},
		{"4KiB", 4096, true},
		{"1MiB", 1 << 20, true},
		{"nope", 0, false},
	}
	for _, tt := range tests {
		got, err := parseOffset(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseRAMSize("8GiB")
	assert.Error(t, err)
	size, err := parseRAMSize("64KiB")
	require.NoError(t, err)
	assert.Equal(t, uint32(64<<10), size)
}
