package memory

import (
	"testing"

	"github.com/joshuapare/memdrv/ds"
	"github.com/joshuapare/memdrv/internal/sim"
	"github.com/joshuapare/memdrv/pkg/types"
)

// Benchmark gathers of one caller-sized buffer per device
func BenchmarkGather_Zero(b *testing.B) {
	benchmarkGather(b, types.MinorZero, 0)
}

func BenchmarkGather_Kmem(b *testing.B) {
	benchmarkGather(b, types.MinorKmem, 0)
}

func BenchmarkGather_Mem(b *testing.B) {
	benchmarkGather(b, types.MinorMem, 0)
}

func benchmarkGather(b *testing.B, minor types.Minor, pos uint64) {
	k, err := sim.New(testConfig())
	if err != nil {
		b.Fatalf("failed to start machine: %v", err)
	}
	defer k.Close()
	if _, err := k.Spawn(caller, callerSpace); err != nil {
		b.Fatalf("spawn failed: %v", err)
	}
	const size = testKmemPages * testPage
	g, err := k.Grant(caller, 0, size, sim.AccessWrite)
	if err != nil {
		b.Fatalf("grant failed: %v", err)
	}

	d := New(k, k, ds.NewMemStore(), Options{Image: testImage})
	if err := d.Init(); err != nil {
		b.Fatalf("init failed: %v", err)
	}
	dev, err := d.Prepare(minor)
	if err != nil {
		b.Fatalf("prepare failed: %v", err)
	}

	b.SetBytes(size)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := &types.TransferRequest{
			Endpoint:  caller,
			Direction: types.Gather,
			Position:  pos,
			Vec:       []types.IOVec{{Addr: uint64(g), Size: size}},
		}
		if _, err := dev.Transfer(req); err != nil {
			b.Fatalf("transfer failed: %v", err)
		}
	}
}
