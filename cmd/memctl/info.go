package main

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memdrv/memory"
	"github.com/joshuapare/memdrv/pkg/types"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "List the driver's devices and the RAM disk state",
		Long: `The info command starts the driver and prints every minor device with
its region, plus whether a RAM disk exists and whether it was recovered.

Example:
  memctl info
  memctl info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(runInfo)
		},
	}
	return cmd
}

type deviceInfo struct {
	Minor     int    `json:"minor"`
	Name      string `json:"name"`
	Base      uint64 `json:"base"`
	Size      uint64 `json:"size"`
	Cylinders uint64 `json:"cylinders"`
}

type driverInfo struct {
	Instance     string       `json:"instance"`
	Devices      []deviceInfo `json:"devices"`
	RAMDisk      bool         `json:"ram_disk"`
	RAMRecovered bool         `json:"ram_disk_recovered"`
	StoreGen     uint64       `json:"store_generation"`
}

func collectInfo(s *session) (driverInfo, error) {
	info := driverInfo{Instance: s.drv.Instance(), StoreGen: s.store.Generation()}
	for m := 0; m < types.NumMinors; m++ {
		dev, err := s.drv.Prepare(types.Minor(m))
		if err != nil {
			return info, err
		}
		desc := dev.Descriptor()
		info.Devices = append(info.Devices, deviceInfo{
			Minor:     m,
			Name:      dev.Minor().String(),
			Base:      desc.Base,
			Size:      desc.Size,
			Cylinders: dev.Geometry().Cylinders,
		})
	}
	_, info.RAMDisk, info.RAMRecovered = s.drv.RAMDisk()
	return info, nil
}

func runInfo(s *session) error {
	info, err := collectInfo(s)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nDriver %s (instance %s)\n", memory.Name, info.Instance)
	printInfo("  %-5s %-6s %-18s %s\n", "MINOR", "NAME", "BASE", "SIZE")
	for _, d := range info.Devices {
		printInfo("  %-5d %-6s %-18s %s\n", d.Minor, d.Name, fmt.Sprintf("%#x", d.Base), sizeString(d.Size))
	}

	switch {
	case !info.RAMDisk:
		printInfo("\nRAM disk: not created\n")
	case info.RAMRecovered:
		printInfo("\nRAM disk: recovered from store (generation %d)\n", info.StoreGen)
	default:
		printInfo("\nRAM disk: created by this run\n")
	}
	return nil
}

func sizeString(n uint64) string {
	if n > 1<<62 {
		return fmt.Sprintf("%#x", n)
	}
	return units.BytesSize(float64(n))
}
