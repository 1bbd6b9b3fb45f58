package main

import (
	"fmt"
	"math"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memdrv/pkg/types"
)

func init() {
	rootCmd.AddCommand(newMkramCmd())
}

func newMkramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkram <size>",
		Short: "Create the RAM disk",
		Long: `The mkram command asks the driver for a RAM disk of the given size.
The RAM disk can be created once; later runs recover it from the store.

Example:
  memctl mkram 4MiB`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseRAMSize(args[0])
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				return runMkram(s, size)
			})
		},
	}
	return cmd
}

func parseRAMSize(arg string) (uint32, error) {
	n, err := units.RAMInBytes(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", arg, err)
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("size %q out of range", arg)
	}
	return uint32(n), nil
}

func runMkram(s *session, size uint32) error {
	payload := make([]byte, types.RAMSizeLen)
	types.PutRAMSize(payload, size)
	if _, err := s.ioctl(types.MIOCRAMSIZE, types.MinorRAM, payload); err != nil {
		return fmt.Errorf("failed to create RAM disk: %w", err)
	}
	desc, _, _ := s.drv.RAMDisk()
	printInfo("RAM disk of %s at %#x\n", units.BytesSize(float64(desc.Size)), desc.Base)
	return nil
}
