package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/memdrv/internal/sim"
	"github.com/joshuapare/memdrv/pkg/types"
)

func init() {
	rootCmd.AddCommand(newMapCmd())
}

func newMapCmd() *cobra.Command {
	var (
		offset string
		unmap  bool
	)
	cmd := &cobra.Command{
		Use:   "map <base> <size>",
		Short: "Map physical memory into the requesting process",
		Long: `The map command opens the mem device and asks the driver to map a
physical range into the requesting process with MIOCMAP. Mappings belong
to the process of one run; --unmap releases the range again with
MIOCUNMAP before the run ends.

Example:
  memctl map 0xA0000 64KiB --offset 1MiB
  memctl map 0xA0000 64KiB --unmap`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req types.MapRequest
			var err error
			if req.Base, err = parseOffset(args[0]); err != nil {
				return err
			}
			if req.Size, err = parseOffset(args[1]); err != nil {
				return err
			}
			if req.Offset, err = parseOffset(offset); err != nil {
				return err
			}
			return withSession(func(s *session) error {
				return runMap(s, req, unmap)
			})
		},
	}
	cmd.Flags().StringVar(&offset, "offset", "0", "Offset in the process address space")
	cmd.Flags().BoolVar(&unmap, "unmap", false, "Unmap the range again before exiting")
	return cmd
}

type mapResult struct {
	Mapped   []sim.Mapping `json:"mapped"`
	Unmapped bool          `json:"unmapped"`
}

func runMap(s *session, req types.MapRequest, unmap bool) error {
	if err := s.open(types.MinorMem); err != nil {
		return err
	}
	payload := make([]byte, types.MapReqLen)
	req.MarshalTo(payload)
	if _, err := s.ioctl(types.MIOCMAP, types.MinorMem, payload); err != nil {
		return err
	}
	res := mapResult{Mapped: s.k.Mappings(caller)}
	printVerbose("mapped [%#x, +%#x) at offset %#x\n", req.Base, req.Size, req.Offset)

	if unmap {
		if _, err := s.ioctl(types.MIOCUNMAP, types.MinorMem, payload); err != nil {
			return err
		}
		res.Unmapped = true
	}

	if jsonOut {
		return printJSON(res)
	}
	for _, m := range res.Mapped {
		printInfo("[%#x, +%#x) at offset %#x\n", m.Base, m.Size, m.Offset)
	}
	if res.Unmapped {
		printInfo("unmapped, %d mapping(s) left\n", len(s.k.Mappings(caller)))
	}
	return nil
}
