package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/memdrv/pkg/types"
)

func init() {
	rootCmd.AddCommand(newGeometryCmd())
}

func newGeometryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geometry <device>",
		Short: "Show a device's partition entry",
		Long: `The geometry command fetches the device's partition entry with DIOCGETP,
as a disk utility would.

Example:
  memctl geometry ram`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minor, err := types.ParseMinor(args[0])
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				p, err := fetchPartition(s, minor)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(p)
				}
				printInfo("%s: base %#x size %s\n", minor, p.Base, sizeString(p.Size))
				printInfo("  cylinders %d, heads %d, sectors %d\n", p.Cylinders, p.Heads, p.Sectors)
				return nil
			})
		},
	}
	return cmd
}

func fetchPartition(s *session, minor types.Minor) (types.Partition, error) {
	b, err := s.ioctl(types.DIOCGETP, minor, make([]byte, types.PartitionLen))
	if err != nil {
		return types.Partition{}, err
	}
	return types.ParsePartition(b)
}
