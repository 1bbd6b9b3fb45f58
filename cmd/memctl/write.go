package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memdrv/pkg/types"
)

func init() {
	rootCmd.AddCommand(newWriteCmd())
}

func newWriteCmd() *cobra.Command {
	var (
		offset string
		input  string
	)
	cmd := &cobra.Command{
		Use:   "write <device>",
		Short: "Write bytes to a device",
		Long: `The write command scatters bytes from a file (or stdin) onto a device.
Writes stop at the end of the device; the count written is reported.

Example:
  memctl write ram --input disk.img
  echo hello | memctl write kmem --offset 4KiB`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minor, err := types.ParseMinor(args[0])
			if err != nil {
				return err
			}
			pos, err := parseOffset(offset)
			if err != nil {
				return err
			}
			data, err := readInput(input)
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				n, err := s.write(minor, pos, data)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(map[string]any{"device": minor.String(), "written": n, "requested": len(data)})
				}
				printInfo("wrote %d of %d bytes to %s\n", n, len(data), minor)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&offset, "offset", "0", "Device position")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Input file, - for stdin")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return b, nil
}
