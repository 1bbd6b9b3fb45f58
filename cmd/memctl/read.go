package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joshuapare/memdrv/pkg/types"
)

func init() {
	rootCmd.AddCommand(newReadCmd())
}

func newReadCmd() *cobra.Command {
	var (
		offset string
		count  string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "read <device>",
		Short: "Read bytes from a device",
		Long: `The read command gathers bytes from a device. Output is a hex dump on a
terminal and raw bytes otherwise; --raw forces raw output.

Example:
  memctl read imgrd --count 256
  memctl read ram --offset 1KiB --count 4KiB --raw > ram.bin`,
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
			n, err := parseOffset(count)
			if err != nil {
				return err
			}
			return withSession(func(s *session) error {
				data, err := s.read(minor, pos, n)
				if err != nil {
					return err
				}
				printVerbose("read %d bytes from %s at %#x\n", len(data), minor, pos)
				return emit(data, raw || !term.IsTerminal(int(os.Stdout.Fd())))
			})
		},
	}
	cmd.Flags().StringVar(&offset, "offset", "0", "Device position")
	cmd.Flags().StringVar(&count, "count", "512", "Bytes to read")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write raw bytes even to a terminal")
	return cmd
}

// parseOffset accepts numbers in Go syntax (0x1000) and sizes such as 4KiB.
func parseOffset(arg string) (uint64, error) {
	if n, err := strconv.ParseUint(arg, 0, 64); err == nil {
		return n, nil
	}
	n, err := units.RAMInBytes(arg)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid byte count %q", arg)
	}
	return uint64(n), nil
}

func emit(data []byte, raw bool) error {
	if jsonOut {
		return printJSON(map[string]any{"count": len(data), "hex": hex.EncodeToString(data)})
	}
	if raw {
		_, err := os.Stdout.Write(data)
		return err
	}
	_, err := fmt.Fprint(os.Stdout, hex.Dump(data))
	return err
}
