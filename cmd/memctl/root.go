package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memdrv/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logJSON bool

	machine = defaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Drive the memory driver on a simulated machine",
	Long: `memctl starts the memory driver on a simulated machine and sends it
requests: read and write the ram, mem, kmem, null, boot, zero and imgrd
devices, create the RAM disk, query geometry, and map physical memory.

Physical memory and the driver's durable store are kept in --state-dir.
A RAM disk created by one run is recovered by the next.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger.Init(logger.Options{Enabled: !quiet, JSON: logJSON, Level: level})
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	pf.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	pf.BoolVar(&logJSON, "log-json", false, "Write log records as JSON lines")

	pf.StringVar(&machine.StateDir, "state-dir", machine.StateDir, "Directory holding physical memory and the driver store")
	pf.StringVar(&machine.PhysSize, "phys-size", machine.PhysSize, "Physical memory size (e.g. 64MiB)")
	pf.StringVar(&machine.KmemSize, "kmem-size", machine.KmemSize, "Kernel memory size")
	pf.StringVar(&machine.ProcArea, "proc-area", machine.ProcArea, "Address space of the requesting process")
	pf.StringVar(&machine.BootImage, "boot-image", "", "File loaded as the boot device")
	pf.BoolVar(&machine.RealMode, "real-mode", false, "Simulate an unprotected machine")
	pf.IntVar(&machine.WordSize, "word-size", machine.WordSize, "Machine word size in bytes (2, 4 or 8)")
	pf.BoolVar(&machine.Legacy, "legacy", false, "Use direct virtual copies instead of grants")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
