package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"selfprof/internal/version"
)

// main builds the root command and executes it. If command execution
// returns an error, the process exits with status code 1.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "selfprof",
		Short: "Self-profiling for a query-driven build",
		Long: `selfprof runs a workload described in selfprof.toml through a memoizing
query engine and records what the engine spends its time on: generic
activities, query providers, cache hits, blocked waits and incremental
cache loads.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: applyColorMode,
	}

	flags := root.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("log-level", "warn", "log level (debug|info|warn|error)")

	flags.Bool("self-profile", false, "record a self-profile of the run")
	flags.String("self-profile-dir", "", "directory for self-profile files (default: [profile].dir or .)")
	flags.StringSlice("self-profile-events", nil, "event categories to record (see 'selfprof filters')")
	flags.String("self-profile-mode", "", "self-profile storage (stream|ring|both)")
	flags.Int("self-profile-ring-size", 0, "events kept in memory for ring storage")
	flags.Bool("time-passes", false, "print the time taken by each pass")
	flags.Bool("time", false, "print pass timings including per-item details")
	flags.String("otlp-endpoint", "", "also export the self-profile to this OTLP gRPC endpoint")
	flags.Bool("otlp-insecure", false, "disable TLS for the OTLP connection")

	flags.String("cpu-profile", "", "write a Go CPU profile to file")
	flags.String("mem-profile", "", "write a Go heap profile to file")
	flags.String("runtime-trace", "", "write a Go runtime trace to file")

	root.AddCommand(
		newRunCmd(),
		newDumpCmd(),
		newSummaryCmd(),
		newFiltersCmd(),
		newVersionCmd(),
	)
	return root
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
