package main

import (
	"fmt"
	"math/bits"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"selfprof/internal/selfprof"
)

func newFiltersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List self-profile event categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			marker := color.New(color.FgGreen)
			for _, name := range selfprof.FilterNames() {
				mask, _ := selfprof.MaskFor([]string{name})
				line := fmt.Sprintf("  %-18s %s", name, mask)
				if bits.OnesCount32(uint32(mask)) == 1 && selfprof.FilterDefault.Contains(mask) {
					line += marker.Sprint(" (default)")
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "default: %s\n", selfprof.FilterDefault)
			return nil
		},
	}
}
