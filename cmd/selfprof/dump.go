package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"selfprof/internal/measure"
)

type dumpOptions struct {
	format string
	kind   string
	limit  int
}

func newDumpCmd() *cobra.Command {
	opts := &dumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump <profile>",
		Short: "Print the events of a self-profile file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := measure.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			data, err := measure.ReadProfileFile(args[0])
			if err != nil {
				return err
			}
			return dumpProfile(cmd.OutOrStdout(), data, format, opts)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format (text|ndjson)")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "only print events of this kind (e.g. Query)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "stop after this many events (0 = all)")
	return cmd
}

func dumpProfile(out io.Writer, data *measure.Data, format measure.Format, opts *dumpOptions) error {
	if format == measure.FormatText {
		h := data.Header
		color.New(color.Bold).Fprintf(out, "# %s pid=%d started=%s events=%d\n",
			h.Crate, h.PID, h.Start.Format(time.RFC3339), len(data.Events))
	}
	printed := 0
	for i := range data.Events {
		ev := &data.Events[i]
		if opts.kind != "" && data.KindName(ev.Kind) != opts.kind {
			continue
		}
		if opts.limit > 0 && printed >= opts.limit {
			break
		}
		if _, err := out.Write(measure.FormatEvent(data, ev, format)); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		printed++
	}
	return nil
}
