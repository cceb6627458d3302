package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"selfprof/internal/measure"
	"selfprof/internal/observ"
	"selfprof/internal/ui"
)

type summaryOptions struct {
	limit int
	width int
}

func newSummaryCmd() *cobra.Command {
	opts := &summaryOptions{}
	cmd := &cobra.Command{
		Use:   "summary <profile>",
		Short: "Aggregate a self-profile by event kind and label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := measure.ReadProfileFile(args[0])
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), measure.Summarize(data), *opts)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "rows to show (0 = all)")
	cmd.Flags().IntVar(&opts.width, "width", 48, "maximum label width")
	return cmd
}

func renderSummary(out io.Writer, rows []measure.SummaryRow, opts summaryOptions) {
	p := message.NewPrinter(language.English)

	shown := rows
	if opts.limit > 0 && len(shown) > opts.limit {
		shown = shown[:opts.limit]
	}
	cells := make([][]string, 0, len(shown))
	for _, r := range shown {
		cells = append(cells, []string{
			r.Kind,
			ui.Truncate(r.Label, opts.width),
			p.Sprintf("%d", r.Count),
			observ.DurationToSecsStr(r.Total),
			observ.DurationToSecsStr(r.Max),
		})
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KIND", "LABEL", "COUNT", "TOTAL (s)", "MAX (s)").
		Rows(cells...).
		// row 0 is the header; data rows start at 1
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(out, t.Render())

	if hidden := len(rows) - len(shown); hidden > 0 {
		p.Fprintf(out, "(%d more rows)\n", hidden)
	}
}
