package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"selfprof/internal/ui"
	"selfprof/internal/workload"
)

type runOutcome struct {
	report *workload.Report
	err    error
}

// runWithUI executes the workload while a Bubble Tea program renders its
// progress to out.
func runWithUI(ctx context.Context, out io.Writer, title string, items []string, runner *workload.Runner, jobs int) (*workload.Report, error) {
	events := make(chan workload.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		rep, err := runner.Run(ctx, workload.Options{Jobs: jobs, Progress: workload.ChannelSink{Ch: events}})
		outcomeCh <- runOutcome{report: rep, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, items, events)
	program := tea.NewProgram(model, tea.WithOutput(out))
	_, uiErr := program.Run()
	// the program may stop before the runner does; keep the sink moving
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
