package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"uitest/internal/report"
	"uitest/internal/runner"
	"uitest/internal/suite"
	"uitest/internal/ui"
)

// runWithUI runs cases with the progress view attached. The runner sends
// events on a channel that is closed once RunAll returns; the view quits on
// that close. Quitting the view early (ctrl+c) cancels the run.
func runWithUI(ctx context.Context, r *runner.Runner, title string, cases []*suite.TestCase) (*report.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan runner.Event, 256)
	outcome := make(chan *report.Report, 1)

	go func() {
		rep := r.WithSink(runner.ChannelSink{Ch: events}).RunAll(ctx, cases)
		outcome <- rep
		close(events)
	}()

	ids := make([]string, len(cases))
	for i, tc := range cases {
		ids[i] = tc.ID
	}
	model := ui.NewProgressModel(title, ids, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	cancel()
	// представление больше не читает; дочитываем, чтобы раннер не встал
	go func() {
		for range events {
		}
	}()
	rep := <-outcome
	return rep, uiErr
}
