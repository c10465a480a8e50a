package main

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"trainplan/internal/pipeline"
	"trainplan/internal/ui"
)

const uiEventBuffer = 256

// errInterrupted is returned when the progress UI was closed before the
// batch finished.
var errInterrupted = errors.New("check interrupted")

type batchOutcome struct {
	results []*pipeline.Result
	err     error
}

func runBatchWithUI(ctx context.Context, title string, reqs []pipeline.Request, opts pipeline.Options, jobs int) ([]*pipeline.Result, error) {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name
	}
	return driveBatch(ctx, reqs, opts, jobs, uiEventBuffer, func(ctx context.Context, events <-chan pipeline.Event) error {
		model := ui.NewProgressModel(title, names, events)
		program := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
		_, err := program.Run()
		return err
	})
}

// driveBatch runs the batch while display consumes its events. Once display
// returns the remaining events are drained; if the batch is still running
// at that point it is cancelled and errInterrupted is reported.
func driveBatch(
	ctx context.Context,
	reqs []pipeline.Request,
	opts pipeline.Options,
	jobs, buffer int,
	display func(context.Context, <-chan pipeline.Event) error,
) ([]*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan pipeline.Event, buffer)
	outcomeCh := make(chan batchOutcome, 1)
	go func() {
		res, err := pipeline.ResolveBatch(ctx, reqs, opts, jobs, pipeline.ChannelSink{Ch: events})
		outcomeCh <- batchOutcome{results: res, err: err}
		close(events)
	}()

	uiErr := display(ctx, events)
	// дочитываем события, чтобы воркеры не заблокировались в OnEvent
	go func() {
		for range events {
		}
	}()

	var outcome batchOutcome
	select {
	case outcome = <-outcomeCh:
	default:
		cancel()
		outcome = <-outcomeCh
		if uiErr == nil {
			uiErr = errInterrupted
		}
	}
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
