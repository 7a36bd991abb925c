package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nsync/internal/dispatch"
	"github.com/desertthunder/nsync/internal/shared"
	"github.com/desertthunder/nsync/internal/tasks"
	"github.com/desertthunder/nsync/internal/ui"
)

// dispatchedController hands TUI requests to the scheduler's dispatcher goroutine.
type dispatchedController struct {
	scheduler  *tasks.Scheduler
	dispatcher dispatch.Dispatcher
}

func (c dispatchedController) SyncNow(i int) {
	c.dispatcher.Dispatch(func() { c.scheduler.SyncNow(i) })
}

func (c dispatchedController) SyncAll() {
	c.dispatcher.Dispatch(c.scheduler.SyncAll)
}

func (c dispatchedController) IsSyncing(i int) bool {
	return c.scheduler.IsSyncing(i)
}

// TUI launches the live status monitor. The scheduler runs for as long as it is open.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/nsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	if err := r.open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := dispatch.NewLoop()
	go loop.Run(ctx)
	defer loop.Close()

	sched := r.newScheduler(loop)
	updates := make(chan tasks.ProgressUpdate, 64)
	sched.Subscribe(tasks.NewChannelObserver(updates))
	sched.Start(ctx)

	model := ui.NewModel(ctx, r.registry, r.playlists, dispatchedController{scheduler: sched, dispatcher: loop}, updates)
	p := tea.NewProgram(model)

	_, err = p.Run()
	sched.Stop()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
