package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/desertthunder/nsync/internal/dispatch"
	"github.com/desertthunder/nsync/internal/metrics"
	"github.com/desertthunder/nsync/internal/server"
	"github.com/desertthunder/nsync/internal/shared"
	"github.com/desertthunder/nsync/internal/tasks"
)

// SyncNow runs the pipeline once for one job or for every enabled job, drawing a
// progress bar per job.
func (r *Runner) SyncNow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	target := strings.TrimSpace(cmd.StringArg("target"))
	indices, err := r.syncTargets(target)
	if err != nil {
		return err
	}
	if len(indices) == 0 {
		return r.writePlain("No enabled sync jobs.\n")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loop := dispatch.NewLoop()
	go loop.Run(loopCtx)
	defer loop.Close()

	sched := r.newScheduler(loop)

	progress := mpb.NewWithContext(ctx, mpb.WithOutput(r.output), mpb.WithWidth(40))
	bars := make(map[int]*mpb.Bar, len(indices))
	var labels sync.Map
	for _, i := range indices {
		job, err := r.registry.Job(i)
		if err != nil {
			return err
		}
		name := job.TargetPlaylist
		labels.Store(i, "Queued")
		bars[i] = progress.New(100,
			mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
				decor.Any(func(decor.Statistics) string {
					label, _ := labels.Load(i)
					return label.(string)
				}, decor.WC{W: 22, C: decor.DindentRight}),
			),
			mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
		)
	}

	var mu sync.Mutex
	results := make(map[int]string, len(indices))
	done := make(chan struct{})
	sched.Subscribe(tasks.ObserverFuncs{
		Progress: func(i int, status string, percent int) {
			if bar, ok := bars[i]; ok {
				labels.Store(i, status)
				bar.SetCurrent(int64(percent))
			}
		},
		Complete: func(i int, status string) {
			bar, ok := bars[i]
			if !ok {
				return
			}
			labels.Store(i, status)
			bar.SetCurrent(100)

			mu.Lock()
			defer mu.Unlock()
			results[i] = status
			if len(results) == len(indices) {
				close(done)
			}
		},
	})

	loop.Dispatch(func() {
		if target == "all" {
			sched.SyncAll()
			return
		}
		for _, i := range indices {
			sched.SyncNow(i)
		}
	})

	select {
	case <-done:
	case <-ctx.Done():
	}
	for _, bar := range bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	progress.Wait()

	mu.Lock()
	defer mu.Unlock()

	failed := 0
	r.writePlain("\n")
	for _, i := range indices {
		job, err := r.registry.Job(i)
		if err != nil {
			continue
		}
		status, ok := results[i]
		if !ok {
			status = "Cancelled"
		}
		if status != tasks.StatusOK && status != tasks.StatusNoChange {
			failed++
		}
		if status == tasks.StatusError && job.LastError != "" {
			status = fmt.Sprintf("%s: %s", status, job.LastError)
		}
		r.writePlain("[%d] %s: %s\n", i, job.TargetPlaylist, status)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d job(s)", shared.ErrSyncFailed, failed, len(indices))
	}
	return nil
}

// syncTargets resolves "all" to the enabled jobs and anything else to a single index.
func (r *Runner) syncTargets(target string) ([]int, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: job index or 'all'", shared.ErrMissingArgument)
	}

	if target == "all" {
		var indices []int
		for i, job := range r.registry.Jobs() {
			if job.Enabled {
				indices = append(indices, i)
			}
		}
		return indices, nil
	}

	i, err := strconv.Atoi(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a job index", shared.ErrInvalidArgument, target)
	}
	if _, err := r.registry.Job(i); err != nil {
		return nil, fmt.Errorf("job %d: %w", i, err)
	}
	return []int{i}, nil
}

// Run starts the scheduler and, unless disabled, the status server, then blocks until
// the context ends or the process receives SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := dispatch.NewLoop()
	go loop.Run(ctx)
	defer loop.Close()

	sched := r.newScheduler(loop)
	sched.Subscribe(tasks.ObserverFuncs{
		Complete: func(i int, status string) {
			if job, err := r.registry.Job(i); err == nil {
				r.logger.Info("sync complete", "job", i, "playlist", job.TargetPlaylist, "status", status)
			}
		},
	})

	if !cmd.Bool("no-server") {
		addr := cmd.String("addr")
		if addr == "" {
			addr = r.config.Server.Addr()
		}

		reg := prometheus.NewRegistry()
		metrics.Register(reg)
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		logger := shared.WithLogger(r.logger, "component", "server")
		status := server.NewStatusHandler(r.registry, sched)
		sched.Subscribe(status)

		srv := server.New(addr, server.NewStatusRouter(status, reg, logger), logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	sched.Start(ctx)
	<-ctx.Done()

	sched.Stop()
	sched.Wait()
	return nil
}
