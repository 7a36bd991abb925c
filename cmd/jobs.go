package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// jobView is the JSON shape of a job in command output.
type jobView struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	ServerURL string `json:"server_url"`
	Playlist  string `json:"playlist_endpoint"`
	Target    string `json:"target_playlist"`
	Enabled   bool   `json:"enabled"`
	Interval  int    `json:"poll_interval_seconds"`
	LastHash  string `json:"last_hash,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Status    string `json:"status"`
}

func newJobView(i int, job *models.SyncJob) jobView {
	return jobView{
		Index:     i,
		ID:        job.ID(),
		ServerURL: job.ServerURL,
		Playlist:  job.PlaylistEndpoint,
		Target:    job.TargetPlaylist,
		Enabled:   job.Enabled,
		Interval:  job.PollIntervalSeconds,
		LastHash:  job.LastHash,
		LastError: job.LastError,
		Status:    job.Status(),
	}
}

// JobsList prints every job in registry order.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	jobs := r.registry.Jobs()
	if cmd.Bool("json") {
		views := make([]jobView, len(jobs))
		for i, job := range jobs {
			views[i] = newJobView(i, job)
		}
		return r.writeJSON(views, true)
	}

	if len(jobs) == 0 {
		return r.writePlain("No sync jobs configured. Add one with 'nsync jobs add'.\n")
	}

	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSERVER\tPLAYLIST\tTARGET\tINTERVAL\tENABLED\tSTATUS")
	for i, job := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%ds\t%t\t%s\n",
			i, job.ServerURL, job.PlaylistEndpoint, job.TargetPlaylist, job.PollIntervalSeconds, job.Enabled, job.Status())
	}
	return w.Flush()
}

// JobsAdd appends a job. The interval defaults to the persisted default interval.
func (r *Runner) JobsAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	playlist := cmd.String("playlist")
	target := cmd.String("target")
	if strings.TrimSpace(target) == "" {
		target = playlist
	}
	interval := r.registry.DefaultInterval()
	if cmd.IsSet("interval") {
		interval = cmd.Int("interval")
	}

	job := models.NewSyncJob(r.registry.Count(), cmd.String("server"), playlist, target, interval)
	job.Enabled = !cmd.Bool("disabled")

	i, err := r.registry.Add(job)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	r.logger.Info("job added", "index", i, "playlist", job.PlaylistEndpoint, "target", job.TargetPlaylist)
	return r.writePlain("✓ Added job %d: %s → %s (every %ds)\n", i, job.PlaylistURL(), job.TargetPlaylist, job.PollIntervalSeconds)
}

// JobsEdit changes only the fields whose flags were given.
func (r *Runner) JobsEdit(ctx context.Context, cmd *cli.Command) error {
	i, job, err := r.jobArg(cmd)
	if err != nil {
		return err
	}

	if cmd.IsSet("server") {
		job.ServerURL = strings.TrimSuffix(strings.TrimSpace(cmd.String("server")), "/")
	}
	if cmd.IsSet("playlist") {
		job.PlaylistEndpoint = strings.TrimSpace(cmd.String("playlist"))
	}
	if cmd.IsSet("target") {
		job.TargetPlaylist = strings.TrimSpace(cmd.String("target"))
	}
	if cmd.IsSet("interval") {
		job.PollIntervalSeconds = cmd.Int("interval")
	}

	if err := r.registry.Update(i, job); err != nil {
		return fmt.Errorf("failed to update job %d: %w", i, err)
	}
	return r.writePlain("✓ Updated job %d\n", i)
}

// JobsRemove deletes a job. Later jobs move up one index.
func (r *Runner) JobsRemove(ctx context.Context, cmd *cli.Command) error {
	i, job, err := r.jobArg(cmd)
	if err != nil {
		return err
	}
	if err := r.registry.Remove(i); err != nil {
		return fmt.Errorf("failed to remove job %d: %w", i, err)
	}
	return r.writePlain("✓ Removed job %d (%s)\n", i, job.TargetPlaylist)
}

func (r *Runner) JobsEnable(ctx context.Context, cmd *cli.Command) error {
	return r.setJobEnabled(cmd, true)
}

func (r *Runner) JobsDisable(ctx context.Context, cmd *cli.Command) error {
	return r.setJobEnabled(cmd, false)
}

func (r *Runner) setJobEnabled(cmd *cli.Command, enabled bool) error {
	i, _, err := r.jobArg(cmd)
	if err != nil {
		return err
	}
	if err := r.registry.Save(i, func(job *models.SyncJob) { job.Enabled = enabled }); err != nil {
		return fmt.Errorf("failed to save job %d: %w", i, err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return r.writePlain("✓ Job %d %s\n", i, state)
}

// jobArg resolves the index argument to a copy of the job.
func (r *Runner) jobArg(cmd *cli.Command) (int, *models.SyncJob, error) {
	if err := r.open(); err != nil {
		return 0, nil, err
	}
	i := cmd.IntArg("index")
	if i < 0 {
		return 0, nil, fmt.Errorf("%w: job index", shared.ErrMissingArgument)
	}
	job, err := r.registry.Job(i)
	if err != nil {
		return 0, nil, fmt.Errorf("job %d: %w", i, err)
	}
	return i, job, nil
}

type settingsView struct {
	Enabled         bool `json:"enabled"`
	DefaultInterval int  `json:"default_interval"`
	Jobs            int  `json:"jobs"`
}

// SettingsShow prints the global settings.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	settings := r.registry.Settings()
	view := settingsView{Enabled: settings.Enabled, DefaultInterval: settings.DefaultInterval, Jobs: r.registry.Count()}
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	r.writePlainHeader("Sync Settings")
	r.writePlain("Enabled:          %t\n", view.Enabled)
	r.writePlain("Default interval: %ds\n", view.DefaultInterval)
	return r.writePlain("Jobs:             %d\n", view.Jobs)
}

// SettingsSet changes the settings whose flags were given.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	if !cmd.IsSet("enabled") && !cmd.IsSet("default-interval") {
		return fmt.Errorf("%w: --enabled or --default-interval", shared.ErrMissingArgument)
	}

	if cmd.IsSet("default-interval") {
		if err := r.registry.SetDefaultInterval(cmd.Int("default-interval")); err != nil {
			return fmt.Errorf("failed to set default interval: %w", err)
		}
	}
	if cmd.IsSet("enabled") {
		if err := r.registry.SetEnabled(cmd.Bool("enabled")); err != nil {
			return fmt.Errorf("failed to set enabled: %w", err)
		}
	}

	settings := r.registry.Settings()
	return r.writePlain("✓ Settings saved (enabled=%t, default_interval=%ds)\n", settings.Enabled, settings.DefaultInterval)
}
