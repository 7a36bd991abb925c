package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nsync/internal/dispatch"
	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/registry"
	"github.com/desertthunder/nsync/internal/repositories"
	"github.com/desertthunder/nsync/internal/services"
	"github.com/desertthunder/nsync/internal/shared"
	"github.com/desertthunder/nsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.Service
	db         *sql.DB
	registry   *registry.Registry
	playlists  *repositories.LocalPlaylistRepository
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.Service
	DB         *sql.DB // Migrated database; opened from Config when nil
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		db:         opts.DB,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, jobsCommand, settingsCommand, syncCommand, runCommand,
		remoteCommand, artworkCommand, playlistCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and the services they build.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// client returns the injected service or builds one from the [http] config section.
func (r *Runner) client() services.Service {
	if r.service == nil {
		r.service = services.NewClientFromConfig(r.config.HTTP, shared.WithLogger(r.logger, "component", "http"))
	}
	return r.service
}

// open loads the job registry and playlist store, opening the database on first use.
func (r *Runner) open() error {
	if r.registry != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return err
		}
		r.db = db
	}

	defaults := models.Settings{Enabled: r.config.Sync.Enabled, DefaultInterval: r.config.Sync.DefaultInterval}
	reg, err := registry.New(r.db, defaults)
	if err != nil {
		return fmt.Errorf("failed to load sync jobs: %w", err)
	}

	r.registry = reg
	r.playlists = repositories.NewLocalPlaylistRepository(r.db)
	return nil
}

// Close releases the database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.registry, r.playlists = nil, nil, nil
	return err
}

// newScheduler builds a scheduler over the open registry whose transitions run on d.
func (r *Runner) newScheduler(d dispatch.Dispatcher) *tasks.Scheduler {
	return tasks.NewScheduler(tasks.SchedulerOpts{
		Registry:   r.registry,
		Service:    r.client(),
		Dispatcher: d,
		Playlists:  r.playlists,
		Logger:     shared.WithLogger(r.logger, "component", "scheduler"),
		Tick:       r.config.TickDuration(),
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
