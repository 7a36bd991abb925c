// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first-run setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the newest schema migration",
				Action: r.SetupRollback,
			},
		},
	}
}

func jobFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "server",
			Aliases:  []string{"s"},
			Usage:    "Playlist server base URL (http or https)",
			Required: required,
		},
		&cli.StringFlag{
			Name:     "playlist",
			Aliases:  []string{"p"},
			Usage:    "Remote playlist name",
			Required: required,
		},
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "Local playlist to keep in sync (defaults to the remote name)",
		},
		&cli.IntFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "Poll interval in seconds, at least 10 (defaults to the configured default interval)",
		},
	}
}

// jobsCommand edits the job registry.
func jobsCommand(r *Runner) *cli.Command {
	index := []cli.Argument{&cli.IntArg{Name: "index", Value: -1}}

	return &cli.Command{
		Name:  "jobs",
		Usage: "Manage sync jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sync jobs in order",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.JobsList,
			},
			{
				Name:  "add",
				Usage: "Add a sync job",
				Flags: append(jobFlags(true), &cli.BoolFlag{
					Name:  "disabled",
					Usage: "Create the job without enabling it",
				}),
				Action: r.JobsAdd,
			},
			{
				Name:      "edit",
				Usage:     "Change fields of a sync job",
				Arguments: index,
				Flags:     jobFlags(false),
				Action:    r.JobsEdit,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a sync job",
				Arguments: index,
				Action:    r.JobsRemove,
			},
			{
				Name:      "enable",
				Usage:     "Enable a sync job",
				Arguments: index,
				Action:    r.JobsEnable,
			},
			{
				Name:      "disable",
				Usage:     "Disable a sync job",
				Arguments: index,
				Action:    r.JobsDisable,
			},
		},
	}
}

// settingsCommand shows and changes the global sync settings.
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Global sync settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show global settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.SettingsShow,
			},
			{
				Name:  "set",
				Usage: "Change global settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "enabled", Usage: "Turn scheduled syncing on or off"},
					&cli.IntFlag{Name: "default-interval", Usage: "Poll interval in seconds for new jobs, at least 10"},
				},
				Action: r.SettingsSet,
			},
		},
	}
}

// syncCommand runs pipelines once in the foreground.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run sync pipelines once",
		Commands: []*cli.Command{
			{
				Name:      "now",
				Usage:     "Sync one job by index, or every enabled job with 'all'",
				Arguments: []cli.Argument{&cli.StringArg{Name: "target"}},
				Action:    r.SyncNow,
			},
		},
	}
}

// runCommand starts the scheduler daemon.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the scheduler until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Serve /healthz, /jobs and /metrics on this address (defaults to [server] host:port)",
			},
			&cli.BoolFlag{
				Name:  "no-server",
				Usage: "Do not start the status server",
			},
		},
		Action: r.Run,
	}
}

// remoteCommand queries playlist servers directly.
func remoteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Query playlist servers",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Check that servers are reachable (defaults to every server used by a job)",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "server", Aliases: []string{"s"}, Usage: "Server base URL, repeatable"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent checks", Value: 4},
					&cli.FloatFlag{Name: "rate", Usage: "Checks per second", Value: 10},
				},
				Action: r.RemoteStatus,
			},
			{
				Name:  "list",
				Usage: "List playlists published by a server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "Server base URL", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.RemoteList,
			},
		},
	}
}

// artworkCommand resolves track artwork through the cache.
func artworkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artwork",
		Usage: "Track artwork",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Download artwork for one or more stream URLs (the first that has one wins)",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "urls", Min: 1, Max: -1}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path", Value: "cover.jpg"},
					&cli.StringFlag{Name: "kind", Usage: "Artwork kind (front, back, disc, artist)", Value: "front"},
				},
				Action: r.ArtworkGet,
			},
		},
	}
}

// playlistCommand inspects and exports local playlists.
func playlistCommand(r *Runner) *cli.Command {
	name := []cli.Argument{&cli.StringArg{Name: "name"}}

	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Local playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List local playlists",
				Action: r.PlaylistList,
			},
			{
				Name:      "show",
				Usage:     "Print the entries of a local playlist",
				Arguments: name,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:      "export",
				Usage:     "Export a local playlist to a file",
				Arguments: name,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "m3u8, csv, txt or md", Value: "m3u8"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (directory for md)"},
					&cli.BoolFlag{Name: "cover", Usage: "Download the front cover into a Markdown export"},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for monitoring sync jobs.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Live status monitor; runs the scheduler while open",
		Action:  r.TUI,
	}
}
