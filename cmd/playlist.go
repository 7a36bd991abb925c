package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nsync/internal/artwork"
	"github.com/desertthunder/nsync/internal/formatter"
	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
)

// PlaylistList prints every local playlist with its entry count.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	playlists, err := r.playlists.List(nil)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	if len(playlists) == 0 {
		return r.writePlain("No local playlists.\n")
	}

	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENTRIES\tUPDATED")
	for _, p := range playlists {
		entries, err := r.playlists.Entries(p.ID())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name(), len(entries), p.UpdatedAt().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// PlaylistShow prints the entries of a local playlist in order.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	export, err := r.loadExport(cmd.StringArg("name"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Name    string   `json:"name"`
			Entries []string `json:"entries"`
		}{export.Playlist.Name(), export.Entries}, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d entries)", export.Playlist.Name(), len(export.Entries)))
	for i, location := range export.Entries {
		if err := r.writePlain("%3d. %s\n     %s\n", i+1, formatter.EntryTitle(location), location); err != nil {
			return err
		}
	}
	return nil
}

// PlaylistExport writes a local playlist to a file. Markdown exports go to a directory
// and may include the cover of the first entry that has one.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	export, err := r.loadExport(cmd.StringArg("name"))
	if err != nil {
		return err
	}

	if format != formatter.Markdown {
		path, err := formatter.WriteExport(export, format, cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writePlain("Exported %d entries to %s\n", len(export.Entries), path)
	}

	var cover []byte
	if cmd.Bool("cover") {
		cover = r.exportCover(ctx, export.Entries)
	}

	result, err := formatter.WriteMarkdownExport(export, cmd.String("output"), cover)
	if err != nil {
		return err
	}

	r.writePlain("Exported %d entries to %s\n", len(export.Entries), result.Directory)
	for _, file := range result.Files {
		r.writePlain("  %s\n", file)
	}
	return nil
}

func (r *Runner) loadExport(name string) (*models.PlaylistExport, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return nil, err
	}

	playlist, err := r.playlists.GetByName(name)
	if err != nil {
		return nil, err
	}
	entries, err := r.playlists.Entries(playlist.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return &models.PlaylistExport{Playlist: playlist, Entries: entries}, nil
}

// exportCover returns the front cover for the playlist, or nil when none is available.
func (r *Runner) exportCover(ctx context.Context, entries []string) []byte {
	logger := shared.WithLogger(r.logger, "component", "artwork")
	resolver := artwork.NewResolverFromConfig(r.config, r.client(), logger)
	defer resolver.Shutdown()

	extractor, err := resolver.Fallback(ctx, entries)
	if err != nil {
		logger.Warn("no stream URL to take a cover from", "err", err)
		return nil
	}

	cover, err := extractor.Query(ctx, artwork.FrontCover)
	if errors.Is(err, artwork.ErrNotFound) {
		logger.Info("playlist has no cover", "url", extractor.ArtworkURL())
		return nil
	}
	if err != nil {
		logger.Warn("failed to fetch cover", "err", err)
		return nil
	}
	return cover
}
