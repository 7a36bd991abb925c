package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nsync/internal/artwork"
	"github.com/desertthunder/nsync/internal/shared"
	"github.com/desertthunder/nsync/internal/tasks"
)

// RemoteStatus checks every server given with --server, or every distinct server used
// by a job when none is given.
func (r *Runner) RemoteStatus(ctx context.Context, cmd *cli.Command) error {
	servers := cmd.StringSlice("server")
	if len(servers) == 0 {
		if err := r.open(); err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, job := range r.registry.Jobs() {
			if !seen[job.ServerURL] {
				seen[job.ServerURL] = true
				servers = append(servers, job.ServerURL)
			}
		}
	}
	if len(servers) == 0 {
		return fmt.Errorf("%w: no --server given and no sync jobs configured", shared.ErrMissingArgument)
	}

	checks := tasks.CheckServers(ctx, nil, r.client(), servers, tasks.CheckOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})

	down := 0
	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tSTATUS\tPLAYLISTS\tLATENCY")
	for _, check := range checks {
		if check.Err != nil {
			down++
			fmt.Fprintf(w, "%s\t%s\t-\t-\n", check.ServerURL, check.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", check.ServerURL, tasks.StatusOK, len(check.Playlists), check.Latency.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if down > 0 {
		return fmt.Errorf("%w: %d of %d server(s) unreachable", shared.ErrTransport, down, len(checks))
	}
	return nil
}

// RemoteList prints the playlists a server publishes.
func (r *Runner) RemoteList(ctx context.Context, cmd *cli.Command) error {
	serverURL := strings.TrimSpace(cmd.String("server"))
	names, err := r.client().List(ctx, serverURL)
	if err != nil {
		return fmt.Errorf("failed to list playlists on %s: %w", serverURL, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(names, true)
	}

	if len(names) == 0 {
		return r.writePlain("%s publishes no playlists.\n", serverURL)
	}
	for _, name := range names {
		if err := r.writePlain("%s\n", name); err != nil {
			return err
		}
	}
	return nil
}

// ArtworkGet writes the artwork of the first stream URL that has one.
func (r *Runner) ArtworkGet(ctx context.Context, cmd *cli.Command) error {
	kind, err := artwork.ParseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	resolver := artwork.NewResolverFromConfig(r.config, r.client(), shared.WithLogger(r.logger, "component", "artwork"))
	defer resolver.Shutdown()

	for _, location := range cmd.StringArgs("urls") {
		extractor, err := resolver.Open(location)
		if err != nil {
			r.logger.Warn("skipping location", "location", location, "err", err)
			continue
		}

		data, err := extractor.Query(ctx, kind)
		if errors.Is(err, artwork.ErrNotFound) {
			r.logger.Debug("no artwork", "location", location)
			continue
		}
		if err != nil {
			return err
		}

		output := cmd.String("output")
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write artwork: %w", err)
		}
		return r.writePlain("Saved %s artwork (%d bytes) from %s to %s\n", kind, len(data), extractor.ArtworkURL(), output)
	}

	return fmt.Errorf("%s cover: %w", kind, artwork.ErrNotFound)
}
