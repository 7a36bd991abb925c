// Package reconcile makes a local playlist match a downloaded manifest with as few
// edits as possible.
//
// Entries are compared case-insensitively using Unicode case folding. Entries present
// in both keep their position; stale entries are removed first, then new ones are
// appended in manifest order.
package reconcile

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nsync/internal/metrics"
	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
)

// PlaylistStore is the local playlist API. [repositories.LocalPlaylistRepository] implements it.
type PlaylistStore interface {
	GetByName(name string) (*models.LocalPlaylist, error)
	Create(playlist *models.LocalPlaylist) error
	Entries(playlistID string) ([]string, error)
	RemoveEntries(playlistID string, mask []bool) error
	AddEntries(playlistID string, locations []string) error
}

// Result describes what a reconciliation changed.
type Result struct {
	Playlist *models.LocalPlaylist // nil when Skipped
	Created  bool
	Added    []string
	Removed  []string
	Kept     int
	Skipped  bool // manifest was empty; nothing was touched
}

// Changed reports whether the playlist's contents were modified.
func (r Result) Changed() bool {
	return r.Created || len(r.Added) > 0 || len(r.Removed) > 0
}

type Reconciler struct {
	store  PlaylistStore
	logger *log.Logger
}

func New(store PlaylistStore, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile updates the playlist called name so its entries equal entries.
//
// An empty manifest is treated as a transient server problem: the playlist is neither
// created nor modified and the result is marked Skipped.
func (r *Reconciler) Reconcile(name string, entries []string) (Result, error) {
	if len(entries) == 0 {
		r.logger.Warn("manifest is empty, leaving playlist untouched", "playlist", name)
		return Result{Skipped: true}, nil
	}

	playlist, created, err := r.findOrCreate(name)
	if err != nil {
		return Result{}, err
	}

	desired := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		desired[shared.FoldKey(entry)] = struct{}{}
	}

	current, err := r.store.Entries(playlist.ID())
	if err != nil {
		return Result{}, fmt.Errorf("failed to read playlist %q: %w", name, err)
	}

	result := Result{Playlist: playlist, Created: created}
	existing := make(map[string]struct{}, len(current))
	mask := make([]bool, len(current))
	for i, entry := range current {
		key := shared.FoldKey(entry)
		existing[key] = struct{}{}
		if _, ok := desired[key]; !ok {
			mask[i] = true
			result.Removed = append(result.Removed, entry)
		}
	}
	result.Kept = len(current) - len(result.Removed)

	for _, entry := range entries {
		key := shared.FoldKey(entry)
		if _, ok := existing[key]; ok {
			continue
		}
		existing[key] = struct{}{}
		result.Added = append(result.Added, entry)
	}

	if len(result.Removed) > 0 {
		if err := r.store.RemoveEntries(playlist.ID(), mask); err != nil {
			return Result{}, fmt.Errorf("failed to remove entries from %q: %w", name, err)
		}
	}
	if len(result.Added) > 0 {
		if err := r.store.AddEntries(playlist.ID(), result.Added); err != nil {
			return Result{}, fmt.Errorf("failed to add entries to %q: %w", name, err)
		}
	}

	metrics.ReconcileEntriesTotal.WithLabelValues("added").Add(float64(len(result.Added)))
	metrics.ReconcileEntriesTotal.WithLabelValues("removed").Add(float64(len(result.Removed)))
	r.logger.Info("playlist reconciled",
		"playlist", name, "added", len(result.Added), "removed", len(result.Removed), "kept", result.Kept)

	return result, nil
}

func (r *Reconciler) findOrCreate(name string) (*models.LocalPlaylist, bool, error) {
	playlist, err := r.store.GetByName(name)
	if err == nil {
		return playlist, false, nil
	}
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return nil, false, fmt.Errorf("failed to look up playlist %q: %w", name, err)
	}

	playlist = models.NewLocalPlaylist(0, name)
	if err := r.store.Create(playlist); err != nil {
		return nil, false, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	r.logger.Info("created playlist", "playlist", name)
	return playlist, true, nil
}
