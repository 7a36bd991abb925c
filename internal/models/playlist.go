package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/nsync/internal/shared"
)

// LocalPlaylist is a named, ordered list of locations kept on this machine.
type LocalPlaylist struct {
	record

	name string
}

// NewLocalPlaylist creates an empty [LocalPlaylist] with the given sequence number.
func NewLocalPlaylist(sequence int, name string) *LocalPlaylist {
	return &LocalPlaylist{record: newRecord(sequence), name: name}
}

func (p *LocalPlaylist) Name() string { return p.name }

func (p *LocalPlaylist) SetName(name string) { p.name = name }

func (p *LocalPlaylist) Validate() error {
	if strings.TrimSpace(p.name) == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	return nil
}

// Settings holds the two persisted scalars that apply to every job.
type Settings struct {
	Enabled         bool
	DefaultInterval int
}

// PlaylistExport is a local playlist with its entries in order.
type PlaylistExport struct {
	Playlist *LocalPlaylist
	Entries  []string
}
