package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/nsync/internal/formatter"
	"github.com/desertthunder/nsync/internal/models"
)

var (
	_ list.Item = jobItem{}
	_ list.Item = entryItem{}
)

// jobProgress is the latest observer notification for one job.
type jobProgress struct {
	message string
	percent int
	active  bool
}

// jobItem wraps [models.SyncJob] to implement [list.Item].
type jobItem struct {
	index    int
	job      *models.SyncJob
	progress jobProgress
}

func (i jobItem) FilterValue() string { return i.job.TargetPlaylist }
func (i jobItem) Title() string {
	title := fmt.Sprintf("%s → %s", i.job.PlaylistEndpoint, i.job.TargetPlaylist)
	if !i.job.Enabled {
		title += " (disabled)"
	}
	return title
}
func (i jobItem) Description() string {
	if i.progress.active {
		return styles.status(fmt.Sprintf("%s %d%%", i.progress.message, i.progress.percent), true)
	}
	line := i.job.Status()
	if i.progress.message != "" {
		line = fmt.Sprintf("%s • last run: %s", line, i.progress.message)
	}
	return styles.status(line, false) + fmt.Sprintf(" • every %ds • %s", i.job.PollIntervalSeconds, i.job.ServerURL)
}

// entryItem wraps one playlist location to implement [list.Item].
type entryItem struct {
	position int
	location string
}

func (i entryItem) FilterValue() string { return i.location }
func (i entryItem) Title() string {
	return fmt.Sprintf("%d. %s", i.position, formatter.EntryTitle(i.location))
}
func (i entryItem) Description() string { return i.location }
