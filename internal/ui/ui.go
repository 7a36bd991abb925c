package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	JobListView ViewState = iota
	EntriesView
)

// Controller starts pipelines. Implementations must be safe to call from the TUI goroutine.
type Controller interface {
	SyncNow(i int)
	SyncAll()
	IsSyncing(i int) bool
}

// JobSource lists configured jobs in registry order.
type JobSource interface {
	Jobs() []*models.SyncJob
}

// PlaylistSource reads local playlist entries.
type PlaylistSource interface {
	GetByName(name string) (*models.LocalPlaylist, error)
	Entries(playlistID string) ([]string, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	jobs       JobSource
	playlists  PlaylistSource
	controller Controller
	updates    <-chan tasks.ProgressUpdate

	width     int
	height    int
	jobList   list.Model
	entryList list.Model
	bar       progress.Model
	loaded    []*models.SyncJob
	progress  map[int]jobProgress
	notice    string
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a TUI model. updates should be fed by a [tasks.ChannelObserver]
// subscribed to the scheduler that controller drives.
func NewModel(ctx context.Context, jobs JobSource, playlists PlaylistSource, controller Controller, updates <-chan tasks.ProgressUpdate) *Model {
	jobList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	jobList.Title = "nsync jobs"
	jobList.SetFilteringEnabled(false)
	jobList.SetShowHelp(false)

	entryList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	entryList.SetFilteringEnabled(false)
	entryList.SetShowHelp(false)

	return &Model{
		ctx:        ctx,
		view:       JobListView,
		jobs:       jobs,
		playlists:  playlists,
		controller: controller,
		updates:    updates,
		jobList:    jobList,
		entryList:  entryList,
		bar:        progress.New(progress.WithDefaultGradient()),
		progress:   make(map[int]jobProgress),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init loads the job list and starts listening for progress updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadJobs(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.jobList.SetSize(msg.Width-4, msg.Height-8)
		m.entryList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case JobListView:
			return m.handleJobListKeys(msg)
		case EntriesView:
			return m.handleEntriesKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgJobsLoaded:
		m.loaded = msg.data.([]*models.SyncJob)
		m.refreshItems()
		return m, nil

	case MsgEntriesLoaded:
		data := msg.data.(entriesLoaded)
		if data.err != nil {
			m.notice = fmt.Sprintf("Could not load '%s': %v", data.playlist, data.err)
			return m, nil
		}
		items := make([]list.Item, len(data.entries))
		for i, entry := range data.entries {
			items[i] = entryItem{position: i + 1, location: entry}
		}
		m.entryList.Title = fmt.Sprintf("Entries in '%s'", data.playlist)
		cmd := m.entryList.SetItems(items)
		m.entryList.ResetSelected()
		m.notice = ""
		m.view = EntriesView
		return m, cmd

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress[update.Job] = jobProgress{
			message: update.Message,
			percent: update.Percent,
			active:  !update.Done,
		}
		if update.Failed() && update.Job < len(m.loaded) {
			m.notice = fmt.Sprintf("Sync failed for '%s'", m.loaded[update.Job].TargetPlaylist)
		}
		if update.Done {
			return m, tea.Batch(m.loadJobs(), m.waitForProgress())
		}
		m.refreshItems()
		return m, m.waitForProgress()

	case MsgUpdatesClosed:
		m.updates = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case JobListView:
		return m.renderJobList()
	case EntriesView:
		return m.renderEntries()
	default:
		return ""
	}
}

func (m *Model) handleJobListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.sync):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			m.controller.SyncNow(item.index)
			m.notice = fmt.Sprintf("Sync requested for '%s'", item.job.TargetPlaylist)
		}
		return m, nil
	case key.Matches(msg, m.keys.syncAll):
		m.controller.SyncAll()
		m.notice = "Sync requested for all enabled jobs"
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.loadJobs()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			return m, m.loadEntries(item.job.TargetPlaylist)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jobList, cmd = m.jobList.Update(msg)
	return m, cmd
}

func (m *Model) handleEntriesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = JobListView
		return m, nil
	}

	var cmd tea.Cmd
	m.entryList, cmd = m.entryList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case JobListView:
		m.jobList, cmd = m.jobList.Update(msg)
	case EntriesView:
		m.entryList, cmd = m.entryList.Update(msg)
	}
	return m, cmd
}

func (m *Model) refreshItems() {
	items := make([]list.Item, len(m.loaded))
	for i, job := range m.loaded {
		p := m.progress[i]
		p.active = p.active && m.controller.IsSyncing(i)
		items[i] = jobItem{index: i, job: job, progress: p}
	}
	m.jobList.SetItems(items)
}

func (m *Model) loadJobs() tea.Cmd {
	return func() tea.Msg {
		return jobsLoadedMsg(m.jobs.Jobs())
	}
}

func (m *Model) loadEntries(name string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.playlists.GetByName(name)
		if err != nil {
			return entriesLoadedMsg(name, nil, err)
		}
		entries, err := m.playlists.Entries(playlist.ID())
		return entriesLoadedMsg(name, entries, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.updates
	ctx := m.ctx
	return func() tea.Msg {
		if updates == nil {
			return updatesClosedMsg()
		}
		select {
		case update, ok := <-updates:
			if !ok {
				return updatesClosedMsg()
			}
			return progressUpdateMsg(update)
		case <-ctx.Done():
			return updatesClosedMsg()
		}
	}
}

func (m *Model) renderJobList() string {
	out := m.jobList.View()

	if item, ok := m.jobList.SelectedItem().(jobItem); ok && item.progress.active {
		out += "\n\n" + m.bar.ViewAs(float64(item.progress.percent)/100)
	}
	if len(m.loaded) == 0 {
		out += "\n\n" + styles.warn.Render("No sync jobs configured. Add one with 'nsync jobs add'.")
	}
	if m.notice != "" {
		out += "\n\n" + styles.help.Render(m.notice)
	}

	return fmt.Sprintf("%s\n\n%s", out, m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) renderEntries() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.entryList.View(), m.help.ShortHelpView(helpKeys))
}
