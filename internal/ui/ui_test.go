package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
	"github.com/desertthunder/nsync/internal/tasks"
)

type fakeJobs struct{ jobs []*models.SyncJob }

func (f *fakeJobs) Jobs() []*models.SyncJob { return f.jobs }

type fakePlaylists struct {
	playlists map[string][]string
}

func (f *fakePlaylists) GetByName(name string) (*models.LocalPlaylist, error) {
	if _, ok := f.playlists[name]; !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	p := models.NewLocalPlaylist(0, name)
	p.SetID(name)
	return p, nil
}

func (f *fakePlaylists) Entries(id string) ([]string, error) {
	return f.playlists[id], nil
}

type fakeController struct {
	synced  []int
	all     int
	syncing map[int]bool
}

func (f *fakeController) SyncNow(i int)        { f.synced = append(f.synced, i) }
func (f *fakeController) SyncAll()             { f.all++ }
func (f *fakeController) IsSyncing(i int) bool { return f.syncing[i] }

func newTestModel(t *testing.T) (*Model, *fakeController, chan tasks.ProgressUpdate) {
	t.Helper()

	rock := models.NewSyncJob(0, "http://music.local:8080", "rock", "Rock", 60)
	rock.LastHash = "abc"
	jazz := models.NewSyncJob(1, "http://music.local:8080", "jazz", "Jazz", 30)
	jazz.Enabled = false

	controller := &fakeController{syncing: map[int]bool{}}
	updates := make(chan tasks.ProgressUpdate, 4)
	m := NewModel(context.Background(),
		&fakeJobs{jobs: []*models.SyncJob{rock, jazz}},
		&fakePlaylists{playlists: map[string][]string{"Rock": {"http://music.local:8080/stream/a.flac", "/music/b.mp3"}}},
		controller, updates)

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(m.loadJobs()())
	return m, controller, updates
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel(t *testing.T) {
	t.Run("resizes before anything is loaded", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeJobs{}, &fakePlaylists{}, &fakeController{syncing: map[int]bool{}}, nil)

		if _, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24}); cmd != nil {
			t.Error("expected no command from a resize")
		}
		if m.width != 80 || m.height != 24 {
			t.Errorf("expected 80x24, got %dx%d", m.width, m.height)
		}
		if view := m.View(); view == "" {
			t.Error("expected a rendered view")
		}
	})

	t.Run("lists jobs", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		if n := len(m.jobList.Items()); n != 2 {
			t.Fatalf("expected 2 items, got %d", n)
		}
		view := m.View()
		if !strings.Contains(view, "rock → Rock") || !strings.Contains(view, "jazz → Jazz (disabled)") {
			t.Errorf("view missing jobs:\n%s", view)
		}
	})

	t.Run("progress updates mark job active", func(t *testing.T) {
		m, controller, _ := newTestModel(t)
		controller.syncing[0] = true

		_, cmd := m.Update(progressUpdateMsg(tasks.ProgressUpdate{Job: 0, State: tasks.Downloading, Percent: 50, Message: "Downloading..."}))
		if cmd == nil {
			t.Error("expected a command to keep listening for updates")
		}

		item := m.jobList.Items()[0].(jobItem)
		if !item.progress.active || item.progress.percent != 50 {
			t.Errorf("unexpected progress %+v", item.progress)
		}
		if !strings.Contains(m.View(), "Downloading... 50%") {
			t.Errorf("view missing progress:\n%s", m.View())
		}
	})

	t.Run("completion clears active state", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Job: 0, Percent: 100, Message: tasks.StatusNoChange, Done: true}))
		m.Update(m.loadJobs()())

		item := m.jobList.Items()[0].(jobItem)
		if item.progress.active {
			t.Error("job should not be active after completion")
		}
		if !strings.Contains(item.Description(), "last run: OK (No Change)") {
			t.Errorf("unexpected description %q", item.Description())
		}
	})

	t.Run("failed completion shows notice", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Job: 0, Percent: 100, Message: tasks.StatusError, Done: true}))
		if m.notice != "Sync failed for 'Rock'" {
			t.Errorf("unexpected notice %q", m.notice)
		}

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Job: 5, Percent: 100, Message: tasks.StatusError, Done: true}))
		if m.notice != "Sync failed for 'Rock'" {
			t.Errorf("out of range job changed notice to %q", m.notice)
		}
	})

	t.Run("sync keys drive the controller", func(t *testing.T) {
		m, controller, _ := newTestModel(t)

		m.Update(keyPress("s"))
		m.Update(keyPress("a"))

		if len(controller.synced) != 1 || controller.synced[0] != 0 {
			t.Errorf("expected SyncNow(0), got %v", controller.synced)
		}
		if controller.all != 1 {
			t.Errorf("expected one SyncAll, got %d", controller.all)
		}
	})

	t.Run("enter shows entries and esc returns", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		_, cmd := m.Update(keyPress("enter"))
		if cmd == nil {
			t.Fatal("expected a command to load entries")
		}
		m.Update(cmd())

		if m.view != EntriesView {
			t.Fatalf("expected entries view, got %d", m.view)
		}
		if n := len(m.entryList.Items()); n != 2 {
			t.Errorf("expected 2 entries, got %d", n)
		}
		if !strings.Contains(m.View(), "1. a") {
			t.Errorf("view missing entry title:\n%s", m.View())
		}

		m.Update(keyPress("esc"))
		if m.view != JobListView {
			t.Errorf("expected job list view after esc, got %d", m.view)
		}
	})

	t.Run("missing playlist shows notice", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		m.Update(keyPress("j"))

		_, cmd := m.Update(keyPress("enter"))
		m.Update(cmd())

		if m.view != JobListView {
			t.Errorf("expected to stay on job list, got %d", m.view)
		}
		if !strings.Contains(m.notice, "Could not load 'Jazz'") {
			t.Errorf("unexpected notice %q", m.notice)
		}
	})

	t.Run("closed updates channel stops listening", func(t *testing.T) {
		m, _, updates := newTestModel(t)
		close(updates)

		msg := m.waitForProgress()()
		if got := msg.(Msg).kind; got != MsgUpdatesClosed {
			t.Fatalf("expected MsgUpdatesClosed, got %d", got)
		}
		m.Update(msg)
		if m.updates != nil {
			t.Error("expected updates channel to be dropped")
		}
	})

	t.Run("quit", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		_, cmd := m.Update(keyPress("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}
