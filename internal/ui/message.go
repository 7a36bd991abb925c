package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgJobsLoaded MsgKind = iota
	MsgEntriesLoaded
	MsgProgressUpdate
	MsgUpdatesClosed
)

type entriesLoaded struct {
	playlist string
	entries  []string
	err      error
}

// jobsLoadedMsg is the constructor for [MsgJobsLoaded]
func jobsLoadedMsg(jobs []*models.SyncJob) Msg {
	return Msg{kind: MsgJobsLoaded, data: jobs}
}

// entriesLoadedMsg is the constructor for [MsgEntriesLoaded]
func entriesLoadedMsg(playlist string, entries []string, err error) Msg {
	return Msg{kind: MsgEntriesLoaded, data: entriesLoaded{playlist, entries, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}
