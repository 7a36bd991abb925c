// Package ui implements a terminal status monitor using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [JobListView] : every sync job with its last status, live pipeline progress and a progress bar for the selected job
//  2. [EntriesView] : the entries of the selected job's local playlist
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel fed by a [tasks.ChannelObserver], so the scheduler is never blocked by rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, a, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
