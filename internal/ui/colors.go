package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262", "#00AFFF")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	busy  lipgloss.Style
}

func NewPalette(t, s, e, w, h, b string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		busy:  NewStyle(b),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// status picks the style for a job status line.
func (p *Palette) status(line string, syncing bool) string {
	switch {
	case syncing:
		return p.busy.Render(line)
	case line == "Never synced":
		return p.help.Render(line)
	case strings.HasPrefix(line, "Error"):
		return p.err.Render(line)
	default:
		return p.ok.Render(line)
	}
}
