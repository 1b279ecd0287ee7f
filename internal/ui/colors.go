package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/evalwatch/internal/presenter"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	panel lipgloss.Style

	tones map[presenter.Tone]string
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		panel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(1, 2),
		tones: map[presenter.Tone]string{
			presenter.TonePrimary: t,
			presenter.ToneSuccess: s,
			presenter.ToneDanger:  e,
			presenter.ToneWarning: w,
		},
	}
}

// Color returns the hex color of a progress tone.
func (p *Palette) Color(tone presenter.Tone) string {
	if c, ok := p.tones[tone]; ok {
		return c
	}
	return p.tones[presenter.TonePrimary]
}

// Tone returns the bold text style of a progress tone.
func (p *Palette) Tone(tone presenter.Tone) lipgloss.Style {
	return NewBold(p.Color(tone))
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
