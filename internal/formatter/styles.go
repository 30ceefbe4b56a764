package formatter

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF5F87", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: newBold(t).MarginBottom(1),
		ok:    newBold(s),
		err:   newBold(e),
		warn:  newStyle(w),
		help:  newStyle(h).Italic(true),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

// RenderRating colors a 0-100 rating by tier: green above 75, orange above
// 40, gray below. Unrated tracks render as a dash.
func RenderRating(value int, rated bool) string {
	if !rated {
		return styles.help.Render("-")
	}

	text := fmt.Sprintf("%d", value)
	switch {
	case value > 75:
		return styles.ok.Render(text)
	case value > 40:
		return styles.warn.Render(text)
	default:
		return styles.help.Render(text)
	}
}
