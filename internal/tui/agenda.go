package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/domain"
)

// minAgendaWrap keeps glamour from wrapping agenda lines into single words.
const minAgendaWrap = 24

// agendaRenderer turns the card list into styled agenda text, rebuilding the
// glamour renderer only when the wrap width changes.
type agendaRenderer struct {
	style    string
	wrap     int
	renderer *glamour.TermRenderer
}

func newAgendaRenderer() *agendaRenderer {
	return &agendaRenderer{style: "dark"}
}

// render returns the agenda for cards. It falls back to the raw markdown when
// glamour cannot style it.
func (r *agendaRenderer) render(title string, cards []domain.Card, width int) string {
	md := app.AgendaMarkdown(title, cards)
	wrap := max(width, minAgendaWrap)
	if r.renderer == nil || r.wrap != wrap {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return md
		}
		r.renderer = renderer
		r.wrap = wrap
	}
	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

// RenderAgenda renders cards as a styled week agenda for terminal output.
func RenderAgenda(title string, cards []domain.Card, width int) string {
	return newAgendaRenderer().render(title, cards, width)
}
