package app

import (
	"fmt"
	"strings"

	"github.com/evanschultz/weekgrid/internal/domain"
)

// AgendaMarkdown renders cards as a markdown agenda grouped by day.
func AgendaMarkdown(title string, cards []domain.Card) string {
	sorted := append([]domain.Card(nil), cards...)
	sortCards(sorted)

	var b strings.Builder
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Week"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	idx := 0
	for col := domain.FirstDayColumn; col <= domain.LastDayColumn; col++ {
		fmt.Fprintf(&b, "\n## %s\n\n", domain.DayName(col))
		wrote := false
		for idx < len(sorted) && sorted[idx].Col == col {
			card := sorted[idx]
			fmt.Fprintf(&b, "- **%s-%s** %s\n",
				domain.ClockLabel(card.TopRowFrac),
				domain.ClockLabel(card.BottomRowFrac()),
				agendaText(card.Text),
			)
			wrote = true
			idx++
		}
		if !wrote {
			b.WriteString("_free_\n")
		}
	}
	return b.String()
}

// agendaText flattens card text onto one markdown list line.
func agendaText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "_(empty)_"
	}
	return text
}
