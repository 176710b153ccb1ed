package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/domain"
	"github.com/evanschultz/weekgrid/internal/grid"
	"github.com/evanschultz/weekgrid/internal/interact"
)

// Screen regions around the painted grid, in terminal cells.
const (
	titleHeight  = 1
	footerHeight = 2
	headerHeight = 1
	timeColWidth = 7
	minColWidth  = 6
	minRowHeight = 1
)

// menuMetrics sizes context menus in cells: a bordered box with one line per item.
var menuMetrics = interact.MenuMetrics{Width: 18, ItemHeight: 1, Padding: 1}

// Model represents model data used by this package.
type Model struct {
	store interact.CardStore
	ctl   *interact.Controller

	keys   keyMap
	help   help.Model
	editor textinput.Model
	agenda *agendaRenderer

	title      string
	width      int
	height     int
	ready      bool
	layout     grid.Measured
	status     string
	warning    bool
	showAgenda bool
	editingID  string

	dragThreshold  float64
	editDelay      time.Duration
	writeClipboard func(string) error
	logger         app.Logger
}

// attachedMsg marks the view as mounted so shortcuts can be attached.
type attachedMsg struct{}

// beginEditMsg opens the editor for a card once the create menu has closed.
type beginEditMsg struct {
	cardID string
}

// NewModel constructs a new value for this package.
func NewModel(store interact.CardStore, opts ...Option) Model {
	editor := textinput.New()
	editor.Prompt = ""
	editor.Placeholder = "card text"
	editor.CharLimit = 240

	m := Model{
		store:          store,
		keys:           newKeyMap(),
		help:           help.New(),
		editor:         editor,
		agenda:         newAgendaRenderer(),
		title:          "weekgrid",
		status:         "loading",
		dragThreshold:  1,
		editDelay:      50 * time.Millisecond,
		writeClipboard: clipboard.WriteAll,
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.ctl = interact.NewController(store, interact.Config{
		DragThreshold: m.dragThreshold,
		HandleSize:    1,
		HitBox:        grid.Rect.Cells,
		Menu:          menuMetrics,
	})
	return m
}

// Init handles initialization for the bubbletea model.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return attachedMsg{} }
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.relayout()
		return m, nil

	case attachedMsg:
		m.ctl.Open()
		m.status = "ready"
		return m, nil

	case beginEditMsg:
		if !m.ctl.BeginEdit(msg.cardID) {
			return m, nil
		}
		m.syncEditor()
		return m, nil

	case tea.KeyPressMsg:
		if _, editing := m.ctl.Editing(); editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMousePress(msg)

	case tea.MouseMotionMsg:
		m.ctl.Motion(cellPoint(msg.X, msg.Y))
		return m, nil

	case tea.MouseReleaseMsg:
		effect, err := m.ctl.Release(context.Background(), cellPoint(msg.X, msg.Y))
		return m, m.afterTransition(effect, err)

	default:
		return m, nil
	}
}

// relayout measures the grid for the current window size.
func (m *Model) relayout() {
	m.help.SetWidth(max(0, m.width-2))
	m.editor.SetWidth(max(1, (m.width-timeColWidth)/(grid.Cols-1)-2))

	gridHeight := m.height - titleHeight - footerHeight
	rowHeight := (gridHeight - headerHeight) / (grid.Rows - 1)
	colWidth := (m.width - timeColWidth) / (grid.Cols - 1)
	m.layout = grid.Measured{}
	if rowHeight >= minRowHeight && colWidth >= minColWidth {
		cols := make([]float64, grid.Cols)
		rows := make([]float64, grid.Rows)
		cols[0], rows[0] = timeColWidth, headerHeight
		for i := 1; i < grid.Cols; i++ {
			cols[i] = float64(colWidth)
		}
		for i := 1; i < grid.Rows; i++ {
			rows[i] = float64(rowHeight)
		}
		layout, err := grid.FromCells(grid.Point{X: 0, Y: titleHeight}, cols, rows)
		if err == nil {
			m.layout = layout
		}
	}
	m.ctl.SetLayout(m.layout)
	m.ctl.Menu().SetViewport(grid.Rect{W: float64(m.width), H: float64(m.height)})
}

// handleMousePress routes a press to the interaction controller.
func (m Model) handleMousePress(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.showAgenda {
		m.showAgenda = false
		return m, nil
	}
	var button interact.Button
	switch msg.Button {
	case tea.MouseLeft:
		button = interact.ButtonPrimary
	case tea.MouseRight:
		button = interact.ButtonSecondary
	default:
		return m, nil
	}
	effect, err := m.ctl.Press(context.Background(), cellPoint(msg.X, msg.Y), button)
	return m, m.afterTransition(effect, err)
}

// handleKey handles keys outside of text editing.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.showAgenda {
		m.showAgenda = false
		return m, nil
	}
	ctx := context.Background()
	switch {
	case key.Matches(msg, m.keys.quit):
		if err := m.ctl.Close(ctx); err != nil {
			m.logger.Warn("close view", "err", err)
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.closeMenu):
		m.ctl.DismissMenu()
		m.help.ShowAll = false
		return m, nil
	case key.Matches(msg, m.keys.deleteCard):
		return m, m.runShortcut(ctx, interact.ShortcutDelete, "deleted")
	case key.Matches(msg, m.keys.copyCard):
		return m, m.runShortcut(ctx, interact.ShortcutCopy, "copied")
	case key.Matches(msg, m.keys.yankText):
		m.yankActive()
		return m, nil
	case key.Matches(msg, m.keys.agenda):
		m.ctl.DismissMenu()
		m.showAgenda = true
		return m, nil
	default:
		return m, nil
	}
}

// handleEditKey feeds keys to the card editor.
func (m Model) handleEditKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.commitEdit) {
		effect, err := m.ctl.CommitEdit(context.Background())
		return m, m.afterTransition(effect, err)
	}
	session, _ := m.ctl.Editing()
	if session.SelectAll {
		switch msg.String() {
		case "backspace", "delete":
			m.editor.SetValue("")
			m.ctl.SetDraft("")
			return m, nil
		default:
			if msg.Text != "" {
				m.editor.SetValue("")
			}
		}
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.ctl.SetDraft(m.editor.Value())
	return m, cmd
}

// runShortcut dispatches a keyboard shortcut against the active card.
func (m *Model) runShortcut(ctx context.Context, sc interact.Shortcut, verb string) tea.Cmd {
	active, count := m.store.Active(), len(m.store.Cards())
	handled, err := m.ctl.Shortcut(ctx, sc)
	if err != nil {
		return m.afterTransition(interact.Effect{}, err)
	}
	if handled && active != "" && (m.store.Active() != active || len(m.store.Cards()) != count) {
		m.warning = false
		m.status = verb + " card"
	}
	return nil
}

// yankActive copies the active card's text to the system clipboard.
func (m *Model) yankActive() {
	card, ok := m.store.Card(m.store.Active())
	if !ok {
		m.status = "no active card"
		return
	}
	if err := m.writeClipboard(card.Text); err != nil {
		m.status = "clipboard unavailable"
		m.logger.Warn("yank card text", "card", card.ID, "err", err)
		return
	}
	m.status = "yanked card text"
}

// afterTransition syncs the editor and reports the outcome of a controller transition.
func (m *Model) afterTransition(effect interact.Effect, err error) tea.Cmd {
	m.syncEditor()
	switch {
	case err != nil:
		m.reportError(err)
	case effect.Changed:
		m.warning = false
		m.status = "saved"
	}
	if effect.ScheduleEdit == "" {
		return nil
	}
	id := effect.ScheduleEdit
	if m.editDelay <= 0 {
		return func() tea.Msg { return beginEditMsg{cardID: id} }
	}
	return tea.Tick(m.editDelay, func(time.Time) tea.Msg {
		return beginEditMsg{cardID: id}
	})
}

// reportError surfaces a failed mutation in the status line.
func (m *Model) reportError(err error) {
	m.warning = true
	if errors.Is(err, app.ErrPersist) {
		m.status = "changes not saved"
		m.logger.Warn("persist cards", "err", err)
		return
	}
	m.status = err.Error()
	m.logger.Warn("card action failed", "err", err)
}

// syncEditor focuses or blurs the text input to follow the controller's edit session.
func (m *Model) syncEditor() {
	session, editing := m.ctl.Editing()
	if !editing {
		if m.editingID != "" {
			m.editor.Blur()
			m.editingID = ""
		}
		return
	}
	if session.CardID == m.editingID {
		return
	}
	m.editingID = session.CardID
	m.editor.SetValue(session.Draft)
	m.editor.CursorEnd()
	_ = m.editor.Focus()
}

// View renders the current bubbletea view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// render paints the grid, cards, menu, and footer onto one canvas.
func (m Model) render() string {
	if !m.ready {
		return "loading..."
	}
	if !m.layout.Ready() {
		minW := timeColWidth + (grid.Cols-1)*minColWidth
		minH := titleHeight + footerHeight + headerHeight + (grid.Rows-1)*minRowHeight
		return fmt.Sprintf("%s needs a larger terminal (at least %dx%d)", m.title, minW, minH)
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	layers := []*lipgloss.Layer{
		lipgloss.NewLayer(titleStyle.Render(truncate(m.title, m.width))).X(0).Y(0).Z(0),
		lipgloss.NewLayer(m.renderGrid()).X(0).Y(titleHeight).Z(0),
	}

	dragged, dragging := m.ctl.Dragging()
	var draggedCard domain.Card
	for _, card := range m.store.Cards() {
		if dragging && card.ID == dragged {
			draggedCard = card
			continue
		}
		if layer := m.cardLayer(card, 1); layer != nil {
			layers = append(layers, layer)
		}
	}
	if dragging {
		if layer := m.cardLayer(draggedCard, 50); layer != nil {
			layers = append(layers, layer)
		}
	}
	if menu, ok := m.ctl.Menu().Current(); ok {
		if b, ok := m.ctl.Menu().Bounds(); ok {
			layers = append(layers, lipgloss.NewLayer(renderMenu(menu)).X(int(b.X)).Y(int(b.Y)).Z(100))
		}
	}
	layers = append(layers, lipgloss.NewLayer(m.renderFooter()).X(0).Y(m.height-footerHeight).Z(0))

	switch {
	case m.showAgenda:
		layers = append(layers, overlayLayer(m.renderAgendaOverlay(), m.width, m.height))
	case m.help.ShowAll:
		layers = append(layers, overlayLayer(m.renderHelpOverlay(), m.width, m.height))
	}
	return lipgloss.NewCanvas(m.width, m.height).Compose(lipgloss.NewCompositor(layers...)).Render()
}

// renderGrid paints the day headers, hour labels, and row separators.
func (m Model) renderGrid() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))

	lines := make([]string, 0, int(headerHeight+(grid.Rows-1)*m.layout.RowHeight()))
	for row := 0; row < grid.Rows; row++ {
		first, _ := m.layout.CellRect(row, 0)
		for line := 0; line < int(first.H); line++ {
			var b strings.Builder
			label := ""
			if row > 0 && line == 0 {
				label = domain.SlotLabel(row)
			}
			b.WriteString(muted.Render(padRight(label, timeColWidth)))
			for col := 1; col < grid.Cols; col++ {
				cell, _ := m.layout.CellRect(row, col)
				inner := int(cell.W) - 1
				b.WriteString(dim.Render("│"))
				switch {
				case row == 0:
					b.WriteString(header.Render(center(domain.DayName(col), inner)))
				case line == 0:
					b.WriteString(dim.Render(strings.Repeat("┄", inner)))
				default:
					b.WriteString(strings.Repeat(" ", inner))
				}
			}
			lines = append(lines, b.String())
		}
	}
	return strings.Join(lines, "\n")
}

// cardLayer paints one card at its live or mapped position.
func (m Model) cardLayer(card domain.Card, z int) *lipgloss.Layer {
	r, ok := m.ctl.CardRect(card)
	if !ok {
		return nil
	}
	box := r.Cells()
	w, h := int(box.W), int(box.H)
	if w <= 0 || h <= 0 {
		return nil
	}
	active := m.store.Active() == card.ID

	var lines []string
	if card.ID == m.editingID {
		lines = append(lines, m.editor.View())
	} else {
		text := card.Text
		if active {
			text = "● " + text
		}
		if h > 1 {
			lines = append(lines, padRight(domain.ClockLabel(card.TopRowFrac)+"-"+domain.ClockLabel(card.BottomRowFrac()), w))
		}
		for _, l := range wrapText(text, w) {
			lines = append(lines, padRight(l, w))
		}
	}
	lines = strings.Split(fitLines(strings.Join(lines, "\n"), h), "\n")
	if card.ID != m.editingID || h > 1 {
		last := []rune(padRight(lines[h-1], w))
		last[len(last)-1] = '◢'
		lines[h-1] = string(last)
	}

	style := lipgloss.NewStyle().
		Width(w).
		MaxWidth(w).
		Height(h).
		MaxHeight(h).
		Background(lipgloss.Color(string(card.Color))).
		Foreground(lipgloss.Color("#ffffff"))
	if active {
		style = style.Bold(true)
	}
	return lipgloss.NewLayer(style.Render(strings.Join(lines, "\n"))).X(int(box.X)).Y(int(box.Y)).Z(z)
}

// renderMenu draws a bordered context menu sized to menuMetrics.
func renderMenu(menu interact.Menu) string {
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	inner := int(menuMetrics.Width) - 2
	lines := []string{border.Render("╭" + strings.Repeat("─", inner) + "╮")}
	for _, item := range menu.Items {
		var body string
		if len(item.Swatches) > 0 {
			slot := inner / len(item.Swatches)
			var b strings.Builder
			for _, sw := range item.Swatches {
				mark := "  "
				if sw.Current {
					mark = "✓ "
				}
				b.WriteString(lipgloss.NewStyle().
					Background(lipgloss.Color(string(sw.Color))).
					Foreground(lipgloss.Color("#ffffff")).
					Render(padRight(mark, slot)))
			}
			body = b.String() + strings.Repeat(" ", inner-slot*len(item.Swatches))
		} else {
			body = padRight(" "+item.Label, inner)
		}
		lines = append(lines, border.Render("│")+body+border.Render("│"))
	}
	lines = append(lines, border.Render("╰"+strings.Repeat("─", inner)+"╯"))
	return strings.Join(lines, "\n")
}

// renderFooter draws the status and short help lines.
func (m Model) renderFooter() string {
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	if m.warning {
		statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	}
	count := fmt.Sprintf("%d cards", len(m.store.Cards()))
	status := truncate(m.status, max(0, m.width-len(count)-1))
	gap := max(1, m.width-len([]rune(status))-len(count))
	statusLine := statusStyle.Render(status) + strings.Repeat(" ", gap) + statusStyle.Render(count)
	return statusLine + "\n" + m.help.View(m.keys)
}

// renderHelpOverlay renders the full key help in a box.
func (m Model) renderHelpOverlay() string {
	helpBubble := m.help
	helpBubble.ShowAll = true
	helpBubble.SetWidth(max(0, m.width-8))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Render(helpBubble.View(m.keys))
}

// renderAgendaOverlay renders the week agenda in a box.
func (m Model) renderAgendaOverlay() string {
	width := max(24, m.width-8)
	body := m.agenda.render(m.title, m.store.Cards(), width-4)
	body = fitLines(body, max(1, m.height-4))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Render(body)
}

// cellPoint converts a terminal cell to a grid point.
func cellPoint(x, y int) grid.Point {
	return grid.Point{X: float64(x), Y: float64(y)}
}

// nopLogger discards model events.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayLayer centers a boxed overlay above the schedule.
func overlayLayer(overlay string, width, height int) *lipgloss.Layer {
	x := max(0, (width-lipgloss.Width(overlay))/2)
	y := max(0, (height-lipgloss.Height(overlay))/2)
	return lipgloss.NewLayer(overlay).X(x).Y(y).Z(200)
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}

// padRight truncates or pads plain text to exactly width runes.
func padRight(s string, width int) string {
	s = truncate(s, width)
	if n := len([]rune(s)); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s
}

// center centers plain text within width runes.
func center(s string, width int) string {
	s = truncate(s, width)
	left := (width - len([]rune(s))) / 2
	return padRight(strings.Repeat(" ", max(0, left))+s, width)
}

// wrapText greedily wraps plain text on whitespace to lines of at most width runes.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			for len([]rune(word)) > width {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				rs := []rune(word)
				lines = append(lines, string(rs[:width]))
				word = string(rs[width:])
			}
			switch {
			case line == "":
				line = word
			case len([]rune(line))+1+len([]rune(word)) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		lines = append(lines, line)
	}
	return lines
}
