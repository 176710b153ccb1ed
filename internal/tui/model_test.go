package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/domain"
	"github.com/evanschultz/weekgrid/internal/grid"
	"github.com/evanschultz/weekgrid/internal/interact"
)

type fakeBlobs struct {
	blobs   map[string][]byte
	saveErr error
}

func (f *fakeBlobs) Load(_ context.Context, key string) ([]byte, error) {
	blob, ok := f.blobs[key]
	if !ok {
		return nil, app.ErrNotFound
	}
	return blob, nil
}

func (f *fakeBlobs) Save(_ context.Context, key string, blob []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.blobs[key] = blob
	return nil
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.warnings = append(l.warnings, msg)
}

func newTestStore(t *testing.T) (*app.Store, *fakeBlobs) {
	t.Helper()
	blobs := &fakeBlobs{blobs: map[string][]byte{}}
	n := 0
	store, err := app.OpenStore(context.Background(), blobs, func() string {
		n++
		return fmt.Sprintf("card-%d", n)
	}, app.StoreConfig{})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	return store, blobs
}

// seedCard creates a card in content row 1 of day column 2. In a 120x40
// window it paints at x 30..49, y 2..4 with its resize handle at (49,4).
func seedCard(t *testing.T, store *app.Store, text string) domain.Card {
	t.Helper()
	ctx := context.Background()
	card, err := store.Create(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	card, err = store.SetText(ctx, card.ID, text)
	if err != nil {
		t.Fatalf("SetText() error = %v", err)
	}
	store.SetActive("")
	return card
}

func newTestModel(t *testing.T, store *app.Store, opts ...Option) Model {
	t.Helper()
	opts = append([]Option{WithEditDelay(0), WithClipboard(func(string) error { return nil })}, opts...)
	return loadReadyModel(t, NewModel(store, opts...))
}

// TestModelLoadAndLayout verifies the grid is measured and painted after the first resize.
func TestModelLoadAndLayout(t *testing.T) {
	store, _ := newTestStore(t)
	m := newTestModel(t, store)

	if !m.layout.Ready() {
		t.Fatal("expected measured layout after window size")
	}
	if got := m.layout.RowHeight(); got != 3 {
		t.Fatalf("expected row height 3, got %v", got)
	}
	if got := m.layout.ColWidth(); got != 22 {
		t.Fatalf("expected column width 22, got %v", got)
	}
	if m.status != "ready" {
		t.Fatalf("expected ready status, got %q", m.status)
	}
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion || !v.AltScreen {
		t.Fatal("expected alt-screen view with mouse enabled")
	}
	out := m.render()
	for _, want := range []string{"Monday", "Friday", "07:00", "18:00", "weekgrid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
}

// TestModelPaintsCardAtMappedCells verifies a card is drawn inside its mapped rectangle.
func TestModelPaintsCardAtMappedCells(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	r, ok := grid.ToRect(card, m.layout)
	if !ok {
		t.Fatal("expected mapped rectangle for seeded card")
	}
	cells := r.Cells()
	lines := strings.Split(ansi.Strip(m.render()), "\n")
	if len(lines) < int(cells.Y+cells.H) {
		t.Fatalf("expected at least %v lines, got %d", cells.Y+cells.H, len(lines))
	}
	if !strings.HasPrefix(lines[0], "weekgrid") {
		t.Fatalf("expected title on the first line, got %q", lines[0])
	}
	if !strings.Contains(lines[titleHeight], "Monday") {
		t.Fatalf("expected day headers below the title, got %q", lines[titleHeight])
	}

	found := false
	for y, line := range lines {
		idx := strings.Index(line, "Standup")
		if idx < 0 {
			continue
		}
		found = true
		x := utf8.RuneCountInString(line[:idx])
		if y < int(cells.Y) || y >= int(cells.Y+cells.H) {
			t.Fatalf("card text on line %d, want within rows %v..%v", y, cells.Y, cells.Y+cells.H-1)
		}
		if x < int(cells.X) || x+len("Standup") > int(cells.X+cells.W) {
			t.Fatalf("card text at column %d, want within columns %v..%v", x, cells.X, cells.X+cells.W-1)
		}
	}
	if !found {
		t.Fatal("expected card text painted on the schedule")
	}
	handle := []rune(lines[int(cells.Y+cells.H)-1])
	if got := handle[int(cells.X+cells.W)-1]; got != '◢' {
		t.Fatalf("expected resize handle at the card's bottom-right cell, got %q", got)
	}
}

// TestModelSmallTerminal verifies a window too small for the grid reports its minimum size.
func TestModelSmallTerminal(t *testing.T) {
	store, _ := newTestStore(t)
	m := applyMsg(t, NewModel(store), tea.WindowSizeMsg{Width: 20, Height: 10})
	if m.layout.Ready() {
		t.Fatal("expected no layout for a tiny window")
	}
	if !strings.Contains(m.render(), "larger terminal") {
		t.Fatalf("expected size hint, got %q", m.render())
	}
}

// TestModelCreateFromCellMenu verifies the create menu places a card and opens its editor.
func TestModelCreateFromCellMenu(t *testing.T) {
	store, _ := newTestStore(t)
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseRight})
	if m.ctl.State() != interact.MenuOpen {
		t.Fatalf("expected open menu, got %s", m.ctl.State())
	}
	if !strings.Contains(m.render(), "New card") {
		t.Fatal("expected create menu item in view")
	}

	m = applyMsg(t, m, tea.MouseClickMsg{X: 40, Y: 4, Button: tea.MouseLeft})
	cards := store.Cards()
	if len(cards) != 1 {
		t.Fatalf("expected one card, got %d", len(cards))
	}
	if cards[0].Col != 2 || cards[0].TopRowFrac != 0 || cards[0].HeightFrac != 1 {
		t.Fatalf("unexpected placement %#v", cards[0])
	}
	session, editing := m.ctl.Editing()
	if !editing || session.CardID != cards[0].ID || !session.SelectAll {
		t.Fatalf("expected deferred edit of new card, got %#v editing=%t", session, editing)
	}

	for _, r := range "Gym" {
		m = applyMsg(t, m, keyRune(r))
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	card, _ := store.Card(cards[0].ID)
	if card.Text != "Gym" {
		t.Fatalf("expected typed text to replace default, got %q", card.Text)
	}
	if m.ctl.State() != interact.Idle || m.status != "saved" {
		t.Fatalf("expected idle saved state, got %s %q", m.ctl.State(), m.status)
	}
}

// TestModelClickEditsCard verifies a click selects a card and edits its text.
func TestModelClickEditsCard(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 35, Y: 3, Button: tea.MouseLeft})
	if store.Active() != card.ID {
		t.Fatalf("expected active card %q, got %q", card.ID, store.Active())
	}
	if m.editor.Value() != "Standup" || !m.editor.Focused() {
		t.Fatalf("expected focused editor with card text, got %q", m.editor.Value())
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyBackspace})
	if m.editor.Value() != "" {
		t.Fatalf("expected backspace to clear selected text, got %q", m.editor.Value())
	}
	for _, r := range "Sync" {
		m = applyMsg(t, m, keyRune(r))
	}

	// Pressing on empty grid commits the edit.
	m = applyMsg(t, m, tea.MouseClickMsg{X: 100, Y: 30, Button: tea.MouseLeft})
	got, _ := store.Card(card.ID)
	if got.Text != "Sync" {
		t.Fatalf("expected committed text Sync, got %q", got.Text)
	}
	if m.editor.Focused() || m.editingID != "" {
		t.Fatal("expected editor to blur after commit")
	}
}

// TestModelDragMovesCard verifies a drag snaps the card to the nearest column and half row.
func TestModelDragMovesCard(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: 57, Y: 3, Button: tea.MouseLeft})
	if id, ok := m.ctl.Dragging(); !ok || id != card.ID {
		t.Fatalf("expected drag of %q, got %q %t", card.ID, id, ok)
	}
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 57, Y: 6, Button: tea.MouseLeft})

	got, _ := store.Card(card.ID)
	if got.Col != 3 || got.TopRowFrac != 1 {
		t.Fatalf("expected col 3 top 1, got col %d top %v", got.Col, got.TopRowFrac)
	}
	if _, editing := m.ctl.Editing(); editing {
		t.Fatal("expected drag not to start editing")
	}
}

// TestModelResizeFromHandle verifies dragging the handle snaps height to half rows.
func TestModelResizeFromHandle(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 49, Y: 4, Button: tea.MouseLeft})
	if m.ctl.State() != interact.DraggingResize {
		t.Fatalf("expected resize from handle, got %s", m.ctl.State())
	}
	m = applyMsg(t, m, tea.MouseMotionMsg{X: 49, Y: 7, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 49, Y: 7, Button: tea.MouseLeft})

	got, _ := store.Card(card.ID)
	if got.HeightFrac != 2 || got.Col != 2 || got.TopRowFrac != 0 {
		t.Fatalf("expected height 2 in place, got %#v", got)
	}
}

// TestModelCardMenu verifies recolor and delete through the card menu.
func TestModelCardMenu(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseRight})
	if store.Active() != card.ID {
		t.Fatal("expected context click to activate the card")
	}
	out := m.render()
	if !strings.Contains(out, "Edit") || !strings.Contains(out, "Delete") {
		t.Fatal("expected card menu items in view")
	}

	m = applyMsg(t, m, tea.MouseClickMsg{X: 42, Y: 5, Button: tea.MouseLeft})
	got, _ := store.Card(card.ID)
	if got.Color != domain.DefaultPalette[3] {
		t.Fatalf("expected palette[3], got %q", got.Color)
	}
	if m.ctl.Menu().IsOpen() {
		t.Fatal("expected menu closed after choosing a color")
	}

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseRight})
	m = applyMsg(t, m, tea.MouseClickMsg{X: 40, Y: 6, Button: tea.MouseLeft})
	if _, ok := store.Card(card.ID); ok {
		t.Fatal("expected card deleted from menu")
	}
	if store.Active() != "" {
		t.Fatalf("expected no active card, got %q", store.Active())
	}
}

// TestModelEscapeDismissesMenu verifies esc closes the menu and keeps the active card.
func TestModelEscapeDismissesMenu(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseRight})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.ctl.Menu().IsOpen() || m.ctl.State() != interact.Idle {
		t.Fatal("expected esc to close the menu")
	}
	if store.Active() != card.ID {
		t.Fatal("expected active card kept after dismiss")
	}
}

// TestModelShortcuts verifies copy, delete, and yank act on the active card.
func TestModelShortcuts(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	var yanked string
	m := newTestModel(t, store, WithClipboard(func(s string) error {
		yanked = s
		return nil
	}))

	m = applyMsg(t, m, tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if len(store.Cards()) != 1 {
		t.Fatal("expected copy without an active card to do nothing")
	}

	store.SetActive(card.ID)
	m = applyMsg(t, m, tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if len(store.Cards()) != 2 || m.status != "copied card" {
		t.Fatalf("expected copied card, got %d cards status %q", len(store.Cards()), m.status)
	}

	copyID := store.Active()
	if copyID == card.ID || copyID == "" {
		t.Fatalf("expected the copy to become active, got %q", copyID)
	}

	m = applyMsg(t, m, keyRune('y'))
	if yanked != "Standup" {
		t.Fatalf("expected yanked text, got %q", yanked)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDelete})
	if _, ok := store.Card(copyID); ok {
		t.Fatal("expected delete key to remove the active card")
	}
	if _, ok := store.Card(card.ID); !ok {
		t.Fatal("expected the original card kept")
	}
	if len(store.Cards()) != 1 || m.status != "deleted card" {
		t.Fatalf("expected one remaining card, got %d status %q", len(store.Cards()), m.status)
	}
}

// TestModelShortcutsIgnoredWhileEditing verifies editor keys never reach card shortcuts.
func TestModelShortcutsIgnoredWhileEditing(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 35, Y: 3, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDelete})
	if _, ok := store.Card(card.ID); !ok {
		t.Fatal("expected card kept while editing")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.ctl.State() != interact.Idle {
		t.Fatalf("expected esc to finish editing, got %s", m.ctl.State())
	}
}

// TestModelShortcutsDuringGestureKeepStatus verifies refused shortcuts report nothing.
func TestModelShortcutsDuringGestureKeepStatus(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	store.SetActive(card.ID)
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseLeft})
	if m.ctl.State() == interact.Idle {
		t.Fatal("expected a gesture in progress after pressing a card")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDelete})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if _, ok := store.Card(card.ID); !ok || store.Len() != 1 {
		t.Fatalf("expected card untouched during a gesture, got %d cards", store.Len())
	}
	if m.status == "deleted card" || m.status == "copied card" {
		t.Fatalf("expected no success status, got %q", m.status)
	}
}

// TestModelPersistFailureWarns verifies a failed save keeps the change and warns.
func TestModelPersistFailureWarns(t *testing.T) {
	store, blobs := newTestStore(t)
	card := seedCard(t, store, "Standup")
	logger := &recordingLogger{}
	m := newTestModel(t, store, WithLogger(logger))

	blobs.saveErr = errors.New("disk full")
	m = applyMsg(t, m, tea.MouseClickMsg{X: 35, Y: 3, Button: tea.MouseRight})
	m = applyMsg(t, m, tea.MouseClickMsg{X: 42, Y: 5, Button: tea.MouseLeft})

	got, _ := store.Card(card.ID)
	if got.Color != domain.DefaultPalette[3] {
		t.Fatal("expected in-memory change kept after persist failure")
	}
	if !m.warning || m.status != "changes not saved" {
		t.Fatalf("expected persist warning, got %q warning=%t", m.status, m.warning)
	}
	if len(logger.warnings) == 0 {
		t.Fatal("expected persist failure to be logged")
	}
}

// TestModelAgendaAndHelpOverlays verifies overlay toggles.
func TestModelAgendaAndHelpOverlays(t *testing.T) {
	store, _ := newTestStore(t)
	seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	m = applyMsg(t, m, keyRune('a'))
	if !m.showAgenda {
		t.Fatal("expected agenda overlay")
	}
	_ = m.View()
	m = applyMsg(t, m, keyRune('x'))
	if m.showAgenda {
		t.Fatal("expected any key to close the agenda")
	}

	m = applyMsg(t, m, keyRune('?'))
	if !m.help.ShowAll {
		t.Fatal("expected full help")
	}
	out := ansi.Strip(m.render())
	if !strings.Contains(out, "copy card") {
		t.Fatal("expected help overlay to list bindings")
	}
	if !strings.HasPrefix(out, "weekgrid") || !strings.Contains(out, "Standup") || !strings.Contains(out, "1 cards") {
		t.Fatal("expected the schedule to stay visible around the help box")
	}
}

// TestModelQuitDetachesShortcuts verifies quit closes the view before exiting.
func TestModelQuitDetachesShortcuts(t *testing.T) {
	store, _ := newTestStore(t)
	seedCard(t, store, "Standup")
	m := newTestModel(t, store)

	updated, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	m = updated.(Model)
	handled, err := m.ctl.Shortcut(context.Background(), interact.ShortcutCopy)
	if handled || err != nil {
		t.Fatalf("expected detached shortcuts, got handled=%t err=%v", handled, err)
	}
}

// TestModelConfiguredKeys verifies key overrides reach the model.
func TestModelConfiguredKeys(t *testing.T) {
	store, _ := newTestStore(t)
	card := seedCard(t, store, "Standup")
	m := newTestModel(t, store, WithKeyConfig(KeyConfig{Delete: "x"}))

	store.SetActive(card.ID)
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDelete})
	if _, ok := store.Card(card.ID); !ok {
		t.Fatal("expected default delete key to be replaced")
	}
	_ = applyMsg(t, m, keyRune('x'))
	if _, ok := store.Card(card.ID); ok {
		t.Fatal("expected configured delete key to remove the card")
	}
}

// TestRenderAgenda verifies the exported agenda renderer.
func TestRenderAgenda(t *testing.T) {
	store, _ := newTestStore(t)
	seedCard(t, store, "Standup")
	out := RenderAgenda("Week", store.Cards(), 80)
	if !strings.Contains(out, "Standup") || !strings.Contains(out, "Tuesday") {
		t.Fatalf("unexpected agenda output %q", out)
	}
}

// TestAgendaRendererReusesRendererPerWidth verifies the glamour renderer is rebuilt only on width changes.
func TestAgendaRendererReusesRendererPerWidth(t *testing.T) {
	r := newAgendaRenderer()
	if out := r.render("Week", nil, 10); !strings.Contains(out, "Monday") {
		t.Fatalf("expected empty week agenda, got %q", out)
	}
	if r.wrap != minAgendaWrap {
		t.Fatalf("expected narrow widths to clamp to %d, got %d", minAgendaWrap, r.wrap)
	}
	first := r.renderer
	r.render("Week", nil, 20)
	if r.renderer != first {
		t.Fatal("expected renderer reuse for the same clamped width")
	}
	r.render("Week", nil, 60)
	if r.renderer == first || r.wrap != 60 {
		t.Fatalf("expected renderer rebuild at width 60, wrap=%d", r.wrap)
	}
}

// TestTextHelpers verifies layout helpers used by card painting.
func TestTextHelpers(t *testing.T) {
	if got := wrapText("plan the quarterly review", 10); strings.Join(got, "|") != "plan the|quarterly|review" {
		t.Fatalf("unexpected wrap %#v", got)
	}
	if got := wrapText("abcdefghijkl", 5); strings.Join(got, "|") != "abcde|fghij|kl" {
		t.Fatalf("unexpected long-word wrap %#v", got)
	}
	if got := padRight("abc", 5); got != "abc  " {
		t.Fatalf("unexpected pad %q", got)
	}
	if got := padRight("abcdef", 4); got != "abc…" {
		t.Fatalf("unexpected truncating pad %q", got)
	}
	if got := center("ab", 6); got != "  ab  " {
		t.Fatalf("unexpected center %q", got)
	}
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("unexpected fit %q", got)
	}
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 120, Height: 40})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}
