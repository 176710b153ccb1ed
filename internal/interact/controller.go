// Package interact turns pointer and keyboard input into card store
// mutations through an explicit interaction state machine.
package interact

import (
	"context"
	"errors"
	"math"

	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/domain"
	"github.com/evanschultz/weekgrid/internal/grid"
)

// DefaultDragThreshold is the pointer travel, per axis, that turns a press into a drag.
const DefaultDragThreshold = 3.0

// DefaultHandleSize is the side of the resize handle square at a card's bottom-right corner.
const DefaultHandleSize = 8.0

// State is one interaction state.
type State int

// State values.
const (
	Idle State = iota
	Selecting
	DraggingMove
	DraggingResize
	EditingText
	MenuOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case DraggingMove:
		return "dragging-move"
	case DraggingResize:
		return "dragging-resize"
	case EditingText:
		return "editing-text"
	case MenuOpen:
		return "menu-open"
	default:
		return "unknown"
	}
}

// Button identifies the pointer button of a press.
type Button int

// Button values.
const (
	ButtonPrimary Button = iota
	ButtonSecondary
)

// CardStore is the store surface the controller mutates.
type CardStore interface {
	Cards() []domain.Card
	Card(id string) (domain.Card, bool)
	Palette() domain.Palette
	Active() string
	SetActive(id string) bool
	Create(ctx context.Context, row, col int) (domain.Card, error)
	Move(ctx context.Context, id string, col int, topRowFrac float64) (domain.Card, error)
	Resize(ctx context.Context, id string, heightFrac float64) (domain.Card, error)
	SetColor(ctx context.Context, id string, color domain.Color) (domain.Card, error)
	SetText(ctx context.Context, id, text string) (domain.Card, error)
	Delete(ctx context.Context, id string) error
	Copy(ctx context.Context, id string) (domain.Card, error)
}

// Config tunes the controller for its host.
type Config struct {
	DragThreshold float64
	HandleSize    float64
	// HitBox maps a card rectangle onto the area the host actually paints.
	HitBox func(grid.Rect) grid.Rect
	Menu   MenuMetrics
}

// HitKind classifies what lies under the pointer.
type HitKind int

// HitKind values.
const (
	HitNone HitKind = iota
	HitCell
	HitCard
	HitHandle
)

// Hit is the result of a pointer hit test.
type Hit struct {
	Kind   HitKind
	CardID string
	Row    int
	Col    int
}

// EditSession is an in-progress text edit.
type EditSession struct {
	CardID string
	Draft  string
	// SelectAll marks the original text as selected; the first keystroke replaces it.
	SelectAll bool
}

// Effect reports what a transition did beyond changing state.
type Effect struct {
	Changed bool
	// ScheduleEdit names a freshly created card the host should open for
	// editing after a short delay.
	ScheduleEdit string
}

type dragSession struct {
	cardID string
	start  grid.Point
	origin grid.Rect
	live   grid.Rect
}

// Controller is the interaction state machine for one open view.
type Controller struct {
	store  CardStore
	layout grid.Layout
	cfg    Config
	menu   *MenuController
	subs   *Subscriptions

	state State
	drag  dragSession
	edit  EditSession
}

// NewController constructs a controller over store.
func NewController(store CardStore, cfg Config) *Controller {
	if cfg.DragThreshold <= 0 {
		cfg.DragThreshold = DefaultDragThreshold
	}
	if cfg.HandleSize <= 0 {
		cfg.HandleSize = DefaultHandleSize
	}
	if cfg.HitBox == nil {
		cfg.HitBox = func(r grid.Rect) grid.Rect { return r }
	}
	return &Controller{
		store:  store,
		layout: grid.Measured{},
		cfg:    cfg,
		menu:   NewMenuController(cfg.Menu),
		subs:   NewSubscriptions(),
	}
}

// Open attaches the view-scoped shortcuts.
func (c *Controller) Open() {
	c.subs.Attach(map[Shortcut]Handler{
		ShortcutDelete: c.deleteActive,
		ShortcutCopy:   c.copyActive,
	})
}

// Close detaches shortcuts, commits a pending edit, and abandons any gesture.
func (c *Controller) Close(ctx context.Context) error {
	c.subs.Detach()
	var err error
	if c.state == EditingText {
		_, err = c.CommitEdit(ctx)
	}
	c.menu.Close()
	c.reset()
	return err
}

// Shortcut dispatches a keyboard shortcut. It reports false when the view is detached.
func (c *Controller) Shortcut(ctx context.Context, sc Shortcut) (bool, error) {
	return c.subs.Dispatch(ctx, sc)
}

// SetLayout replaces the measurements used for hit testing and snapping.
func (c *Controller) SetLayout(l grid.Layout) {
	if l == nil {
		l = grid.Measured{}
	}
	c.layout = l
}

// Layout returns the current measurements.
func (c *Controller) Layout() grid.Layout {
	return c.layout
}

// Menu returns the context menu controller.
func (c *Controller) Menu() *MenuController {
	return c.menu
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Editing returns the edit session while in EditingText.
func (c *Controller) Editing() (EditSession, bool) {
	if c.state != EditingText {
		return EditSession{}, false
	}
	return c.edit, true
}

// Dragging returns the card being moved or resized.
func (c *Controller) Dragging() (string, bool) {
	if c.state != DraggingMove && c.state != DraggingResize {
		return "", false
	}
	return c.drag.cardID, true
}

// CardRect returns where a card is drawn: its live rectangle while dragged,
// otherwise its mapped grid position.
func (c *Controller) CardRect(card domain.Card) (grid.Rect, bool) {
	if id, ok := c.Dragging(); ok && id == card.ID {
		return c.drag.live, true
	}
	return grid.ToRect(card, c.layout)
}

// HandleRect returns the resize handle inside a painted card box.
func (c *Controller) HandleRect(box grid.Rect) grid.Rect {
	size := math.Min(c.cfg.HandleSize, math.Min(box.W, box.H))
	return grid.Rect{X: box.Right() - size, Y: box.Bottom() - size, W: size, H: size}
}

// HitTest reports the card, handle, or content cell under p. Later cards are on top.
func (c *Controller) HitTest(p grid.Point) Hit {
	cards := c.store.Cards()
	for i := len(cards) - 1; i >= 0; i-- {
		r, ok := c.CardRect(cards[i])
		if !ok {
			continue
		}
		box := c.cfg.HitBox(r)
		if !box.Contains(p) {
			continue
		}
		if c.HandleRect(box).Contains(p) {
			return Hit{Kind: HitHandle, CardID: cards[i].ID, Col: cards[i].Col}
		}
		return Hit{Kind: HitCard, CardID: cards[i].ID, Col: cards[i].Col}
	}
	row, col, ok := grid.CellAt(c.layout, p)
	if ok && domain.ValidSlotRow(row) && domain.ValidColumn(col) {
		return Hit{Kind: HitCell, Row: row, Col: col}
	}
	return Hit{}
}

// Press handles a pointer press.
func (c *Controller) Press(ctx context.Context, p grid.Point, button Button) (Effect, error) {
	if button == ButtonSecondary {
		return c.ContextClick(ctx, p)
	}

	var commitErr error
	switch c.state {
	case EditingText:
		_, commitErr = c.CommitEdit(ctx)
	case MenuOpen:
		if c.menu.Contains(p) {
			choice, ok := c.menu.Choose(p)
			if !ok {
				return Effect{}, nil
			}
			c.state = Idle
			return c.apply(ctx, choice)
		}
		c.menu.Close()
		c.state = Idle
	case Selecting, DraggingMove, DraggingResize:
		return Effect{}, nil
	}

	hit := c.HitTest(p)
	switch hit.Kind {
	case HitCard, HitHandle:
		card, _ := c.store.Card(hit.CardID)
		r, ok := grid.ToRect(card, c.layout)
		if !ok {
			return Effect{}, commitErr
		}
		c.drag = dragSession{cardID: hit.CardID, start: p, origin: r, live: r}
		if hit.Kind == HitHandle {
			c.state = DraggingResize
		} else {
			c.state = Selecting
		}
	}
	return Effect{}, commitErr
}

// Motion handles pointer movement while a button is held.
func (c *Controller) Motion(p grid.Point) {
	dx := p.X - c.drag.start.X
	dy := p.Y - c.drag.start.Y
	switch c.state {
	case Selecting:
		if math.Abs(dx) < c.cfg.DragThreshold && math.Abs(dy) < c.cfg.DragThreshold {
			return
		}
		c.state = DraggingMove
		c.drag.live = c.drag.origin.Translate(dx, dy)
	case DraggingMove:
		c.drag.live = c.drag.origin.Translate(dx, dy)
	case DraggingResize:
		floor := domain.MinHeightFrac * c.layout.RowHeight()
		c.drag.live.H = math.Max(c.drag.origin.H+dy, floor)
	}
}

// Release handles the end of a press. A press that never crossed the drag
// threshold is a click: the card becomes active and text editing starts.
func (c *Controller) Release(ctx context.Context, p grid.Point) (Effect, error) {
	c.Motion(p)
	switch c.state {
	case Selecting:
		id := c.drag.cardID
		c.reset()
		if !c.store.SetActive(id) {
			return Effect{}, nil
		}
		c.beginEdit(id)
		return Effect{}, nil
	case DraggingMove:
		id, live := c.drag.cardID, c.drag.live
		c.reset()
		pos, ok := grid.Resolve(live, c.layout)
		if !ok {
			return Effect{}, nil
		}
		_, err := c.store.Move(ctx, id, pos.Col, pos.TopRowFrac)
		return changed(err)
	case DraggingResize:
		id, live := c.drag.cardID, c.drag.live
		c.reset()
		h := grid.ResolveHeight(live.H, c.layout.RowHeight())
		_, err := c.store.Resize(ctx, id, h)
		return changed(err)
	}
	return Effect{}, nil
}

// ContextClick opens the menu for whatever lies under p, closing any open menu first.
func (c *Controller) ContextClick(ctx context.Context, p grid.Point) (Effect, error) {
	var commitErr error
	if c.state == EditingText {
		_, commitErr = c.CommitEdit(ctx)
	}
	c.menu.Close()
	c.reset()

	hit := c.HitTest(p)
	switch hit.Kind {
	case HitCard, HitHandle:
		card, ok := c.store.Card(hit.CardID)
		if !ok {
			return Effect{}, commitErr
		}
		c.store.SetActive(card.ID)
		c.menu.OpenCard(p, card, c.store.Palette())
		c.state = MenuOpen
	case HitCell:
		c.menu.OpenCell(p, hit.Row, hit.Col)
		c.state = MenuOpen
	}
	return Effect{}, commitErr
}

// DismissMenu closes the open menu without running an action.
func (c *Controller) DismissMenu() {
	if c.state != MenuOpen {
		return
	}
	c.menu.Close()
	c.state = Idle
}

// BeginEdit opens a card for editing. It is used for the deferred edit after
// creation and only applies while idle.
func (c *Controller) BeginEdit(id string) bool {
	if c.state != Idle {
		return false
	}
	if !c.store.SetActive(id) {
		return false
	}
	c.beginEdit(id)
	return true
}

// SetDraft replaces the edit buffer.
func (c *Controller) SetDraft(text string) {
	if c.state != EditingText {
		return
	}
	c.edit.Draft = text
	c.edit.SelectAll = false
}

// CommitEdit writes the edit buffer to the card and returns to Idle.
func (c *Controller) CommitEdit(ctx context.Context) (Effect, error) {
	if c.state != EditingText {
		return Effect{}, nil
	}
	session := c.edit
	c.reset()
	card, ok := c.store.Card(session.CardID)
	if !ok || card.Text == session.Draft {
		return Effect{}, nil
	}
	_, err := c.store.SetText(ctx, session.CardID, session.Draft)
	return changed(err)
}

func (c *Controller) apply(ctx context.Context, choice Choice) (Effect, error) {
	switch choice.Action {
	case ActionCreate:
		card, err := c.store.Create(ctx, choice.Row, choice.Col)
		if card.ID == "" {
			return Effect{}, ignoreMissing(err)
		}
		return Effect{Changed: true, ScheduleEdit: card.ID}, ignoreMissing(err)
	case ActionEdit:
		if c.store.SetActive(choice.CardID) {
			c.beginEdit(choice.CardID)
		}
		return Effect{}, nil
	case ActionColor:
		_, err := c.store.SetColor(ctx, choice.CardID, choice.Color)
		return changed(err)
	case ActionDelete:
		return changed(c.store.Delete(ctx, choice.CardID))
	}
	return Effect{}, nil
}

func (c *Controller) deleteActive(ctx context.Context) error {
	id, ok := c.shortcutTarget()
	if !ok {
		return nil
	}
	return ignoreMissing(c.store.Delete(ctx, id))
}

func (c *Controller) copyActive(ctx context.Context) error {
	id, ok := c.shortcutTarget()
	if !ok {
		return nil
	}
	_, err := c.store.Copy(ctx, id)
	return ignoreMissing(err)
}

// shortcutTarget returns the active card when no gesture or edit is in progress.
func (c *Controller) shortcutTarget() (string, bool) {
	switch c.state {
	case Idle:
	case MenuOpen:
		c.menu.Close()
		c.state = Idle
	default:
		return "", false
	}
	id := c.store.Active()
	return id, id != ""
}

func (c *Controller) beginEdit(id string) {
	card, _ := c.store.Card(id)
	c.edit = EditSession{CardID: id, Draft: card.Text, SelectAll: true}
	c.state = EditingText
}

func (c *Controller) reset() {
	c.state = Idle
	c.drag = dragSession{}
	c.edit = EditSession{}
}

// changed converts a store result into an effect, dropping unknown-id errors.
func changed(err error) (Effect, error) {
	if errors.Is(err, app.ErrNotFound) {
		return Effect{}, nil
	}
	return Effect{Changed: err == nil || errors.Is(err, app.ErrPersist)}, err
}

func ignoreMissing(err error) error {
	if errors.Is(err, app.ErrNotFound) {
		return nil
	}
	return err
}
