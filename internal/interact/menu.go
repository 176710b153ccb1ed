package interact

import (
	"math"

	"github.com/evanschultz/weekgrid/internal/domain"
	"github.com/evanschultz/weekgrid/internal/grid"
)

// MenuKind identifies which menu shape is open.
type MenuKind int

// MenuKind values.
const (
	MenuNone MenuKind = iota
	MenuCell
	MenuCard
)

// Action identifies a menu command.
type Action int

// Action values.
const (
	ActionCreate Action = iota + 1
	ActionEdit
	ActionColor
	ActionDelete
)

// Swatch is one palette entry in the card menu.
type Swatch struct {
	Color   domain.Color
	Current bool
}

// Item is one menu line. Color lines carry swatches instead of a label.
type Item struct {
	Label    string
	Action   Action
	Swatches []Swatch
}

// Menu is an open context menu.
type Menu struct {
	Kind   MenuKind
	Origin grid.Point
	CardID string
	Row    int
	Col    int
	Items  []Item
}

// Choice is the command picked from a menu.
type Choice struct {
	Action Action
	CardID string
	Row    int
	Col    int
	Color  domain.Color
}

// MenuMetrics sizes menus in host units.
type MenuMetrics struct {
	Width      float64
	ItemHeight float64
	Padding    float64
}

// DefaultMenuMetrics sizes menus for a pixel host.
var DefaultMenuMetrics = MenuMetrics{Width: 176, ItemHeight: 24, Padding: 4}

// MenuController tracks the single open context menu.
type MenuController struct {
	metrics  MenuMetrics
	viewport grid.Rect
	open     *Menu
}

// NewMenuController constructs a menu controller.
func NewMenuController(metrics MenuMetrics) *MenuController {
	if metrics.Width <= 0 || metrics.ItemHeight <= 0 {
		metrics = DefaultMenuMetrics
	}
	if metrics.Padding < 0 {
		metrics.Padding = 0
	}
	return &MenuController{metrics: metrics}
}

// Metrics returns the menu sizing.
func (mc *MenuController) Metrics() MenuMetrics {
	return mc.metrics
}

// SetViewport bounds menu placement. An empty viewport disables clamping.
func (mc *MenuController) SetViewport(r grid.Rect) {
	mc.viewport = r
}

// OpenCell opens the create-card menu for a content cell, replacing any open menu.
func (mc *MenuController) OpenCell(p grid.Point, row, col int) Menu {
	return mc.show(Menu{
		Kind:   MenuCell,
		Origin: p,
		Row:    row,
		Col:    col,
		Items:  []Item{{Label: "New card", Action: ActionCreate}},
	})
}

// OpenCard opens the edit/color/delete menu for a card, replacing any open menu.
func (mc *MenuController) OpenCard(p grid.Point, card domain.Card, palette domain.Palette) Menu {
	swatches := make([]Swatch, 0, len(palette))
	current := palette.Index(card.Color)
	for i, c := range palette {
		swatches = append(swatches, Swatch{Color: c, Current: i == current})
	}
	return mc.show(Menu{
		Kind:   MenuCard,
		Origin: p,
		CardID: card.ID,
		Col:    card.Col,
		Items: []Item{
			{Label: "Edit", Action: ActionEdit},
			{Action: ActionColor, Swatches: swatches},
			{Label: "Delete", Action: ActionDelete},
		},
	})
}

// Current returns the open menu.
func (mc *MenuController) Current() (Menu, bool) {
	if mc.open == nil {
		return Menu{}, false
	}
	return *mc.open, true
}

// IsOpen reports whether a menu is open.
func (mc *MenuController) IsOpen() bool {
	return mc.open != nil
}

// Close dismisses the open menu.
func (mc *MenuController) Close() {
	mc.open = nil
}

// Bounds returns the open menu's rectangle.
func (mc *MenuController) Bounds() (grid.Rect, bool) {
	if mc.open == nil {
		return grid.Rect{}, false
	}
	return mc.bounds(*mc.open), true
}

// Contains reports whether p falls inside the open menu.
func (mc *MenuController) Contains(p grid.Point) bool {
	r, ok := mc.Bounds()
	return ok && r.Contains(p)
}

// ItemRect returns the rectangle of item i in the open menu.
func (mc *MenuController) ItemRect(i int) (grid.Rect, bool) {
	if mc.open == nil || i < 0 || i >= len(mc.open.Items) {
		return grid.Rect{}, false
	}
	b := mc.bounds(*mc.open)
	return grid.Rect{
		X: b.X + mc.metrics.Padding,
		Y: b.Y + mc.metrics.Padding + float64(i)*mc.metrics.ItemHeight,
		W: b.W - 2*mc.metrics.Padding,
		H: mc.metrics.ItemHeight,
	}, true
}

// Choose resolves a primary press inside the open menu. When p lands on an
// actionable item the menu is closed and the choice returned; otherwise the
// menu stays open.
func (mc *MenuController) Choose(p grid.Point) (Choice, bool) {
	if mc.open == nil {
		return Choice{}, false
	}
	menu := *mc.open
	for i, item := range menu.Items {
		r, _ := mc.ItemRect(i)
		if !r.Contains(p) {
			continue
		}
		choice := Choice{Action: item.Action, CardID: menu.CardID, Row: menu.Row, Col: menu.Col}
		if len(item.Swatches) > 0 {
			slot := r.W / float64(len(item.Swatches))
			j := int(math.Floor((p.X - r.X) / slot))
			if j < 0 || j >= len(item.Swatches) {
				return Choice{}, false
			}
			choice.Color = item.Swatches[j].Color
		}
		mc.Close()
		return choice, true
	}
	return Choice{}, false
}

func (mc *MenuController) show(m Menu) Menu {
	b := mc.bounds(m)
	if !mc.viewport.Empty() {
		if b.Right() > mc.viewport.Right() {
			m.Origin.X = mc.viewport.Right() - b.W
		}
		if b.Bottom() > mc.viewport.Bottom() {
			m.Origin.Y = mc.viewport.Bottom() - b.H
		}
		m.Origin.X = math.Max(m.Origin.X, mc.viewport.X)
		m.Origin.Y = math.Max(m.Origin.Y, mc.viewport.Y)
	}
	mc.open = &m
	return m
}

func (mc *MenuController) bounds(m Menu) grid.Rect {
	return grid.Rect{
		X: m.Origin.X,
		Y: m.Origin.Y,
		W: mc.metrics.Width,
		H: 2*mc.metrics.Padding + float64(len(m.Items))*mc.metrics.ItemHeight,
	}
}
