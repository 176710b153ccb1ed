package grid

import (
	"math"

	"github.com/evanschultz/weekgrid/internal/domain"
)

// Card placement ratios, relative to one column width or one row height.
const (
	widthRatio     = 0.9
	sideMargin     = 0.05
	verticalMargin = 0.1
	minVisible     = 0.3
)

// ToRect returns the on-screen rectangle of a card under the current layout.
func ToRect(c domain.Card, l Layout) (Rect, bool) {
	if !domain.ValidColumn(c.Col) {
		return Rect{}, false
	}
	anchor, ok := l.CellRect(domain.FirstSlotRow, c.Col)
	if !ok {
		return Rect{}, false
	}
	rowHeight := l.RowHeight()
	colWidth := l.ColWidth()
	if rowHeight <= 0 || colWidth <= 0 {
		return Rect{}, false
	}

	margin := verticalMargin * rowHeight
	slot := math.Max(c.HeightFrac, domain.MinHeightFrac) * rowHeight
	visible := math.Max(slot-2*margin, minVisible*rowHeight)
	return Rect{
		X: anchor.X + sideMargin*colWidth,
		Y: anchor.Y + c.TopRowFrac*rowHeight + margin,
		W: widthRatio * colWidth,
		H: visible,
	}, true
}
