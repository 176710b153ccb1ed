package grid

import (
	"math"

	"github.com/evanschultz/weekgrid/internal/domain"
)

// Position is a resolved grid placement.
type Position struct {
	Col        int
	TopRowFrac float64
}

// Resolve snaps a free rectangle to the nearest day column and half-row offset.
func Resolve(r Rect, l Layout) (Position, bool) {
	rowHeight := l.RowHeight()
	if rowHeight <= 0 {
		return Position{}, false
	}

	best := 0
	bestDist := math.Inf(1)
	var anchor Rect
	center := r.CenterX()
	for col := domain.FirstDayColumn; col <= domain.LastDayColumn; col++ {
		cell, ok := l.CellRect(domain.FirstSlotRow, col)
		if !ok {
			return Position{}, false
		}
		// Strict comparison keeps the first minimum on ties.
		if dist := math.Abs(cell.CenterX() - center); dist < bestDist {
			best, bestDist, anchor = col, dist, cell
		}
	}

	rows := (r.Y - anchor.Y) / rowHeight
	return Position{Col: best, TopRowFrac: domain.ClampTopRow(roundHalf(rows))}, true
}

// ResolveHeight snaps a pixel height to half-row units, never below half a row.
func ResolveHeight(pixelHeight, rowHeight float64) float64 {
	if rowHeight <= 0 || math.IsNaN(pixelHeight) {
		return domain.MinHeightFrac
	}
	return math.Max(roundHalf(pixelHeight/rowHeight), domain.MinHeightFrac)
}

// roundHalf rounds to the nearest 0.5 with halves rounding up.
func roundHalf(v float64) float64 {
	return math.Floor(v*2+0.5) / 2
}
