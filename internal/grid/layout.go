// Package grid holds the pure geometry of the weekly schedule: cell
// measurements, card placement, and snapping free rectangles back to grid
// coordinates.
package grid

import (
	"errors"
	"math"
)

// Grid topology: one header row plus twelve hourly rows, one time-label column plus five day columns.
const (
	Rows = 13
	Cols = 6
)

// ErrLayoutUnavailable reports measurements that cannot describe a painted grid.
var ErrLayoutUnavailable = errors.New("grid layout unavailable")

// Point is a position in host units (pixels, or terminal cells).
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle in host units.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Right returns the exclusive right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// CenterX returns the horizontal center.
func (r Rect) CenterX() float64 { return r.X + r.W/2 }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// Translate returns r shifted by dx, dy.
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Cells returns the whole-cell rectangle a cell-based host paints for r.
// Edges round to the nearest cell boundary; at least one cell is kept per axis.
func (r Rect) Cells() Rect {
	x0, y0 := math.Round(r.X), math.Round(r.Y)
	x1 := math.Max(math.Round(r.Right()), x0+1)
	y1 := math.Max(math.Round(r.Bottom()), y0+1)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Layout exposes live grid measurements.
type Layout interface {
	RowHeight() float64
	ColWidth() float64
	CellRect(row, col int) (Rect, bool)
}

// Measured is a Layout captured from one render pass.
type Measured struct {
	ready      bool
	origin     Point
	colWidths  [Cols]float64
	rowHeights [Rows]float64
}

// FromCells captures a layout from per-column widths and per-row heights starting at origin.
func FromCells(origin Point, colWidths, rowHeights []float64) (Measured, error) {
	if len(colWidths) != Cols || len(rowHeights) != Rows {
		return Measured{}, ErrLayoutUnavailable
	}
	m := Measured{ready: true, origin: origin}
	for i, w := range colWidths {
		if !positive(w) {
			return Measured{}, ErrLayoutUnavailable
		}
		m.colWidths[i] = w
	}
	for i, h := range rowHeights {
		if !positive(h) {
			return Measured{}, ErrLayoutUnavailable
		}
		m.rowHeights[i] = h
	}
	return m, nil
}

// Measure splits box into a header row and time column of the given sizes, sharing the rest evenly.
func Measure(box Rect, headerHeight, timeColWidth float64) (Measured, error) {
	rowHeight := (box.H - headerHeight) / float64(Rows-1)
	colWidth := (box.W - timeColWidth) / float64(Cols-1)
	colWidths := make([]float64, Cols)
	rowHeights := make([]float64, Rows)
	colWidths[0] = timeColWidth
	rowHeights[0] = headerHeight
	for i := 1; i < Cols; i++ {
		colWidths[i] = colWidth
	}
	for i := 1; i < Rows; i++ {
		rowHeights[i] = rowHeight
	}
	return FromCells(Point{X: box.X, Y: box.Y}, colWidths, rowHeights)
}

// Ready reports whether the layout has been measured.
func (m Measured) Ready() bool {
	return m.ready
}

// RowHeight returns the height of one content row.
func (m Measured) RowHeight() float64 {
	if !m.ready {
		return 0
	}
	return m.rowHeights[1]
}

// ColWidth returns the width of one day column.
func (m Measured) ColWidth() float64 {
	if !m.ready {
		return 0
	}
	return m.colWidths[1]
}

// CellRect returns the rectangle of one cell.
func (m Measured) CellRect(row, col int) (Rect, bool) {
	if !m.ready || row < 0 || row >= Rows || col < 0 || col >= Cols {
		return Rect{}, false
	}
	r := Rect{X: m.origin.X, Y: m.origin.Y, W: m.colWidths[col], H: m.rowHeights[row]}
	for i := 0; i < col; i++ {
		r.X += m.colWidths[i]
	}
	for i := 0; i < row; i++ {
		r.Y += m.rowHeights[i]
	}
	return r, true
}

// Bounds returns the rectangle covering the whole grid.
func (m Measured) Bounds() (Rect, bool) {
	if !m.ready {
		return Rect{}, false
	}
	r := Rect{X: m.origin.X, Y: m.origin.Y}
	for _, w := range m.colWidths {
		r.W += w
	}
	for _, h := range m.rowHeights {
		r.H += h
	}
	return r, true
}

// CellAt returns the row and column under p.
func CellAt(l Layout, p Point) (row, col int, ok bool) {
	for row = 0; row < Rows; row++ {
		for col = 0; col < Cols; col++ {
			cell, ok := l.CellRect(row, col)
			if ok && cell.Contains(p) {
				return row, col, true
			}
		}
	}
	return 0, 0, false
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
