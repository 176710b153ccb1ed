package domain

import (
	"fmt"
	"math"
	"strings"
)

// Grid topology shared by every package that places cards.
const (
	FirstDayColumn = 1
	LastDayColumn  = 5
	FirstSlotRow   = 1
	LastSlotRow    = 12
	FirstSlotHour  = 7

	MinHeightFrac = 0.5
	MaxTopRowFrac = 11.5
)

// DayNames labels the day columns, indexed by column-1.
var DayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// Card is one user-placed block anchored to a day column.
type Card struct {
	ID         string  `json:"id"`
	Col        int     `json:"col"`
	TopRowFrac float64 `json:"topRowFrac"`
	HeightFrac float64 `json:"heightFrac"`
	Text       string  `json:"text"`
	Color      Color   `json:"color"`
}

// CardInput holds the values used to construct a card.
type CardInput struct {
	ID         string
	Col        int
	TopRowFrac float64
	HeightFrac float64
	Text       string
	Color      Color
}

// NewCard validates input and returns a card that satisfies the grid invariants.
func NewCard(in CardInput) (Card, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Card{}, ErrInvalidID
	}
	if !ValidColumn(in.Col) {
		return Card{}, ErrInvalidColumn
	}
	if !validTopRow(in.TopRowFrac) {
		return Card{}, ErrInvalidTopRow
	}
	if !validHeight(in.HeightFrac) {
		return Card{}, ErrInvalidHeight
	}
	if strings.TrimSpace(string(in.Color)) == "" {
		return Card{}, ErrInvalidColor
	}
	return Card{
		ID:         in.ID,
		Col:        in.Col,
		TopRowFrac: in.TopRowFrac,
		HeightFrac: in.HeightFrac,
		Text:       in.Text,
		Color:      NormalizeColor(in.Color),
	}, nil
}

// Move places the card at a new column and top offset.
func (c *Card) Move(col int, topRowFrac float64) error {
	if !ValidColumn(col) {
		return ErrInvalidColumn
	}
	if !validTopRow(topRowFrac) {
		return ErrInvalidTopRow
	}
	c.Col = col
	c.TopRowFrac = topRowFrac
	return nil
}

// Resize sets the card height in row-units.
func (c *Card) Resize(heightFrac float64) error {
	if !validHeight(heightFrac) {
		return ErrInvalidHeight
	}
	c.HeightFrac = heightFrac
	return nil
}

// Duplicate returns a copy placed half a row below the original.
func (c Card) Duplicate(id string) (Card, error) {
	return NewCard(CardInput{
		ID:         id,
		Col:        c.Col,
		TopRowFrac: ClampTopRow(c.TopRowFrac + c.HeightFrac + 0.5),
		HeightFrac: c.HeightFrac,
		Text:       c.Text,
		Color:      c.Color,
	})
}

// BottomRowFrac returns the row-unit offset of the card's lower edge.
func (c Card) BottomRowFrac() float64 {
	return c.TopRowFrac + c.HeightFrac
}

// ValidColumn reports whether col is a day column.
func ValidColumn(col int) bool {
	return col >= FirstDayColumn && col <= LastDayColumn
}

// ValidSlotRow reports whether row is one of the hourly content rows.
func ValidSlotRow(row int) bool {
	return row >= FirstSlotRow && row <= LastSlotRow
}

// ClampTopRow clamps a top offset into the placeable range.
func ClampTopRow(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxTopRowFrac {
		return MaxTopRowFrac
	}
	return v
}

// DayName returns the weekday label for a day column.
func DayName(col int) string {
	if !ValidColumn(col) {
		return ""
	}
	return DayNames[col-FirstDayColumn]
}

// SlotLabel returns the "HH:MM" label of a content row.
func SlotLabel(row int) string {
	return ClockLabel(float64(row - FirstSlotRow))
}

// ClockLabel converts a row-unit offset from the first slot into a clock label.
func ClockLabel(rowFrac float64) string {
	minutes := int(math.Round(rowFrac*60)) + FirstSlotHour*60
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func validTopRow(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= MaxTopRowFrac
}

func validHeight(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= MinHeightFrac
}
