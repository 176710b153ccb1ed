package domain

import (
	"slices"
	"strings"
)

// Color is a card color in "#rrggbb" form.
type Color string

// PaletteSize is the number of swatches a palette carries.
const PaletteSize = 8

// Palette is the fixed set of colors a card may take.
type Palette []Color

// DefaultPalette stores the built-in swatches; index 0 is the default card color.
var DefaultPalette = Palette{
	"#4f86f7",
	"#43a047",
	"#f4b400",
	"#e8710a",
	"#db4437",
	"#9c27b0",
	"#00acc1",
	"#757575",
}

// NewPalette validates raw swatches and returns a palette.
func NewPalette(raw []string) (Palette, error) {
	if len(raw) != PaletteSize {
		return nil, ErrInvalidColor
	}
	out := make(Palette, 0, len(raw))
	for _, v := range raw {
		c := NormalizeColor(Color(v))
		if !isHexColor(c) || slices.Contains(out, c) {
			return nil, ErrInvalidColor
		}
		out = append(out, c)
	}
	return out, nil
}

// Default returns the first swatch.
func (p Palette) Default() Color {
	if len(p) == 0 {
		return DefaultPalette[0]
	}
	return p[0]
}

// Contains reports whether c is one of the palette swatches.
func (p Palette) Contains(c Color) bool {
	return slices.Contains(p, NormalizeColor(c))
}

// Index returns the swatch index of c, or -1.
func (p Palette) Index(c Color) int {
	return slices.Index(p, NormalizeColor(c))
}

// NormalizeColor trims and lowercases a color value.
func NormalizeColor(c Color) Color {
	return Color(strings.ToLower(strings.TrimSpace(string(c))))
}

func isHexColor(c Color) bool {
	s := string(c)
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
