package analytics

import (
	"fmt"
	"image/color"
	"math"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

var (
	// NoDataColor marks a cell whose coefficient was undefined.
	NoDataColor = color.RGBA{R: 0x3a, G: 0x3a, B: 0x45, A: 0xff}

	lightText = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	darkText  = color.RGBA{R: 0x1a, G: 0x1a, B: 0x1f, A: 0xff}
)

// CellColor maps one correlation cell to its fill. Positive values go
// green, negative values go blue, and zero is white.
func CellColor(c domain.Cell) color.RGBA {
	if !c.Valid || !finite(c.Value) {
		return NoDataColor
	}
	n := clamp(c.Value)
	var g, b uint8
	if n >= 0 {
		g = uint8(math.Round(255 * n))
	} else {
		b = uint8(math.Round(-255 * n))
	}
	return color.RGBA{R: 255 - g - b, G: g, B: b, A: 0xff}
}

// CellTextColor picks a readable label colour for CellColor.
func CellTextColor(c domain.Cell) color.RGBA {
	if !c.Valid || math.Abs(c.Value) > 0.5 {
		return lightText
	}
	return darkText
}

// Hex renders a colour as #rrggbb for templates.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
