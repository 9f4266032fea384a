package hostglue

import (
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// PixelToColor converts a 15-bit BGR VRAM pixel (bit15 = mask bit, 5 bits
// per channel) to a tcell color for the terminal renderer, and to a shade
// index (0-3) quantized by perceptual lightness for the half-block
// character picker.
func PixelToColor(pixel uint16) (tcell.Color, int) {
	r5 := pixel & 0x1F
	g5 := (pixel >> 5) & 0x1F
	b5 := (pixel >> 10) & 0x1F

	r := float64(r5) / 31
	g := float64(g5) / 31
	b := float64(b5) / 31

	c := colorful.Color{R: r, G: g, B: b}
	_, _, l := c.Hsl()

	shade := int(l * 4)
	if shade > 3 {
		shade = 3
	}

	tr, tg, tb := c.RGB255()
	return tcell.NewRGBColor(int32(tr), int32(tg), int32(tb)), shade
}

// ShadeChar returns the half-block character for a pair of vertically
// stacked shade levels, grounded on go-jeebie's
// render.GetHalfBlockChar.
func ShadeChar(topShade, bottomShade int) rune {
	switch {
	case topShade == bottomShade:
		return '█'
	case topShade == 3 && bottomShade != 3:
		return '▄'
	case topShade != 3 && bottomShade == 3:
		return '▀'
	default:
		return '▀'
	}
}
