// Package color provides the colour arithmetic used to style map overlays:
// HSL/RGB conversion, WCAG relative luminance and contrast, and CSS output.
package color

import (
	"fmt"
	"math"
	"strconv"
)

// Outline colours chosen by Outer.
const (
	Black = "black"
	White = "white"
)

// HSL is a colour in the HSL model. H is in degrees [0, 360), S and L are
// percentages [0, 100].
type HSL struct {
	H, S, L float64
}

// RGB is a colour in the RGB model with 8-bit components.
type RGB struct {
	R, G, B uint8
}

var (
	black = HSL{0, 0, 0}
	white = HSL{0, 0, 100}
)

// RGB converts the colour to RGB, rounding each channel.
func (c HSL) RGB() RGB {
	h := c.H / 360
	s := c.S / 100
	l := c.L / 100

	if s == 0 {
		v := round8(l)
		return RGB{v, v, v}
	}

	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q

	return RGB{
		R: round8(hueToRGB(p, q, h+1.0/3)),
		G: round8(hueToRGB(p, q, h)),
		B: round8(hueToRGB(p, q, h-1.0/3)),
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

func round8(v float64) uint8 {
	return uint8(math.Round(v * 255))
}

// HSL converts the colour to HSL with components rounded to integers.
func (c RGB) HSL() HSL {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	vmax := math.Max(r, math.Max(g, b))
	vmin := math.Min(r, math.Min(g, b))
	l := (vmax + vmin) / 2

	if vmax == vmin {
		return HSL{0, 0, math.Round(l * 100)}
	}

	d := vmax - vmin
	s := d / (vmax + vmin)
	if l > 0.5 {
		s = d / (2 - vmax - vmin)
	}

	var h float64
	switch vmax {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	case b:
		h = (r-g)/d + 4
	}
	h /= 6

	return HSL{math.Round(h * 360), math.Round(s * 100), math.Round(l * 100)}
}

// Luminance returns the WCAG relative luminance of the colour.
// See https://www.w3.org/TR/WCAG20/#relativeluminancedef.
func (c RGB) Luminance() float64 {
	linear := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*linear(c.R) + 0.7152*linear(c.G) + 0.0722*linear(c.B)
}

// Luminance returns the WCAG relative luminance of the colour.
func (c HSL) Luminance() float64 {
	return c.RGB().Luminance()
}

// Contrast returns the WCAG contrast ratio between two luminances. The
// result does not depend on argument order and is always at least 1.
func Contrast(lum1, lum2 float64) float64 {
	lighter := math.Max(lum1, lum2)
	darker := math.Min(lum1, lum2)
	return (lighter + 0.05) / (darker + 0.05)
}

// CalculateRatioHSL returns the contrast ratio between two HSL colours.
func CalculateRatioHSL(a, b HSL) float64 {
	return Contrast(a.Luminance(), b.Luminance())
}

// Outer picks black or white, whichever contrasts more with c. It is used
// for point borders and the outer stroke of lines.
func Outer(c HSL) string {
	if CalculateRatioHSL(c, black) > CalculateRatioHSL(c, white) {
		return Black
	}
	return White
}

// Opposite returns the other outline colour, used for focus halos.
func Opposite(outline string) string {
	if outline == Black {
		return White
	}
	return Black
}

// String renders the colour as CSS.
func (c HSL) String() string {
	return fmt.Sprintf("hsl(%s %s%% %s%%)", num(c.H), num(c.S), num(c.L))
}

// Alpha renders the colour as CSS with an alpha channel.
func (c HSL) Alpha(alpha float64) string {
	return fmt.Sprintf("hsl(%s %s%% %s%% / %s)", num(c.H), num(c.S), num(c.L), num(alpha))
}

// String renders the colour as CSS.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d %d %d)", c.R, c.G, c.B)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Validation colours: confirmed good, confirmed bad, not reviewed.
var (
	Valid     = HSL{120, 100, 50}
	Invalid   = HSL{0, 100, 50}
	Unchecked = HSL{0, 0, 50}
)

// ValidationColor maps a tri-state validation flag to its colour.
func ValidationColor(isValidated *bool) HSL {
	switch {
	case isValidated == nil:
		return Unchecked
	case *isValidated:
		return Valid
	default:
		return Invalid
	}
}
