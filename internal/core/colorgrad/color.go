// Package colorgrad converts between HSV, RGB and hex color forms and derives
// arrow colors from a low/high force ramp.
//
// Channels are float64 in [0,1], matching go-colorful. Packed bytes are only
// produced at the edges (hex strings, RGB255, NRGBA).
package colorgrad

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an opaque color with channels in [0,1].
type RGB struct {
	R, G, B float64
}

// RGBA is an RGB color with an alpha channel in [0,1].
type RGBA struct {
	R, G, B, A float64
}

// HSV holds hue in [0,1) (cyclic), saturation and value in [0,1].
type HSV struct {
	H, S, V float64
}

var (
	Black = RGB{0, 0, 0}
	White = RGB{1, 1, 1}
	Red   = RGB{1, 0, 0}
	Green = RGB{0, 1, 0}
	Blue  = RGB{0, 0, 1}
)

// FromRGB255 builds a color from packed bytes.
func FromRGB255(r, g, b uint8) RGB {
	return RGB{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// RGB255 returns the packed byte form, rounding to nearest.
func (c RGB) RGB255() (r, g, b uint8) {
	return c.Clamped().colorful().RGB255()
}

// Clamped returns the color with every channel clamped to [0,1].
func (c RGB) Clamped() RGB {
	return RGB{clamp01(c.R), clamp01(c.G), clamp01(c.B)}
}

// WithAlpha composes the color with a transparency.
func (c RGB) WithAlpha(a float64) RGBA {
	return RGBA{R: c.R, G: c.G, B: c.B, A: clamp01(a)}
}

// AlmostEqual reports whether every channel differs by at most eps.
func (c RGB) AlmostEqual(o RGB, eps float64) bool {
	return math.Abs(c.R-o.R) <= eps && math.Abs(c.G-o.G) <= eps && math.Abs(c.B-o.B) <= eps
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}

// RGB drops the alpha channel.
func (c RGBA) RGB() RGB {
	return RGB{c.R, c.G, c.B}
}

// NRGBA converts to the non-premultiplied image/color form used by renderers.
func (c RGBA) NRGBA() color.NRGBA {
	r, g, b := c.RGB().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(clamp01(c.A)*255 + 0.5)}
}

// HSVToRGB converts hue/saturation/value to RGB. The hue wraps modulo 1, so
// 1.25 and -0.75 both mean 0.25. Saturation and value must already be in
// [0,1].
func HSVToRGB(h, s, v float64) RGB {
	c := colorful.Hsv(wrapHue(h)*360, s, v)
	return RGB{c.R, c.G, c.B}
}

// RGBToHSV is the inverse of HSVToRGB. Achromatic colors report hue 0.
func RGBToHSV(c RGB) HSV {
	h, s, v := c.colorful().Hsv()
	return HSV{H: wrapHue(h / 360), S: s, V: v}
}

// RGB converts the HSV triple to RGB.
func (h HSV) RGB() RGB {
	return HSVToRGB(h.H, h.S, h.V)
}

// RGBToHex formats the color as six uppercase hex digits without a leading '#'.
func RGBToHex(c RGB) string {
	return strings.ToUpper(strings.TrimPrefix(c.Clamped().colorful().Hex(), "#"))
}

// HexToRGB parses six hex digits, optionally prefixed with '#'. Short input or
// non-hex characters return a *ParseError.
func HexToRGB(hex string) (RGB, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(digits) < hexDigits {
		return RGB{}, &ParseError{Input: hex, Reason: "need 6 hex digits"}
	}
	if i := strings.IndexFunc(digits, func(r rune) bool { return !isHexDigit(r) }); i >= 0 {
		r, _ := utf8.DecodeRuneInString(digits[i:])
		return RGB{}, &ParseError{Input: hex, Reason: fmt.Sprintf("invalid hex digit %q", r)}
	}
	if len(digits) > hexDigits {
		return RGB{}, &ParseError{Input: hex, Reason: "more than 6 hex digits"}
	}
	c, err := colorful.Hex("#" + digits)
	if err != nil {
		return RGB{}, &ParseError{Input: hex, Reason: err.Error()}
	}
	return RGB{c.R, c.G, c.B}, nil
}

// Lerp interpolates linearly from a to b. t is clamped to [0,1].
func Lerp(a, b RGB, t float64) RGB {
	c := a.colorful().BlendRgb(b.colorful(), clamp01(t))
	return RGB{c.R, c.G, c.B}
}

// ArrowColor maps a force magnitude onto the low->high ramp. At or above the
// threshold the high color is returned unchanged.
func ArrowColor(magnitude float64, low, high RGB, threshold float64) RGB {
	if magnitude >= threshold {
		return high
	}
	return Lerp(low, high, clamp01(magnitude/threshold))
}

const hexDigits = 6

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func wrapHue(h float64) float64 {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	if h >= 1 {
		h = 0
	}
	return h
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
