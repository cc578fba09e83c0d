package colorgrad

import (
	"image"
	"image/color"
)

// Picker is the editable state behind a hue slider, a saturation/value square
// and a hex entry box. It starts out black, with hue, saturation and value
// all zero.
type Picker struct {
	hsv HSV
}

// NewPicker returns a picker at hue 0, saturation 0, value 0.
func NewPicker() *Picker {
	return &Picker{}
}

// HSV returns the current hue/saturation/value.
func (p *Picker) HSV() HSV { return p.hsv }

// SetHue moves the hue slider. The value wraps modulo 1.
func (p *Picker) SetHue(h float64) {
	p.hsv.H = wrapHue(h)
}

// SetSV sets saturation and value, clamping both to [0,1].
func (p *Picker) SetSV(s, v float64) {
	p.hsv.S = clamp01(s)
	p.hsv.V = clamp01(v)
}

// SetPointer maps a pointer position onto the saturation/value square. x and y
// are relative to the square's center. Positions outside the square are pinned
// to its edge. It returns the normalized (s, v) that was applied. A square
// with no area leaves the state unchanged.
func (p *Picker) SetPointer(x, y, width, height float64) (s, v float64) {
	if width <= 0 || height <= 0 {
		return p.hsv.S, p.hsv.V
	}
	halfW, halfH := width*0.5, height*0.5
	x = min(max(x, -halfW), halfW)
	y = min(max(y, -halfH), halfH)

	p.SetSV((x+halfW)/width, (y+halfH)/height)
	return p.hsv.S, p.hsv.V
}

// SetHex adopts a color typed as hex. On error the current color is kept.
func (p *Picker) SetHex(hex string) error {
	c, err := HexToRGB(hex)
	if err != nil {
		return err
	}
	p.SetColor(c)
	return nil
}

// SetColor moves every control to represent c.
func (p *Picker) SetColor(c RGB) {
	p.hsv = RGBToHSV(c.Clamped())
}

// Color is the current output swatch.
func (p *Picker) Color() RGB {
	return p.hsv.RGB()
}

// Hex is the current color as six uppercase hex digits.
func (p *Picker) Hex() string {
	return RGBToHex(p.Color())
}

// MarkerColor is the gray used for the crosshair on the saturation/value
// square. It gets lighter as the value drops, so it stays visible.
func (p *Picker) MarkerColor() RGB {
	return HSVToRGB(0, 0, 1-p.hsv.V)
}

// HueStrip samples n hues at full saturation and half value.
func HueStrip(n int) []RGB {
	if n <= 0 {
		return nil
	}
	strip := make([]RGB, n)
	for i := range strip {
		strip[i] = HSVToRGB(float64(i)/float64(n), 1, 0.5)
	}
	return strip
}

// SVImage renders the saturation/value square for a hue. Saturation grows
// along x. Value grows along y, with row 0 the darkest.
func SVImage(width, height int, hue float64) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := HSVToRGB(hue, float64(x)/float64(width), float64(y)/float64(height)).RGB255()
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
		}
	}
	return img
}
