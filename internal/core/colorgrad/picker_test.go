package colorgrad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickerStartsBlack(t *testing.T) {
	p := NewPicker()
	assert.Equal(t, "000000", p.Hex())
	assert.Equal(t, HSV{}, p.HSV())
}

func TestPickerSetHexKeepsColorOnFailure(t *testing.T) {
	p := NewPicker()
	require.NoError(t, p.SetHex("FF00AA"))
	assert.Equal(t, "FF00AA", p.Hex())
	before := p.HSV()

	assert.Error(t, p.SetHex("12345"))
	assert.Error(t, p.SetHex("12345Z"))
	assert.Equal(t, before, p.HSV())
	assert.Equal(t, "FF00AA", p.Hex())
}

func TestPickerHueAndSV(t *testing.T) {
	p := NewPicker()
	p.SetHue(1.0 / 3)
	p.SetSV(1, 1)
	assert.Equal(t, "00FF00", p.Hex())

	p.SetSV(-3, 7)
	assert.Equal(t, 0.0, p.HSV().S)
	assert.Equal(t, 1.0, p.HSV().V)

	p.SetHue(1.5)
	assert.InDelta(t, 0.5, p.HSV().H, tolerance)
}

func TestPickerSetPointer(t *testing.T) {
	p := NewPicker()

	s, v := p.SetPointer(0, 0, 200, 100)
	assert.InDelta(t, 0.5, s, tolerance)
	assert.InDelta(t, 0.5, v, tolerance)

	s, v = p.SetPointer(-500, 500, 200, 100)
	assert.Equal(t, 0.0, s)
	assert.Equal(t, 1.0, v)

	s, v = p.SetPointer(50, -25, 200, 100)
	assert.InDelta(t, 0.75, s, tolerance)
	assert.InDelta(t, 0.25, v, tolerance)

	s, v = p.SetPointer(10, 10, 0, 100)
	assert.InDelta(t, 0.75, s, tolerance)
	assert.InDelta(t, 0.25, v, tolerance)
}

func TestPickerMarkerColor(t *testing.T) {
	p := NewPicker()
	p.SetSV(0, 0.25)
	assert.True(t, p.MarkerColor().AlmostEqual(RGB{0.75, 0.75, 0.75}, tolerance))
}

func TestHueStrip(t *testing.T) {
	strip := HueStrip(16)
	require.Len(t, strip, 16)
	assert.True(t, strip[0].AlmostEqual(RGB{0.5, 0, 0}, tolerance))
	assert.Nil(t, HueStrip(0))
}

func TestSVImage(t *testing.T) {
	img := SVImage(16, 16, 0)
	require.Equal(t, 16, img.Bounds().Dx())

	// Row 0 has value 0 and is black.
	assert.Equal(t, uint8(0), img.RGBAAt(15, 0).R)
	// Top-right approaches full saturation red.
	c := img.RGBAAt(15, 15)
	assert.Greater(t, c.R, uint8(200))
	assert.Less(t, c.G, uint8(30))

	assert.Equal(t, 0, SVImage(0, 4, 0).Bounds().Dx())
}

func TestSessionConfirmAndCancel(t *testing.T) {
	var got []RGB
	record := func(c RGB) { got = append(got, c) }

	var s Session
	s.Open(Green, record)
	require.True(t, s.IsOpen())
	s.Preview(Blue)
	s.Confirm()
	assert.False(t, s.IsOpen())

	s.Open(Green, record)
	s.Preview(Red)
	s.Cancel()

	s.Preview(White)
	s.Confirm()

	assert.Equal(t, []RGB{Blue, Green}, got)
}
