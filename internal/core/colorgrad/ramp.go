package colorgrad

import "math"

// Default ramp settings.
const (
	DefaultAlpha     = 0.66
	DefaultThreshold = 25.0
)

// Ramp is the global low->high force gradient applied to every arrow.
type Ramp struct {
	Low       RGB
	High      RGB
	Alpha     float64
	Threshold float64
}

// DefaultRamp returns green to red, 66% opaque, saturating at magnitude 25.
func DefaultRamp() Ramp {
	return Ramp{
		Low:       Green,
		High:      Red,
		Alpha:     DefaultAlpha,
		Threshold: DefaultThreshold,
	}
}

// Validate checks the alpha range and that the threshold is positive and finite.
func (r Ramp) Validate() error {
	if math.IsNaN(r.Alpha) || r.Alpha < 0 || r.Alpha > 1 {
		return ErrInvalidAlpha
	}
	if !ValidThreshold(r.Threshold) {
		return ErrInvalidThreshold
	}
	return nil
}

// Color resolves the arrow color for a magnitude, with the ramp's alpha applied.
func (r Ramp) Color(magnitude float64) RGBA {
	return ArrowColor(magnitude, r.Low, r.High, r.Threshold).WithAlpha(r.Alpha)
}

// ValidThreshold reports whether t can be used as a ramp threshold.
func ValidThreshold(t float64) bool {
	return t > 0 && !math.IsInf(t, 0) && !math.IsNaN(t)
}
