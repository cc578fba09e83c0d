package colorgrad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRamp(t *testing.T) {
	r := DefaultRamp()
	assert.NoError(t, r.Validate())
	assert.Equal(t, Green, r.Low)
	assert.Equal(t, Red, r.High)
	assert.Equal(t, 0.66, r.Alpha)
	assert.Equal(t, 25.0, r.Threshold)
}

func TestRampValidate(t *testing.T) {
	r := DefaultRamp()
	r.Threshold = 0
	assert.ErrorIs(t, r.Validate(), ErrInvalidThreshold)
	r.Threshold = math.Inf(1)
	assert.ErrorIs(t, r.Validate(), ErrInvalidThreshold)

	r = DefaultRamp()
	r.Alpha = 1.2
	assert.ErrorIs(t, r.Validate(), ErrInvalidAlpha)
}

func TestRampColorAppliesAlpha(t *testing.T) {
	r := Ramp{Low: Green, High: Red, Alpha: 0.5, Threshold: 10}

	c := r.Color(5)
	assert.Equal(t, 0.5, c.A)
	assert.True(t, c.RGB().AlmostEqual(Lerp(Green, Red, 0.5), tolerance))

	assert.Equal(t, Red.WithAlpha(0.5), r.Color(10))
}
