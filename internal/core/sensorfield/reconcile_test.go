package sensorfield

import (
	"testing"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileDoesNotMutateInput(t *testing.T) {
	in := []Slot{
		{Sensor: Sensor{ID: uuid.New(), Force: mgl64.Vec3{0, 0, 3}}},
		{Sensor: Sensor{ID: uuid.New()}},
	}
	out, stats := Reconcile(in, colorgrad.DefaultRamp(), StaleKeep)

	assert.Nil(t, in[0].Arrow)
	assert.False(t, in[0].Sensor.HasArrow)
	require.NotNil(t, out[0].Arrow)
	assert.Nil(t, out[1].Arrow)
	assert.Equal(t, Stats{Created: 1, Skipped: 1}, stats)
	assert.Equal(t, in[0].Sensor.ID, out[0].Arrow.SensorID)

	again, stats := Reconcile(out, colorgrad.DefaultRamp(), StaleKeep)
	assert.Equal(t, Stats{Updated: 1, Skipped: 1}, stats)
	assert.NotSame(t, out[0].Arrow, again[0].Arrow)
}

func TestRecolorUsesRetainedMagnitude(t *testing.T) {
	ramp := colorgrad.Ramp{Low: colorgrad.Black, High: colorgrad.White, Alpha: 1, Threshold: 10}
	slots := []Slot{{
		Sensor: Sensor{Force: mgl64.Vec3{5, 0, 0}},
		Arrow:  &Arrow{Magnitude: 5, Color: colorgrad.Red.WithAlpha(1)},
	}}
	// Scale deliberately differs from magnitude.
	slots[0].Arrow.Transform.Scale = 100

	out := Recolor(slots, ramp)
	assert.True(t, out[0].Arrow.Color.RGB().AlmostEqual(colorgrad.RGB{R: 0.5, G: 0.5, B: 0.5}, 1e-9))
	assert.Equal(t, colorgrad.Red, slots[0].Arrow.Color.RGB())
}

func TestRangeClamp(t *testing.T) {
	assert.Equal(t, 99.0, Range{}.Clamp(99))
	r := Range{Min: 0, Max: 1}
	assert.Equal(t, 0.0, r.Clamp(-1))
	assert.Equal(t, 1.0, r.Clamp(3))
	assert.Equal(t, 0.5, r.Clamp(0.5))
}
