package render

import (
	"encoding/json"
	"testing"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/physics"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testField(t *testing.T) *sensorfield.Field {
	t.Helper()
	f := sensorfield.New()
	f.AddSensor()
	f.AddSensor()
	force := mgl64.Vec3{3, 4, 0}
	require.NoError(t, f.UpdateSensor(1, nil, &force))
	f.Tick()
	return f
}

func TestNewFrame(t *testing.T) {
	f := testField(t)
	frame := NewFrame(f.Snapshot())

	require.Len(t, frame.Sensors, 2)
	assert.Equal(t, []string{"Sensor 0", "Sensor 1"}, frame.Options)
	assert.Equal(t, 0, frame.Selected)
	assert.Nil(t, frame.Sensors[0].Arrow)
	assert.False(t, frame.Sensors[0].HasArrow)

	a := frame.Sensors[1].Arrow
	require.NotNil(t, a)
	assert.Equal(t, 5.0, a.Magnitude)
	assert.Equal(t, 0.66, a.Alpha)
	assert.Equal(t, RampJSON{Low: "00FF00", High: "FF0000", Alpha: 0.66, Threshold: 25}, frame.Ramp)
	assert.Equal(t, f.Sensors()[1].ID.String(), frame.Sensors[1].ID)
}

func TestEncoderDetectsChanges(t *testing.T) {
	f := testField(t)
	enc := NewEncoder()

	first, changed, err := enc.Encode(NewFrame(f.Snapshot()))
	require.NoError(t, err)
	assert.True(t, changed)

	var decoded FrameJSON
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Len(t, decoded.Sensors, 2)

	again, changed, err := enc.Encode(NewFrame(f.Snapshot()))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, again)

	f.SetHighForceColor(colorgrad.Blue)
	_, changed, err = enc.Encode(NewFrame(f.Snapshot()))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotZero(t, enc.Hash())
}

func TestProjectSkipsMissingAndHidden(t *testing.T) {
	tr, ok := physics.ArrowTransform(mgl64.Vec3{}, mgl64.Vec3{0, 2, 0})
	require.True(t, ok)
	arrows := []*sensorfield.Arrow{
		nil,
		{Transform: tr, Color: colorgrad.Red.WithAlpha(1)},
		{Transform: tr, Hidden: true},
	}

	cam := DefaultCamera(800, 600)
	segs := Project(arrows, cam)
	require.Len(t, segs, 1)
	s := segs[0]
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, uint8(255), s.Color.R)

	// The origin is the camera target, so it lands mid-screen.
	assert.InDelta(t, 400, s.Base.X(), 1e-6)
	assert.InDelta(t, 300, s.Base.Y(), 1e-6)
	// +Y points up the screen.
	assert.Less(t, s.Tip.Y(), s.Base.Y())
}

func TestProjectBehindCamera(t *testing.T) {
	cam := DefaultCamera(800, 600)
	behind := cam.Eye.Add(cam.Eye.Sub(cam.Target))
	tr, _ := physics.ArrowTransform(behind, mgl64.Vec3{1, 0, 0})
	assert.Empty(t, Project([]*sensorfield.Arrow{{Transform: tr}}, cam))
}

func TestOrbitKeepsDistance(t *testing.T) {
	cam := DefaultCamera(100, 100)
	orbited := cam.Orbit(1.2)
	assert.InDelta(t, cam.Eye.Len(), orbited.Eye.Len(), 1e-9)
	assert.InDelta(t, cam.Eye.Y(), orbited.Eye.Y(), 1e-9)
}

func TestFrameSelectedFields(t *testing.T) {
	f := testField(t)
	require.NoError(t, f.Select(1))
	frame := NewFrame(f.Snapshot())
	assert.Equal(t, FieldsJSON{PosX: "0", PosY: "0", PosZ: "0", ForceX: "3", ForceY: "4", ForceZ: "0"}, frame.SelectedFields)
	assert.Equal(t, f.SelectedFields(), frame.SelectedFields.Input())

	require.NoError(t, f.Select(sensorfield.NoSelection))
	assert.Equal(t, FieldsJSON{}, NewFrame(f.Snapshot()).SelectedFields)
}
