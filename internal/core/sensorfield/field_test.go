package sensorfield

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/events/bus"
	"github.com/forceviz/forceviz/internal/core/physics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(x, y, z float64) *mgl64.Vec3 {
	v := mgl64.Vec3{x, y, z}
	return &v
}

func TestSensorsAndArrowsStayAligned(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	f := New()
	for step := 0; step < 500; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || f.Len() == 0:
			f.AddSensor()
		case op == 1:
			_ = f.RemoveSensor(rng.Intn(f.Len()))
		case op == 2:
			_ = f.UpdateSensor(rng.Intn(f.Len()), nil, vec(rng.Float64(), 0, 1))
		default:
			f.Tick()
		}
		require.Equal(t, len(f.Sensors()), len(f.Arrows()), "step %d", step)
		require.Equal(t, f.Len(), len(f.Options()))
	}
}

func TestRemoveThenAddPreservesOrder(t *testing.T) {
	f := New()
	for i := 0; i < 4; i++ {
		f.AddSensor()
	}
	before := f.Sensors()

	require.NoError(t, f.RemoveSensor(1))
	f.AddSensor()

	after := f.Sensors()
	require.Len(t, after, 4)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[2].ID, after[1].ID)
	assert.Equal(t, before[3].ID, after[2].ID)
	assert.NotEqual(t, before[1].ID, after[3].ID)
}

func TestForceMagnitudeScenario(t *testing.T) {
	f := New()
	require.NoError(t, f.SetColorThreshold(10))
	i := f.AddSensor()
	require.NoError(t, f.UpdateSensor(i, nil, vec(3, 4, 0)))
	require.True(t, f.Tick())

	arrow := f.Arrows()[i]
	require.NotNil(t, arrow)
	assert.InDelta(t, 5.0, arrow.Magnitude, 1e-12)
	assert.InDelta(t, 5.0, arrow.Transform.Scale, 1e-12)
	assert.True(t, arrow.Transform.Forward.ApproxEqualThreshold(mgl64.Vec3{0.6, 0.8, 0}, 1e-12))

	ramp := f.Ramp()
	want := colorgrad.Lerp(ramp.Low, ramp.High, 0.5)
	assert.True(t, arrow.Color.RGB().AlmostEqual(want, 1e-9))
	assert.Equal(t, ramp.Alpha, arrow.Color.A)

	s, ok := f.Sensor(i)
	require.True(t, ok)
	assert.True(t, s.HasArrow)
}

func TestExtremeForcesGetArrows(t *testing.T) {
	f := New()
	for _, force := range []*mgl64.Vec3{vec(1e200, 0, 0), vec(1e-170, 0, 0)} {
		i := f.AddSensor()
		require.NoError(t, f.UpdateSensor(i, nil, force))
	}
	f.Tick()

	arrows := f.Arrows()
	require.NotNil(t, arrows[0])
	require.NotNil(t, arrows[1])
	assert.Equal(t, 1e200, arrows[0].Magnitude)
	assert.Equal(t, 1e-170, arrows[1].Magnitude)
	for i := range arrows {
		s, _ := f.Sensor(i)
		assert.True(t, s.HasArrow)
	}
}

func TestZeroForceCreatesNoArrow(t *testing.T) {
	f := New()
	i := f.AddSensor()
	require.NoError(t, f.UpdateSensor(i, vec(1, 2, 3), vec(0, 0, 0)))
	f.Tick()

	assert.Nil(t, f.Arrows()[i])
	s, _ := f.Sensor(i)
	assert.False(t, s.HasArrow)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, s.Position)
}

func TestRemoveAdjustsSelection(t *testing.T) {
	f := New()
	for i := 0; i < 3; i++ {
		f.AddSensor()
	}
	ids := f.Sensors()

	require.NoError(t, f.Select(2))
	require.NoError(t, f.RemoveSensor(1))
	got := f.Sensors()
	require.Len(t, got, 2)
	assert.Equal(t, ids[0].ID, got[0].ID)
	assert.Equal(t, ids[2].ID, got[1].ID)
	// Index 2 fell off the end.
	assert.Equal(t, 1, f.Selected())

	require.NoError(t, f.Select(0))
	require.NoError(t, f.RemoveSensor(0))
	assert.Equal(t, 0, f.Selected())

	require.NoError(t, f.RemoveSelected())
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, NoSelection, f.Selected())
	assert.ErrorIs(t, f.RemoveSelected(), ErrNoSelection)
}

func TestRemoveDestroysArrow(t *testing.T) {
	f := New()
	f.AddSensor()
	f.AddSensor()
	f.SetAllForces(mgl64.Vec3{1, 0, 0})
	f.Tick()
	second := f.Arrows()[1]
	require.NotNil(t, second)

	require.NoError(t, f.RemoveSensor(0))
	arrows := f.Arrows()
	require.Len(t, arrows, 1)
	assert.Equal(t, second.SensorID, arrows[0].SensorID)
}

func TestOutOfRangeIsNoOp(t *testing.T) {
	f := New()
	f.AddSensor()
	snap := f.Snapshot()

	assert.ErrorIs(t, f.RemoveSensor(5), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.RemoveSensor(-1), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.UpdateSensor(1, vec(1, 1, 1), nil), ErrIndexOutOfRange)
	_, err := f.EditSensor(3, SensorInput{})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, f.Select(1), ErrIndexOutOfRange)

	assert.Equal(t, snap.Slots, f.Snapshot().Slots)
	assert.Equal(t, 0, f.Selected())
}

func TestEditSensorKeepsMalformedVector(t *testing.T) {
	f := New()
	i := f.AddSensor()

	res, err := f.EditSensor(i, SensorInput{
		PosX: "1", PosY: "2", PosZ: "oops",
		ForceX: "3", ForceY: "4", ForceZ: "0",
	})
	require.NoError(t, err)
	assert.False(t, res.OK())
	var perr *physics.ParseError
	require.True(t, errors.As(res.PositionErr, &perr))
	assert.Equal(t, "z", perr.Axis)
	assert.NoError(t, res.ForceErr)

	s, _ := f.Sensor(i)
	assert.Equal(t, mgl64.Vec3{}, s.Position)
	assert.Equal(t, mgl64.Vec3{3, 4, 0}, s.Force)
}

func TestEditSelectedAndFields(t *testing.T) {
	f := New()
	assert.Equal(t, SensorInput{}, f.SelectedFields())
	_, err := f.EditSelected(SensorInput{})
	assert.ErrorIs(t, err, ErrNoSelection)

	f.AddSensor()
	assert.Equal(t, 0, f.Selected())
	res, err := f.EditSelected(SensorInput{
		PosX: "1.5", PosY: "-2", PosZ: "0",
		ForceX: "0", ForceY: "0", ForceZ: "10",
	})
	require.NoError(t, err)
	assert.True(t, res.OK())

	assert.Equal(t, SensorInput{
		PosX: "1.5", PosY: "-2", PosZ: "0",
		ForceX: "0", ForceY: "0", ForceZ: "10",
	}, f.SelectedFields())
}

func TestListingAndOptions(t *testing.T) {
	f := New()
	f.AddSensor()
	f.AddSensor()
	require.NoError(t, f.UpdateSensor(1, vec(1, 2.5, 0), vec(3, 4, 0)))

	assert.Equal(t,
		"Sensor 0\tPos:(0, 0, 0) Force:(0, 0, 0)\n"+
			"Sensor 1\tPos:(1, 2.5, 0) Force:(3, 4, 0)\n",
		f.Listing())
	assert.Equal(t, []string{"Sensor 0", "Sensor 1"}, f.Options())
	assert.Equal(t, "", New().Listing())
}

func TestTickCoalescesMutations(t *testing.T) {
	b := bus.New()
	passes := 0
	_, err := b.Subscribe(EventFieldReconciled, func(bus.Event) error { passes++; return nil })
	require.NoError(t, err)

	f := New(WithEventBus(b))
	assert.False(t, f.Tick())
	for i := 0; i < 5; i++ {
		f.AddSensor()
	}
	f.SetAllForces(mgl64.Vec3{0, 1, 0})
	require.NoError(t, f.UpdateSensor(2, vec(5, 5, 5), nil))
	assert.True(t, f.Pending())

	assert.True(t, f.Tick())
	assert.False(t, f.Tick())
	assert.Equal(t, 1, passes)
	assert.False(t, f.Pending())
	for _, a := range f.Arrows() {
		require.NotNil(t, a)
	}
}

func TestTickReportsChangesWithoutReconcile(t *testing.T) {
	f := New()
	f.AddSensor()
	f.AddSensor()
	f.SetAllForces(mgl64.Vec3{0, 0, 30})
	require.True(t, f.Tick())
	require.False(t, f.Tick())

	steps := []struct {
		name string
		fn   func()
	}{
		{"low color", func() { f.SetLowForceColor(colorgrad.Blue) }},
		{"high color", func() { f.SetHighForceColor(colorgrad.Blue) }},
		{"alpha", func() { f.SetAlpha(0.2) }},
		{"ramp", func() {
			r := f.Ramp()
			r.Low = colorgrad.White
			require.NoError(t, f.SetRamp(r))
		}},
		{"selection", func() { require.NoError(t, f.Select(1)) }},
	}
	for _, step := range steps {
		step.fn()
		assert.False(t, f.Pending(), step.name)
		assert.True(t, f.Tick(), step.name)
		assert.False(t, f.Tick(), step.name)
	}

	require.NoError(t, f.Select(1))
	assert.False(t, f.Tick(), "reselecting the same sensor")
}

func TestStalePolicy(t *testing.T) {
	for _, tt := range []struct {
		policy     StalePolicy
		wantHidden bool
	}{
		{StaleKeep, false},
		{StaleHide, true},
	} {
		t.Run(tt.policy.String(), func(t *testing.T) {
			f := New(WithStalePolicy(tt.policy))
			i := f.AddSensor()
			require.NoError(t, f.UpdateSensor(i, nil, vec(0, 0, 2)))
			f.Tick()
			before := *f.Arrows()[i]

			require.NoError(t, f.UpdateSensor(i, nil, vec(0, 0, 0)))
			f.Tick()
			after := f.Arrows()[i]
			require.NotNil(t, after)
			assert.Equal(t, tt.wantHidden, after.Hidden)
			assert.Equal(t, before.Transform, after.Transform)
			assert.Equal(t, before.Magnitude, after.Magnitude)

			require.NoError(t, f.UpdateSensor(i, nil, vec(0, 0, 4)))
			f.Tick()
			assert.False(t, f.Arrows()[i].Hidden)
			assert.Equal(t, 4.0, f.Arrows()[i].Magnitude)
		})
	}
}

func TestRampChangesRecolorInPlace(t *testing.T) {
	f := New()
	i := f.AddSensor()
	require.NoError(t, f.UpdateSensor(i, vec(1, 1, 1), vec(0, 30, 0)))
	f.Tick()
	tr := f.Arrows()[i].Transform

	f.SetHighForceColor(colorgrad.Blue)
	a := f.Arrows()[i]
	assert.Equal(t, colorgrad.Blue, a.Color.RGB())
	assert.Equal(t, tr, a.Transform)
	assert.False(t, f.Pending())

	f.SetAlpha(2)
	assert.Equal(t, 1.0, f.Arrows()[i].Color.A)
	f.SetAlpha(0.25)
	assert.Equal(t, 0.25, f.Arrows()[i].Color.A)

	f.SetLowForceColor(colorgrad.White)
	require.NoError(t, f.SetColorThreshold(60))
	assert.True(t, f.Pending())
	f.Tick()
	want := colorgrad.Lerp(colorgrad.White, colorgrad.Blue, 0.5)
	assert.True(t, f.Arrows()[i].Color.RGB().AlmostEqual(want, 1e-9))
}

func TestSetColorThresholdRejectsInvalid(t *testing.T) {
	f := New()
	assert.ErrorIs(t, f.SetColorThreshold(0), colorgrad.ErrInvalidThreshold)
	assert.ErrorIs(t, f.SetColorThreshold(-3), colorgrad.ErrInvalidThreshold)
	assert.Equal(t, colorgrad.DefaultThreshold, f.Ramp().Threshold)
	assert.False(t, f.Pending())
}

func TestSetRamp(t *testing.T) {
	f := New()
	i := f.AddSensor()
	require.NoError(t, f.UpdateSensor(i, nil, vec(0, 30, 0)))
	f.Tick()

	r := colorgrad.Ramp{Low: colorgrad.Black, High: colorgrad.Blue, Alpha: 0.5, Threshold: f.Ramp().Threshold}
	require.NoError(t, f.SetRamp(r))
	assert.False(t, f.Pending())
	assert.Equal(t, colorgrad.Blue.WithAlpha(0.5), f.Arrows()[i].Color)

	r.Threshold = 60
	require.NoError(t, f.SetRamp(r))
	assert.True(t, f.Pending())

	r.Alpha = 3
	assert.ErrorIs(t, f.SetRamp(r), colorgrad.ErrInvalidAlpha)
	assert.Equal(t, 0.5, f.Ramp().Alpha)
}

func TestSliderRanges(t *testing.T) {
	f := New(WithSliderRanges(Range{Min: -10, Max: 10}, Range{Min: 1, Max: 50}))
	f.AddSensor()

	got := f.ApplyForceSliders(20, -30, 5)
	assert.Equal(t, mgl64.Vec3{10, -10, 5}, got)
	s, _ := f.Sensor(0)
	assert.Equal(t, got, s.Force)

	require.NoError(t, f.ApplyThresholdSlider(80))
	assert.Equal(t, 50.0, f.Ramp().Threshold)
}

func TestEventsPublished(t *testing.T) {
	b := bus.New()
	var kinds []string
	_, _ = b.Subscribe(bus.AllKinds, func(e bus.Event) error {
		kinds = append(kinds, e.Kind())
		return nil
	})

	f := New(WithEventBus(b))
	f.AddSensor()
	f.SetAllForces(mgl64.Vec3{1, 1, 1})
	f.Tick()
	_ = f.RemoveSensor(0)

	assert.Equal(t, []string{
		EventSensorAdded,
		EventSelectionChanged,
		EventForcesSet,
		EventFieldReconciled,
		EventSensorRemoved,
		EventSelectionChanged,
	}, kinds)
}

func TestParseStalePolicy(t *testing.T) {
	p, err := ParseStalePolicy("HIDE")
	require.NoError(t, err)
	assert.Equal(t, StaleHide, p)
	p, err = ParseStalePolicy("")
	require.NoError(t, err)
	assert.Equal(t, StaleKeep, p)
	_, err = ParseStalePolicy("drop")
	assert.Error(t, err)
}
