package sensorfield

import (
	"fmt"
	"strings"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/physics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// NoSelection is the selection index when nothing is selected.
const NoSelection = -1

// Sensor is a point force reading. HasArrow turns true once the sensor has
// had a non-zero force and stays true until the sensor is removed.
type Sensor struct {
	ID       uuid.UUID
	Position mgl64.Vec3
	Force    mgl64.Vec3
	HasArrow bool
}

// Magnitude is the length of the force reading.
func (s Sensor) Magnitude() float64 {
	return physics.Length(s.Force)
}

// Arrow is the visual derived from a sensor. Magnitude is kept alongside the
// transform so recoloring never has to read it back from Scale.
type Arrow struct {
	SensorID  uuid.UUID
	Transform physics.Transform3D
	Magnitude float64
	Color     colorgrad.RGBA
	Hidden    bool
}

// Slot pairs a sensor with its arrow. Arrow is nil until the sensor first
// carries a non-zero force.
type Slot struct {
	Sensor Sensor
	Arrow  *Arrow
}

func (s Slot) clone() Slot {
	if s.Arrow != nil {
		a := *s.Arrow
		s.Arrow = &a
	}
	return s
}

// StalePolicy decides what reconciliation does with an arrow whose sensor
// force has gone back to zero.
type StalePolicy uint8

const (
	// StaleKeep leaves the arrow at its last transform and color.
	StaleKeep StalePolicy = iota
	// StaleHide keeps the arrow but marks it hidden until the force is non-zero again.
	StaleHide
)

func (p StalePolicy) String() string {
	switch p {
	case StaleKeep:
		return "keep"
	case StaleHide:
		return "hide"
	default:
		return fmt.Sprintf("StalePolicy(%d)", uint8(p))
	}
}

// ParseStalePolicy accepts "keep" (or empty) and "hide".
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return StaleKeep, nil
	case "hide":
		return StaleHide, nil
	default:
		return StaleKeep, fmt.Errorf("unknown stale policy %q", s)
	}
}

// SensorInput is the text of the six edit fields for one sensor.
type SensorInput struct {
	PosX, PosY, PosZ       string
	ForceX, ForceY, ForceZ string
}

// EditResult reports which vectors of an edit were rejected. A rejected
// vector is left unchanged on the sensor.
type EditResult struct {
	PositionErr error
	ForceErr    error
}

// OK reports whether both vectors were applied.
func (r EditResult) OK() bool {
	return r.PositionErr == nil && r.ForceErr == nil
}

// Range bounds a slider value.
type Range struct {
	Min float64
	Max float64
}

// Clamp limits v to the range. A zero Range does not clamp.
func (r Range) Clamp(v float64) float64 {
	if r == (Range{}) {
		return v
	}
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Snapshot is a read-only copy of the field state.
type Snapshot struct {
	Slots    []Slot
	Ramp     colorgrad.Ramp
	Selected int
	Pending  bool
}
