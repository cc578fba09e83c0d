package physics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Zero is the origin and the "no force" reading.
var Zero = mgl64.Vec3{}

// Forward is the axis an unrotated arrow points along.
var Forward = mgl64.Vec3{0, 0, 1}

// ErrNonFinite is wrapped by ParseError when a component parses as NaN or Inf.
var ErrNonFinite = errors.New("value is not finite")

// ParseError reports a component of a vector text triple that failed to parse.
type ParseError struct {
	Axis  string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s component %q: %v", e.Axis, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Transform3D places an arrow: where it starts, how long it is and which way it points.
type Transform3D struct {
	Position mgl64.Vec3
	Scale    float64
	Forward  mgl64.Vec3
	Rotation mgl64.Quat
}

// Tip returns the world position of the arrow head.
func (t Transform3D) Tip() mgl64.Vec3 {
	return t.Position.Add(t.Forward.Mul(t.Scale))
}

// IsZero reports whether v is exactly the zero vector.
func IsZero(v mgl64.Vec3) bool {
	return v == Zero
}

// Length is the Euclidean norm of v. Components are scaled by the largest
// magnitude first, so very large or very small vectors do not overflow or
// flush to zero. A finite vector whose norm exceeds the float64 range
// reports math.MaxFloat64.
func Length(v mgl64.Vec3) float64 {
	m := maxAbs(v)
	if m == 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return m
	}
	return math.Min(m*scaled(v, m).Len(), math.MaxFloat64)
}

// Direction returns v normalized. ok is false for the zero vector, which has
// no direction, and for non-finite vectors.
func Direction(v mgl64.Vec3) (dir mgl64.Vec3, ok bool) {
	m := maxAbs(v)
	if m == 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return Zero, false
	}
	u := scaled(v, m)
	return u.Mul(1 / u.Len()), true
}

func maxAbs(v mgl64.Vec3) float64 {
	m := 0.0
	for _, c := range v {
		if math.IsNaN(c) {
			return c
		}
		m = math.Max(m, math.Abs(c))
	}
	return m
}

// scaled divides v by m > 0, leaving the largest component at magnitude 1.
func scaled(v mgl64.Vec3, m float64) mgl64.Vec3 {
	return mgl64.Vec3{v[0] / m, v[1] / m, v[2] / m}
}

// LookRotation returns the rotation taking +Z onto forward. forward must be non-zero.
func LookRotation(forward mgl64.Vec3) mgl64.Quat {
	dir, ok := Direction(forward)
	if !ok {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(Forward, dir)
}

// ArrowTransform derives the transform of an arrow for a sensor at position
// with the given force: unit scale per unit force, pointing along the force.
// ok is false for a zero force.
func ArrowTransform(position, force mgl64.Vec3) (Transform3D, bool) {
	dir, ok := Direction(force)
	if !ok {
		return Transform3D{}, false
	}
	return Transform3D{
		Position: position,
		Scale:    Length(force),
		Forward:  dir,
		Rotation: mgl64.QuatBetweenVectors(Forward, dir),
	}, true
}

// ParseVec3 parses three text fields. Surrounding whitespace is ignored. The
// first bad component is reported as a *ParseError.
func ParseVec3(x, y, z string) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	for i, s := range [3]string{x, y, z} {
		f, err := ParseComponent(s)
		if err != nil {
			return Zero, &ParseError{Axis: axisNames[i], Input: s, Err: err}
		}
		v[i] = f
	}
	return v, nil
}

// ParseComponent parses one finite float.
func ParseComponent(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNonFinite
	}
	return f, nil
}

// FormatComponent renders a float in its shortest round-trip form ("3", "1.5", "-0.25").
func FormatComponent(f float64) string {
	if f == 0 {
		// collapse -0
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatVec3 renders "x, y, z".
func FormatVec3(v mgl64.Vec3) string {
	return FormatComponent(v[0]) + ", " + FormatComponent(v[1]) + ", " + FormatComponent(v[2])
}

var axisNames = [3]string{"x", "y", "z"}
