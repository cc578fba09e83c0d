package render

import (
	"image/color"
	"math"

	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/go-gl/mathgl/mgl64"
)

// Camera is a perspective camera looking from Eye at Target onto a
// Width x Height viewport with its origin at the top left.
type Camera struct {
	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3
	FovY   float64
	Near   float64
	Far    float64
	Width  float64
	Height float64
}

// DefaultCamera looks at the origin from an oblique angle.
func DefaultCamera(width, height float64) Camera {
	return Camera{
		Eye:    mgl64.Vec3{12, 9, -14},
		Target: mgl64.Vec3{},
		Up:     mgl64.Vec3{0, 1, 0},
		FovY:   mgl64.DegToRad(50),
		Near:   0.1,
		Far:    500,
		Width:  width,
		Height: height,
	}
}

// Orbit returns the camera rotated by yaw radians around the Y axis through Target.
func (c Camera) Orbit(yaw float64) Camera {
	offset := c.Eye.Sub(c.Target)
	c.Eye = c.Target.Add(mgl64.Rotate3DY(yaw).Mul3x1(offset))
	return c
}

func (c Camera) viewProjection() mgl64.Mat4 {
	aspect := 1.0
	if c.Height > 0 {
		aspect = c.Width / c.Height
	}
	proj := mgl64.Perspective(c.FovY, aspect, c.Near, c.Far)
	view := mgl64.LookAtV(c.Eye, c.Target, c.Up)
	return proj.Mul4(view)
}

// Segment is an arrow projected to screen space: a shaft from Base to Tip
// and two head strokes ending at Left and Right.
type Segment struct {
	Index int
	Base  mgl64.Vec2
	Tip   mgl64.Vec2
	Left  mgl64.Vec2
	Right mgl64.Vec2
	Color color.NRGBA
}

const (
	headFraction = 0.2
	headAngle    = math.Pi / 6
)

// Project maps arrows to screen segments. Nil and hidden arrows, and arrows
// with an end behind the camera, are left out.
func Project(arrows []*sensorfield.Arrow, cam Camera) []Segment {
	vp := cam.viewProjection()
	out := make([]Segment, 0, len(arrows))
	for i, a := range arrows {
		if a == nil || a.Hidden {
			continue
		}
		base, ok := cam.toScreen(vp, a.Transform.Position)
		if !ok {
			continue
		}
		tip, ok := cam.toScreen(vp, a.Transform.Tip())
		if !ok {
			continue
		}
		left, right := head(base, tip)
		out = append(out, Segment{
			Index: i,
			Base:  base,
			Tip:   tip,
			Left:  left,
			Right: right,
			Color: a.Color.NRGBA(),
		})
	}
	return out
}

func (c Camera) toScreen(vp mgl64.Mat4, p mgl64.Vec3) (mgl64.Vec2, bool) {
	clip := vp.Mul4x1(p.Vec4(1))
	if clip.W() <= c.Near {
		return mgl64.Vec2{}, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	return mgl64.Vec2{
		(ndc.X() + 1) / 2 * c.Width,
		(1 - ndc.Y()) / 2 * c.Height,
	}, true
}

func head(base, tip mgl64.Vec2) (left, right mgl64.Vec2) {
	shaft := tip.Sub(base)
	if shaft.Len() == 0 {
		return tip, tip
	}
	back := shaft.Mul(-headFraction)
	return tip.Add(rotate2(back, headAngle)), tip.Add(rotate2(back, -headAngle))
}

func rotate2(v mgl64.Vec2, angle float64) mgl64.Vec2 {
	return mgl64.Rotate2D(angle).Mul2x1(v)
}
